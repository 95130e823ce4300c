// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Expiry reads the "exp" claim of a JWT-shaped token without verifying it.
//
// The token is opaque to the client; this is for display in `askdesk status`
// only and must never gate access. Returns false when the token is not a JWT
// or carries no expiry.
func Expiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package devserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// =============================================================================
// Context Keys
// =============================================================================

const (
	requestIDKey = "askdesk_request_id"
	userKey      = "askdesk_user"
)

// requestID returns the id assigned by RequestContext, or "".
func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// authUser returns the user authenticated by BearerAuth, or "".
func authUser(c *gin.Context) string {
	return c.GetString(userKey)
}

// =============================================================================
// Request Context Middleware
// =============================================================================

// RequestContext assigns a request id (reusing X-Request-ID when the client
// sent one), logs the request when it completes and counts it.
func RequestContext(logger *slog.Logger, m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		logger.Info("request",
			"request_id", id,
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// =============================================================================
// Auth Middleware
// =============================================================================

// errUnauthorized is returned by verifyToken for any rejected token.
var errUnauthorized = errors.New("unauthorized")

// BearerAuth rejects requests without a valid HS256 token signed with secret.
//
// # Token Extraction
//
//	Authorization: Bearer <token>
//
// The "Bearer" prefix is case-insensitive.
func BearerAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := verifyToken(secret, extractBearerToken(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "unauthorized",
			})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// issueToken signs {user, exp} with HS256.
func issueToken(secret []byte, user string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"user": user,
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// verifyToken checks the signature and expiry and returns the "user" claim.
func verifyToken(secret []byte, token string) (string, error) {
	if token == "" {
		return "", errUnauthorized
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", errUnauthorized, err)
	}
	user, _ := claims["user"].(string)
	if user == "" {
		return "", errUnauthorized
	}
	return user, nil
}

// extractBearerToken returns the token from "Authorization: Bearer <token>",
// or "" when the header is missing or malformed.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

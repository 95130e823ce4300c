// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/AleutianAI/askdesk/pkg/client"
	"github.com/AleutianAI/askdesk/pkg/ux"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		reportError(err)
		stop()
		os.Exit(1)
	}
}

// reportError prints a command failure. Bad credentials get the blocking box.
func reportError(err error) {
	switch {
	case errors.Is(err, client.ErrInvalidCredentials):
		ux.ErrorBox("Login failed", "Invalid username or password.")
	case errors.Is(err, errNotLoggedIn):
		ux.Error("Not logged in. Run 'askdesk login' first.")
	case errors.Is(err, context.Canceled):
		ux.Warning("Interrupted")
	default:
		ux.Error(err.Error())
	}
}

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
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/askdesk/pkg/session"
	"github.com/AleutianAI/askdesk/pkg/ux"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func runLogin(cmd *cobra.Command, a *app, opts *loginOptions) error {
	username, password := opts.username, opts.password
	if username == "" || password == "" {
		if !ux.IsInteractive() {
			return errors.New("--username and --password are required when not running in a terminal")
		}
		if err := promptCredentials(&username, &password); err != nil {
			return err
		}
	}
	return login(cmd, a, username, password)
}

func login(cmd *cobra.Command, a *app, username, password string) error {
	token, err := a.client.VerifyCredentials(cmd.Context(), username, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := a.session.Login(token); err != nil {
		return err
	}

	ux.Success("Logged in as " + username)
	if exp, ok := session.Expiry(token); ok {
		ux.Muted("Session expires " + exp.Local().Format(time.RFC1123))
	}
	ux.Hint("Run 'askdesk chat' to start asking questions")
	return nil
}

// promptCredentials asks for the username and password with a huh form.
func promptCredentials(username, password *string) error {
	notEmpty := func(field string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", field)
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(username).
				Validate(notEmpty("username")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(password).
				Validate(notEmpty("password")),
		).Title("Sign in to askdesk"),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("login prompt: %w", err)
	}
	return nil
}

// ensureLogin prompts for credentials when no token is stored and a
// terminal is available.
func ensureLogin(cmd *cobra.Command, a *app) error {
	if a.session.IsAuthenticated() {
		return nil
	}
	if !ux.IsInteractive() {
		return errNotLoggedIn
	}
	var username, password string
	if err := promptCredentials(&username, &password); err != nil {
		return err
	}
	return login(cmd, a, username, password)
}

func runLogout(cmd *cobra.Command, a *app, args []string) error {
	if !a.session.IsAuthenticated() {
		ux.Info("No session stored")
		return nil
	}
	if err := a.session.Logout(); err != nil {
		return err
	}
	ux.Success("Logged out")
	return nil
}

func runStatus(cmd *cobra.Command, a *app, args []string) error {
	out := cmd.OutOrStdout()
	server := a.opts.cfg.Server.BaseURL
	token := a.session.Token()
	exp, hasExp := session.Expiry(token)
	expired := hasExp && time.Now().After(exp)

	if ux.GetPersonality().Level == ux.PersonalityMachine {
		fmt.Fprintf(out, "AUTHENTICATED: %t\n", token != "")
		fmt.Fprintf(out, "SERVER: %s\n", server)
		if hasExp {
			fmt.Fprintf(out, "EXPIRES: %s\n", exp.UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "EXPIRED: %t\n", expired)
		}
		return nil
	}

	var lines []string
	switch {
	case token == "":
		lines = append(lines, ux.Styles.Warning.Render("Not logged in"))
	case expired:
		lines = append(lines, ux.Styles.Warning.Render("Session expired, run 'askdesk login'"))
	default:
		lines = append(lines, ux.Styles.Success.Render("Logged in"))
	}
	lines = append(lines, "Server: "+server)
	if hasExp {
		lines = append(lines, "Expires: "+exp.Local().Format(time.RFC1123))
	}
	ux.Box("Session", strings.Join(lines, "\n"))
	return nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/AleutianAI/askdesk/pkg/client"
	"github.com/AleutianAI/askdesk/pkg/feedback"
	"github.com/AleutianAI/askdesk/pkg/logging"
	"github.com/AleutianAI/askdesk/pkg/session"
	"github.com/spf13/cobra"
)

var errNotLoggedIn = errors.New("not logged in")

// app holds the collaborators one command run needs.
type app struct {
	opts    *rootOptions
	logger  *logging.Logger
	session *session.Session
	client  *client.Client
	tracker *feedback.Tracker
}

// openApp wires logging, the token store, the session, the HTTP client and
// the feedback tracker from the loaded configuration.
//
// fileOnly keeps logs off the terminal; the interactive screen needs that.
func openApp(cmd *cobra.Command, opts *rootOptions, fileOnly bool) (*app, error) {
	cfg := opts.cfg

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "askdesk",
		JSON:    cfg.Logging.JSON,
		Quiet:   fileOnly || !opts.verbose,
		Rotation: logging.Rotation{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		},
		Output: cmd.ErrOrStderr(),
	})

	var store session.TokenStore
	if cfg.Storage.InMemory {
		store = session.NewMemoryStore()
	} else {
		bcfg := session.DefaultBadgerConfig(cfg.Storage.DataDir)
		bcfg.Logger = logger.Slog()
		bs, err := session.OpenBadgerStore(bcfg)
		if err != nil {
			_ = logger.Close()
			return nil, fmt.Errorf("open token store: %w", err)
		}
		store = bs
	}

	sess, err := session.New(store, logger.Slog())
	if err != nil {
		_ = store.Close()
		_ = logger.Close()
		return nil, err
	}

	cl := client.New(client.Config{
		BaseURL:      cfg.Server.BaseURL,
		AuthPath:     cfg.Server.AuthPath,
		ChatPath:     cfg.Server.ChatPath,
		FeedbackPath: cfg.Server.FeedbackPath,
		Timeout:      cfg.Server.Timeout,
		Logger:       logger.Slog(),
	}, sess)

	return &app{
		opts:    opts,
		logger:  logger,
		session: sess,
		client:  cl,
		tracker: feedback.NewTracker(cl, logger.Slog()),
	}, nil
}

// Close releases the token store and the log file.
func (a *app) Close() error {
	return errors.Join(a.session.Close(), a.logger.Close())
}

// poweredBy names the answering server for the answer header.
func (a *app) poweredBy() string {
	u, err := url.Parse(a.opts.cfg.Server.BaseURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func (a *app) requireLogin() error {
	if !a.session.IsAuthenticated() {
		return errNotLoggedIn
	}
	return nil
}

// withApp opens the app around a command and closes it afterwards.
func withApp(opts *rootOptions, fileOnly bool, run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		a, err := openApp(cmd, opts, fileOnly)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return run(cmd, a, args)
	}
}

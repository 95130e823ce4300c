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
	"fmt"

	"github.com/AleutianAI/askdesk/pkg/conversation"
	"github.com/AleutianAI/askdesk/pkg/sources"
	"github.com/AleutianAI/askdesk/pkg/tui"
	"github.com/AleutianAI/askdesk/pkg/ux"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var errNotInteractive = errors.New("chat needs an interactive terminal; use 'askdesk ask' for scripts")

func runChat(cmd *cobra.Command, a *app, args []string) error {
	if !ux.IsInteractive() {
		return errNotInteractive
	}
	if err := ensureLogin(cmd, a); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	store := sources.NewStore()
	conv := conversation.NewController(a.client, store, a.logger.Slog())
	defer func() {
		conv.Abort()
		conv.Wait()
	}()

	cfg := a.opts.cfg.UI
	model := tui.New(ctx, conv, sources.NewController(store), a.tracker, tui.Config{
		SuggestedQueries: cfg.SuggestedQueries,
		SummaryWords:     cfg.SummaryWords,
		PoweredBy:        a.poweredBy(),
		HideHints:        !ux.GetPersonality().ShowHints,
		Logger:           a.logger.Slog(),
	})

	a.logger.Info("chat started", "server", a.opts.cfg.Server.BaseURL)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("chat: %w", err)
	}
	a.logger.Info("chat ended")
	return nil
}

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
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AleutianAI/askdesk/pkg/conversation"
	"github.com/AleutianAI/askdesk/pkg/feedback"
	"github.com/AleutianAI/askdesk/pkg/sources"
	"github.com/AleutianAI/askdesk/pkg/ux"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func parseVote(s string) (feedback.Vote, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "+", "+1", "1":
		return feedback.Up, nil
	case "down", "-", "-1":
		return feedback.Down, nil
	default:
		return 0, fmt.Errorf("invalid vote %q (use up or down)", s)
	}
}

func runAsk(cmd *cobra.Command, a *app, question string, opts *askOptions) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	var vote feedback.Vote
	if opts.vote != "" {
		v, err := parseVote(opts.vote)
		if err != nil {
			return err
		}
		vote = v
	}

	ctx := cmd.Context()
	store := sources.NewStore()
	conv := conversation.NewController(a.client, store, a.logger.Slog())
	defer conv.Abort()

	ui := ux.NewChatUIWithWriter(cmd.OutOrStdout(), ux.GetPersonality().Level, a.opts.cfg.UI.SummaryWords)
	loading := newLoadingLine(cmd.ErrOrStderr())

	ui.Question(question)
	snap, err := runExchange(ctx, conv, loading, func() error { return conv.Search(ctx, question) })
	if err != nil {
		return err
	}
	if err := reportExchange(ui, a, snap, store, true); err != nil {
		return err
	}

	for _, q := range opts.followUps {
		ui.Question(q)
		snap, err = runExchange(ctx, conv, loading, func() error { return conv.Ask(ctx, q) })
		if err != nil {
			return err
		}
		if err := reportExchange(ui, a, snap, store, false); err != nil {
			return err
		}
	}

	if opts.vote == "" {
		ux.Hint("Rate this answer with --vote up or --vote down")
		return nil
	}
	traceID := snap.Conversation.LatestTraceID()
	if err := a.tracker.Submit(ctx, traceID, vote); err != nil {
		ux.Warning(fmt.Sprintf("Feedback not recorded: %v", err))
		return nil
	}
	ux.Success(fmt.Sprintf("Feedback recorded (%s)", vote))
	return nil
}

// runExchange starts one request and blocks until it settles. Cancelling ctx
// aborts the stream and returns ctx's error.
func runExchange(ctx context.Context, conv *conversation.Controller, loading *loadingLine, start func() error) (conversation.Snapshot, error) {
	if loading != nil {
		loading.Start()
		defer loading.Stop()
	}
	if err := start(); err != nil {
		return conversation.Snapshot{}, err
	}

	for conv.Snapshot().Status.InProgress() {
		select {
		case <-conv.Updates():
		case <-ctx.Done():
			conv.Abort()
			conv.Wait()
			return conv.Snapshot(), ctx.Err()
		}
	}
	conv.Wait()
	return conv.Snapshot(), nil
}

// reportExchange prints the newest answer. The first exchange lists every
// source of the search; follow-ups list only the sources they cite.
func reportExchange(ui ux.ChatUI, a *app, snap conversation.Snapshot, store *sources.Store, first bool) error {
	last := snap.Conversation.Last()

	if last.Content != "" {
		ui.Answer(last.Content, a.poweredBy())
	}

	var records []sources.Record
	if first {
		records = store.List()
	} else {
		for _, name := range last.Sources {
			if r, ok := store.Get(name); ok {
				records = append(records, r)
			}
		}
	}
	if len(records) > 0 {
		ui.Sources(records)
	} else if snap.Status == conversation.StatusDone {
		ui.NoSources()
	}

	if last.TraceID != "" {
		ui.Trace(last.TraceID)
	}

	if snap.Status == conversation.StatusFailed {
		ui.StreamError(snap.Err)
		return fmt.Errorf("request failed: %s", snap.Err)
	}
	return nil
}

// loadingLine animates the loading text on one terminal line.
type loadingLine struct {
	text *ux.LoadingText
	w    io.Writer
}

// newLoadingLine returns nil unless w is a terminal and the personality is
// not machine.
func newLoadingLine(w io.Writer) *loadingLine {
	f, ok := w.(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) || ux.GetPersonality().Level == ux.PersonalityMachine {
		return nil
	}
	return &loadingLine{
		text: ux.NewLoadingText(func(frame string) {
			fmt.Fprintf(f, "\r\033[K%s", ux.Styles.Muted.Render(frame))
		}),
		w: f,
	}
}

func (l *loadingLine) Start() { l.text.Start() }

// Stop halts the animation and clears the line.
func (l *loadingLine) Stop() {
	l.text.Stop()
	fmt.Fprint(l.w, "\r\033[K")
}

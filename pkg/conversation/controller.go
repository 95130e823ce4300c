// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/AleutianAI/askdesk/pkg/sources"
	"github.com/AleutianAI/askdesk/pkg/ux"
)

// =============================================================================
// Status
// =============================================================================

// Status is the lifecycle of the current request.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusStreaming
	StatusDone
	StatusFailed
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusStreaming:
		return "streaming"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// InProgress reports whether a request is in flight.
func (s Status) InProgress() bool {
	return s == StatusLoading || s == StatusStreaming
}

// =============================================================================
// Errors
// =============================================================================

var (
	ErrEmptyQuery     = errors.New("query is empty")
	ErrBusy           = errors.New("a request is already in progress")
	ErrNoConversation = errors.New("no answer to follow up on")
	ErrNothingToRetry = errors.New("no previous query to retry")

	errStale = errors.New("stale stream")
)

// =============================================================================
// Controller
// =============================================================================

// Asker streams the answer to a question. *client.Client implements it.
type Asker interface {
	Ask(ctx context.Context, question, sessionID string, callback ux.StreamCallback) error
}

// Snapshot is a consistent copy of the controller state for rendering.
type Snapshot struct {
	Status       Status
	Conversation Conversation
	SessionID    string
	LastQuery    string
	StatusText   string
	Err          string
}

// Controller owns the conversation and at most one in-flight stream.
//
// Each stream carries a generation number. Abort, Reset and a new Search bump
// the generation and cancel the old stream's context; events from an old
// generation are dropped, so partial results stay and nothing merges after
// cancellation.
//
// Lock order: Controller.mu, then the sources.Store lock.
type Controller struct {
	asker  Asker
	store  *sources.Store
	logger *slog.Logger

	mu         sync.Mutex
	conv       Conversation
	status     Status
	sessionID  string
	lastQuery  string
	statusText string
	errText    string
	gen        uint64
	cancel     context.CancelFunc

	updates chan struct{}
	wg      sync.WaitGroup
}

// NewController creates a controller merging stream sources into store.
func NewController(asker Asker, store *sources.Store, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		asker:   asker,
		store:   store,
		logger:  logger,
		updates: make(chan struct{}, 1),
	}
}

// Store returns the source store the controller merges into.
func (c *Controller) Store() *sources.Store { return c.store }

// Updates signals after every state change. Signals coalesce: one pending
// value means "something changed since you last looked".
func (c *Controller) Updates() <-chan struct{} { return c.updates }

func (c *Controller) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// Search starts a new top-level search. It cancels any in-flight stream,
// clears the sources and the conversation, and starts a new session.
func (c *Controller) Search(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrEmptyQuery
	}

	c.mu.Lock()
	c.abortLocked()
	c.store.ResetAll()
	c.conv = Conversation{{Role: RoleAssistant}}
	c.sessionID = ""
	c.lastQuery = query
	gen, streamCtx := c.beginLocked(ctx)
	c.mu.Unlock()

	c.logger.Info("search started", "generation", gen, "query_length", len(query))
	c.notify()
	c.run(streamCtx, gen, query, "")
	return nil
}

// Ask sends a follow-up question in the current session.
func (c *Controller) Ask(ctx context.Context, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return ErrEmptyQuery
	}

	c.mu.Lock()
	if c.status.InProgress() {
		c.mu.Unlock()
		return ErrBusy
	}
	if !c.conv.HasSummary() {
		c.mu.Unlock()
		return ErrNoConversation
	}
	c.conv = append(c.conv,
		Message{Role: RoleHuman, Content: question},
		Message{Role: RoleAssistant},
	)
	sessionID := c.sessionID
	gen, streamCtx := c.beginLocked(ctx)
	c.mu.Unlock()

	c.logger.Info("follow-up started", "generation", gen, "session_id", sessionID)
	c.notify()
	c.run(streamCtx, gen, question, sessionID)
	return nil
}

// Retry re-runs the last top-level search.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	query := c.lastQuery
	c.mu.Unlock()

	if query == "" {
		return ErrNothingToRetry
	}
	return c.Search(ctx, query)
}

// Abort stops the in-flight stream. Results merged so far remain.
func (c *Controller) Abort() {
	c.mu.Lock()
	wasActive := c.status.InProgress()
	c.abortLocked()
	if wasActive {
		c.status = StatusAborted
	}
	c.mu.Unlock()

	if wasActive {
		c.logger.Info("request aborted")
		c.notify()
	}
}

// Reset aborts any stream and clears the sources, the conversation and the
// last query.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.abortLocked()
	c.store.ResetAll()
	c.conv = nil
	c.status = StatusIdle
	c.sessionID = ""
	c.lastQuery = ""
	c.statusText = ""
	c.errText = ""
	c.mu.Unlock()

	c.notify()
}

// Wait blocks until no stream goroutine is running.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Status:       c.status,
		Conversation: c.conv.clone(),
		SessionID:    c.sessionID,
		LastQuery:    c.lastQuery,
		StatusText:   c.statusText,
		Err:          c.errText,
	}
}

// =============================================================================
// Stream handling
// =============================================================================

// beginLocked must be called with c.mu held.
func (c *Controller) beginLocked(parent context.Context) (uint64, context.Context) {
	c.gen++
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.status = StatusLoading
	c.statusText = ""
	c.errText = ""
	return c.gen, ctx
}

// abortLocked must be called with c.mu held.
func (c *Controller) abortLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) run(ctx context.Context, gen uint64, question, sessionID string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		err := c.asker.Ask(ctx, question, sessionID, func(e ux.StreamEvent) error {
			return c.apply(gen, e)
		})
		c.finish(gen, err)
	}()
}

// apply merges one stream event. It returns errStale once the generation has
// moved on, which stops the reader.
func (c *Controller) apply(gen uint64, e ux.StreamEvent) error {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return errStale
	}

	if c.status == StatusLoading {
		c.status = StatusStreaming
	}
	msg := &c.conv[len(c.conv)-1]

	switch e.Type {
	case ux.StreamEventSessionID:
		c.sessionID = e.Content
	case ux.StreamEventTraceID:
		msg.TraceID = e.Content
	case ux.StreamEventStatus:
		c.statusText = e.Content
	case ux.StreamEventToken:
		msg.Content += e.Content
	case ux.StreamEventSource, ux.StreamEventEnrich:
		u, err := sources.DecodeUpdate(e.Payload)
		if err != nil {
			c.mu.Unlock()
			c.logger.Warn("dropping malformed source payload",
				"event", string(e.Type),
				"index", e.Index,
				"error", err,
			)
			return nil
		}
		c.store.Upsert(u)
		msg.cite(u.Name)
	case ux.StreamEventError:
		c.status = StatusFailed
		c.errText = e.Content
	case ux.StreamEventDone:
		c.status = StatusDone
		c.statusText = ""
	}
	c.mu.Unlock()

	c.notify()
	return nil
}

func (c *Controller) finish(gen uint64, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	switch {
	case err != nil && !errors.Is(err, errStale):
		c.status = StatusFailed
		c.errText = err.Error()
		c.logger.Error("chat stream failed", "generation", gen, "error", err)
	case c.status.InProgress():
		// EOF without [DONE]
		c.status = StatusDone
		c.statusText = ""
	}
	c.mu.Unlock()

	c.notify()
}

// String renders a one-line description for logs.
func (s Snapshot) String() string {
	return fmt.Sprintf("status=%s messages=%d session=%s", s.Status, len(s.Conversation), s.SessionID)
}

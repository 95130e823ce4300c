// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package feedback tracks thumbs up/down votes on answers so that each answer
// (identified by its trace id) is voted on at most once per process.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// =============================================================================
// Types
// =============================================================================

// Vote is a signed answer rating.
type Vote int

const (
	// Up is a thumbs up.
	Up Vote = 1

	// Down is a thumbs down.
	Down Vote = -1
)

// String returns "up", "down" or "invalid".
func (v Vote) String() string {
	switch v {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "invalid"
	}
}

// Valid reports whether v is Up or Down.
func (v Vote) Valid() bool {
	return v == Up || v == Down
}

// State is the per-trace submission state.
type State int

const (
	// Unvoted accepts a vote.
	Unvoted State = iota

	// Submitting has a request in flight.
	Submitting

	// Voted has an accepted vote; further votes are ignored.
	Voted
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Unvoted:
		return "unvoted"
	case Submitting:
		return "submitting"
	case Voted:
		return "voted"
	default:
		return "unknown"
	}
}

// Status is the observable state of one trace.
type Status struct {
	State State
	Vote  Vote
}

// Failure describes a vote the feedback endpoint rejected or never received.
type Failure struct {
	TraceID string
	Vote    Vote
	Err     error
}

// Submitter delivers a vote to the feedback endpoint.
//
// Any non-nil error is a failure; the tracker does not distinguish transport
// errors from non-success statuses.
type Submitter interface {
	SubmitFeedback(ctx context.Context, traceID string, vote int) error
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, traceID string, vote int) error

// SubmitFeedback calls f.
func (f SubmitterFunc) SubmitFeedback(ctx context.Context, traceID string, vote int) error {
	return f(ctx, traceID, vote)
}

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNoTrace means the answer has no trace id yet; nothing is sent.
	ErrNoTrace = errors.New("answer has no trace id")

	// ErrInFlight means a vote for this trace is already being submitted.
	ErrInFlight = errors.New("vote already in flight")

	// ErrAlreadyVoted means this trace already has an accepted vote.
	ErrAlreadyVoted = errors.New("answer already voted")

	// ErrInvalidVote means the vote is neither Up nor Down.
	ErrInvalidVote = errors.New("vote must be +1 or -1")
)

// IsNoop reports whether err is one of the guard errors that short-circuit
// Submit without any network call.
func IsNoop(err error) bool {
	return errors.Is(err, ErrNoTrace) || errors.Is(err, ErrInFlight) || errors.Is(err, ErrAlreadyVoted)
}

// =============================================================================
// Tracker
// =============================================================================

// failureBuffer is the capacity of the Failures channel.
const failureBuffer = 16

// Tracker enforces the Unvoted -> Submitting -> Voted lifecycle per trace id.
//
// # Description
//
// Submit claims the trace (Unvoted -> Submitting) under the lock, calls the
// Submitter without the lock, then settles to Voted on success or back to
// Unvoted on failure. A failed vote is never retried automatically.
//
// # Thread Safety
//
// Safe for concurrent use. Two concurrent Submits for one trace result in
// exactly one network call; the loser gets ErrInFlight.
type Tracker struct {
	submitter Submitter
	logger    *slog.Logger

	mu       sync.Mutex
	statuses map[string]Status
	failures chan Failure
}

// NewTracker creates a Tracker. A nil logger uses slog.Default().
func NewTracker(submitter Submitter, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		submitter: submitter,
		logger:    logger,
		statuses:  make(map[string]Status),
		failures:  make(chan Failure, failureBuffer),
	}
}

// Submit sends a vote for traceID.
//
// # Inputs
//
//   - ctx: Bounds the network call.
//   - traceID: The answer's trace id. Empty yields ErrNoTrace.
//   - vote: Up or Down.
//
// # Outputs
//
//   - error: nil when the vote was accepted. ErrNoTrace, ErrInFlight,
//     ErrAlreadyVoted, ErrInvalidVote without a network call. Otherwise the
//     Submitter's error, wrapped; the trace is Unvoted again and the failure
//     is also published on Failures().
func (t *Tracker) Submit(ctx context.Context, traceID string, vote Vote) error {
	if !vote.Valid() {
		return ErrInvalidVote
	}
	if traceID == "" {
		return ErrNoTrace
	}

	t.mu.Lock()
	switch t.statuses[traceID].State {
	case Submitting:
		t.mu.Unlock()
		return ErrInFlight
	case Voted:
		t.mu.Unlock()
		return ErrAlreadyVoted
	}
	t.statuses[traceID] = Status{State: Submitting, Vote: vote}
	t.mu.Unlock()

	err := t.submitter.SubmitFeedback(ctx, traceID, int(vote))

	t.mu.Lock()
	if err != nil {
		delete(t.statuses, traceID)
	} else {
		t.statuses[traceID] = Status{State: Voted, Vote: vote}
	}
	t.mu.Unlock()

	if err != nil {
		t.logger.Warn("feedback submission failed",
			"trace_id", traceID,
			"vote", vote.String(),
			"error", err)
		t.publish(Failure{TraceID: traceID, Vote: vote, Err: err})
		return fmt.Errorf("submit %s vote for %s: %w", vote, traceID, err)
	}

	t.logger.Info("feedback submitted", "trace_id", traceID, "vote", vote.String())
	return nil
}

// publish never blocks; failures beyond the buffer are dropped.
func (t *Tracker) publish(f Failure) {
	select {
	case t.failures <- f:
	default:
		t.logger.Debug("feedback failure dropped, channel full", "trace_id", f.TraceID)
	}
}

// Failures delivers failed submissions for user-visible reporting.
func (t *Tracker) Failures() <-chan Failure {
	return t.failures
}

// Status returns the current status of traceID.
func (t *Tracker) Status(traceID string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statuses[traceID]
}

// ControlsDisabled reports whether vote controls for traceID should be
// disabled, which is while a vote is in flight and once one is accepted.
// An empty trace id is always disabled.
func (t *Tracker) ControlsDisabled(traceID string) bool {
	if traceID == "" {
		return true
	}
	return t.Status(traceID).State != Unvoted
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/askdesk/pkg/sources"
	"github.com/AleutianAI/askdesk/pkg/ux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// scriptedAsker replays events. When gateAfter >= 0 it blocks after that
// many events until the context is cancelled or release is closed.
type scriptedAsker struct {
	events    []ux.StreamEvent
	gateAfter int
	release   chan struct{}
	err       error

	mu    sync.Mutex
	calls []askCall
}

type askCall struct {
	question  string
	sessionID string
}

func newAsker(events ...ux.StreamEvent) *scriptedAsker {
	return &scriptedAsker{events: events, gateAfter: -1, release: make(chan struct{})}
}

func (a *scriptedAsker) Ask(ctx context.Context, question, sessionID string, cb ux.StreamCallback) error {
	a.mu.Lock()
	a.calls = append(a.calls, askCall{question, sessionID})
	a.mu.Unlock()

	for i, e := range a.events {
		if i == a.gateAfter {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-a.release:
			}
		}
		e.Index = i
		if err := cb(e); err != nil {
			return err
		}
		if e.IsTerminal() {
			return nil
		}
	}
	return a.err
}

func (a *scriptedAsker) lastCall() askCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[len(a.calls)-1]
}

func tok(s string) ux.StreamEvent { return ux.StreamEvent{Type: ux.StreamEventToken, Content: s} }
func src(json string) ux.StreamEvent {
	return ux.StreamEvent{Type: ux.StreamEventSource, Payload: []byte(json)}
}
func enrich(json string) ux.StreamEvent {
	return ux.StreamEvent{Type: ux.StreamEventEnrich, Payload: []byte(json)}
}

var (
	evSession = ux.StreamEvent{Type: ux.StreamEventSessionID, Content: "s-1"}
	evTrace   = ux.StreamEvent{Type: ux.StreamEventTraceID, Content: "t-1"}
	evDone    = ux.StreamEvent{Type: ux.StreamEventDone}
)

func newTestController(a Asker) *Controller {
	return NewController(a, sources.NewStore(), nil)
}

// =============================================================================
// Search
// =============================================================================

func TestSearch_FullStream(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := newAsker(
		evSession,
		src(`{"name":"Lease.pdf","icon":"pdf","loading":true}`),
		tok("Rent is"),
		tok(" due monthly."),
		enrich(`{"name":"Lease.pdf","enhanced":true,"summary":"Rent clause"}`),
		evTrace,
		evDone,
	)
	c := newTestController(a)

	require.NoError(t, c.Search(context.Background(), "  When is rent due?  "))
	c.Wait()

	snap := c.Snapshot()
	assert.Equal(t, StatusDone, snap.Status)
	assert.Equal(t, "s-1", snap.SessionID)
	assert.Equal(t, "When is rent due?", snap.LastQuery)
	require.Len(t, snap.Conversation, 1)

	summary := snap.Conversation.Summary()
	assert.Equal(t, "Rent is due monthly.", summary.Content)
	assert.Equal(t, []string{"Lease.pdf"}, summary.Sources)
	assert.Equal(t, "t-1", summary.TraceID)
	assert.True(t, snap.Conversation.HasSummary())

	rec, ok := c.Store().Get("Lease.pdf")
	require.True(t, ok)
	assert.True(t, rec.Enhanced())
	assert.Equal(t, sources.Summary{"Rent clause"}, rec.Summary)

	assert.Equal(t, askCall{"When is rent due?", ""}, a.lastCall())
}

func TestSearch_EmptyQuery(t *testing.T) {
	c := newTestController(newAsker())
	assert.ErrorIs(t, c.Search(context.Background(), "   "), ErrEmptyQuery)
	assert.Equal(t, StatusIdle, c.Snapshot().Status)
}

func TestSearch_ResetsPreviousSources(t *testing.T) {
	defer goleak.VerifyNone(t)

	first := newAsker(src(`{"name":"Old"}`), tok("x"), evDone)
	c := newTestController(first)
	require.NoError(t, c.Search(context.Background(), "one"))
	c.Wait()
	require.NoError(t, c.Store().SetExpanded("Old", true))

	c.asker = newAsker(src(`{"name":"New"}`), tok("y"), evDone)
	require.NoError(t, c.Search(context.Background(), "two"))
	c.Wait()

	_, ok := c.Store().Get("Old")
	assert.False(t, ok)
	rec, ok := c.Store().Get("New")
	require.True(t, ok)
	assert.False(t, rec.Expanded)
}

func TestSearch_MalformedSourceIsSkipped(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := newTestController(newAsker(src(`{"icon":"pdf"}`), src(`{"name":"Ok"}`), tok("a"), evDone))
	require.NoError(t, c.Search(context.Background(), "q"))
	c.Wait()

	assert.Equal(t, 1, c.Store().Len())
	assert.Equal(t, StatusDone, c.Snapshot().Status)
}

func TestSearch_StatusText(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := newAsker(ux.StreamEvent{Type: ux.StreamEventStatus, Content: "Searching documents"}, tok("a"), evDone)
	a.gateAfter = 2
	c := newTestController(a)

	require.NoError(t, c.Search(context.Background(), "q"))
	require.Eventually(t, func() bool {
		return c.Snapshot().StatusText == "Searching documents"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, StatusStreaming, c.Snapshot().Status)

	close(a.release)
	c.Wait()
	assert.Empty(t, c.Snapshot().StatusText)
}

// =============================================================================
// Failures
// =============================================================================

func TestSearch_StreamErrorEvent(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := newTestController(newAsker(tok("part"), ux.StreamEvent{Type: ux.StreamEventError, Content: "model offline"}))
	require.NoError(t, c.Search(context.Background(), "q"))
	c.Wait()

	snap := c.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "model offline", snap.Err)
	assert.Equal(t, "part", snap.Conversation.Summary().Content)
}

func TestSearch_TransportError(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := newAsker()
	a.err = errors.New("connection refused")
	c := newTestController(a)

	require.NoError(t, c.Search(context.Background(), "q"))
	c.Wait()

	snap := c.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Contains(t, snap.Err, "connection refused")
}

func TestSearch_EOFWithoutDone(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := newTestController(newAsker(tok("all")))
	require.NoError(t, c.Search(context.Background(), "q"))
	c.Wait()

	assert.Equal(t, StatusDone, c.Snapshot().Status)
}

// =============================================================================
// Abort
// =============================================================================

func TestAbort_KeepsPartialResultsAndStopsMerging(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := newAsker(
		src(`{"name":"A","loading":true}`),
		tok("partial"),
		enrich(`{"name":"A","enhanced":true,"summary":"late"}`),
		tok(" more"),
		evDone,
	)
	a.gateAfter = 2
	c := newTestController(a)

	require.NoError(t, c.Search(context.Background(), "q"))
	require.Eventually(t, func() bool {
		return c.Snapshot().Conversation.Summary().Content == "partial"
	}, time.Second, 5*time.Millisecond)

	c.Abort()
	c.Wait()

	snap := c.Snapshot()
	assert.Equal(t, StatusAborted, snap.Status)
	assert.Equal(t, "partial", snap.Conversation.Summary().Content)

	rec, ok := c.Store().Get("A")
	require.True(t, ok)
	assert.True(t, rec.Loading(), "no merge may happen after abort")
}

func TestAbort_WhenIdleIsNoop(t *testing.T) {
	c := newTestController(newAsker())
	c.Abort()
	assert.Equal(t, StatusIdle, c.Snapshot().Status)
}

func TestAbort_StaleEventsDropped(t *testing.T) {
	c := newTestController(newAsker())
	c.mu.Lock()
	c.conv = Conversation{{Role: RoleAssistant}}
	c.gen = 5
	c.mu.Unlock()

	err := c.apply(4, tok("late"))
	assert.ErrorIs(t, err, errStale)
	assert.Empty(t, c.Snapshot().Conversation.Summary().Content)
}

// =============================================================================
// Ask (follow-ups)
// =============================================================================

func TestAsk_FollowUpUsesSession(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := newTestController(newAsker(evSession, tok("First answer"), evTrace, evDone))
	require.NoError(t, c.Search(context.Background(), "q1"))
	c.Wait()

	follow := newAsker(src(`{"name":"Memo"}`), tok("Second"), ux.StreamEvent{Type: ux.StreamEventTraceID, Content: "t-2"}, evDone)
	c.asker = follow
	require.NoError(t, c.Ask(context.Background(), "and then?"))
	c.Wait()

	assert.Equal(t, askCall{"and then?", "s-1"}, follow.lastCall())

	snap := c.Snapshot()
	require.Len(t, snap.Conversation, 3)
	turns := snap.Conversation.Turns()
	assert.Equal(t, Message{Role: RoleHuman, Content: "and then?"}, turns[0])
	assert.Equal(t, "Second", turns[1].Content)
	assert.Equal(t, []string{"Memo"}, turns[1].Sources)
	assert.Equal(t, "t-2", snap.Conversation.LatestTraceID())
	assert.Equal(t, "First answer", snap.Conversation.Summary().Content)
}

func TestAsk_RequiresSummary(t *testing.T) {
	c := newTestController(newAsker())
	assert.ErrorIs(t, c.Ask(context.Background(), "q"), ErrNoConversation)
	assert.ErrorIs(t, c.Ask(context.Background(), " "), ErrEmptyQuery)
}

func TestAsk_BusyWhileStreaming(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := newAsker(tok("x"), evDone)
	a.gateAfter = 1
	c := newTestController(a)

	require.NoError(t, c.Search(context.Background(), "q"))
	require.Eventually(t, func() bool { return c.Snapshot().Conversation.HasSummary() }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, c.Ask(context.Background(), "more"), ErrBusy)

	close(a.release)
	c.Wait()
}

// =============================================================================
// Retry / Reset / Updates
// =============================================================================

func TestRetry(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := newAsker(tok("x"), evDone)
	c := newTestController(a)

	assert.ErrorIs(t, c.Retry(context.Background()), ErrNothingToRetry)

	require.NoError(t, c.Search(context.Background(), "what is ATD?"))
	c.Wait()
	require.NoError(t, c.Retry(context.Background()))
	c.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()
	require.Len(t, a.calls, 2)
	assert.Equal(t, "what is ATD?", a.calls[1].question)
}

func TestReset(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := newTestController(newAsker(evSession, src(`{"name":"A"}`), tok("x"), evDone))
	require.NoError(t, c.Search(context.Background(), "q"))
	c.Wait()

	c.Reset()

	snap := c.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Empty(t, snap.Conversation)
	assert.Empty(t, snap.SessionID)
	assert.Empty(t, snap.LastQuery)
	assert.Equal(t, 0, c.Store().Len())
	assert.ErrorIs(t, c.Retry(context.Background()), ErrNothingToRetry)
}

func TestUpdates_Coalesce(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := newTestController(newAsker(tok("a"), tok("b"), tok("c"), evDone))
	require.NoError(t, c.Search(context.Background(), "q"))
	c.Wait()

	select {
	case <-c.Updates():
	default:
		t.Fatal("expected a pending update")
	}
	select {
	case <-c.Updates():
		t.Fatal("updates should coalesce into one pending signal")
	default:
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := newTestController(newAsker(src(`{"name":"A"}`), tok("x"), evDone))
	require.NoError(t, c.Search(context.Background(), "q"))
	c.Wait()

	snap := c.Snapshot()
	snap.Conversation[0].Content = "mutated"
	snap.Conversation[0].Sources[0] = "mutated"

	again := c.Snapshot()
	assert.Equal(t, "x", again.Conversation[0].Content)
	assert.Equal(t, "A", again.Conversation[0].Sources[0])
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "streaming", StatusStreaming.String())
	assert.Equal(t, "unknown", Status(99).String())
	assert.True(t, StatusLoading.InProgress())
	assert.False(t, StatusAborted.InProgress())
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// =============================================================================
// SSE Stream Reader Tests
// =============================================================================

func TestNewSSEStreamReader(t *testing.T) {
	reader := NewSSEStreamReader(NewSSEParser())
	if reader == nil {
		t.Fatal("NewSSEStreamReader() returned nil")
	}
}

func collect(t *testing.T, stream string) ([]StreamEvent, error) {
	t.Helper()
	reader := NewSSEStreamReader(NewSSEParser())
	var events []StreamEvent
	err := reader.Read(context.Background(), strings.NewReader(stream), func(e StreamEvent) error {
		events = append(events, e)
		return nil
	})
	return events, err
}

// -----------------------------------------------------------------------------
// Read Tests - Basic Functionality
// -----------------------------------------------------------------------------

func TestSSEStreamReader_Read_FullExchange(t *testing.T) {
	stream := "data: [SESSION_ID] s-1\n\n" +
		"data: [SOURCE] {\"name\":\"Lease.pdf\",\"loading\":true}\n\n" +
		"data: Hello\n\n" +
		"data:  world\n\n" +
		"data: [TRACE_ID] t-9\n\n" +
		"data: [DONE]\n\n"

	events, err := collect(t, stream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []StreamEventType{
		StreamEventSessionID, StreamEventSource, StreamEventToken,
		StreamEventToken, StreamEventTraceID, StreamEventDone,
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, typ := range want {
		if events[i].Type != typ {
			t.Errorf("event %d: expected %v, got %v", i, typ, events[i].Type)
		}
		if events[i].Index != i {
			t.Errorf("event %d: expected Index %d, got %d", i, i, events[i].Index)
		}
	}
	if events[3].Content != " world" {
		t.Errorf("expected leading space to survive, got %q", events[3].Content)
	}
}

func TestSSEStreamReader_Read_MultiLineData(t *testing.T) {
	events, err := collect(t, "data: first\ndata: second\n\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Content != "first\nsecond" {
		t.Errorf("unexpected content %q", events[0].Content)
	}
}

func TestSSEStreamReader_Read_ContinuationLine(t *testing.T) {
	events, err := collect(t, "data: line one\nline two\n\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Content != "line one\nline two" {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestSSEStreamReader_Read_IgnoresCommentsAndFields(t *testing.T) {
	stream := ": keepalive\n" +
		"event: message\n" +
		"id: 7\n" +
		"retry: 1000\n" +
		"data: hi\n\n"

	events, err := collect(t, stream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Content != "hi" {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestSSEStreamReader_Read_CRLF(t *testing.T) {
	events, err := collect(t, "data: [TRACE_ID] t-1\r\n\r\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Content != "t-1" {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestSSEStreamReader_Read_DispatchesAtEOF(t *testing.T) {
	events, err := collect(t, "data: tail")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Content != "tail" {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestSSEStreamReader_Read_EmptyStream(t *testing.T) {
	events, err := collect(t, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
}

// -----------------------------------------------------------------------------
// Read Tests - Termination
// -----------------------------------------------------------------------------

func TestSSEStreamReader_Read_StopsAtDone(t *testing.T) {
	events, err := collect(t, "data: [DONE]\n\ndata: after\n\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected reading to stop at [DONE], got %d events", len(events))
	}
}

func TestSSEStreamReader_Read_StopsAtError(t *testing.T) {
	events, err := collect(t, "data: [ERROR] boom\n\ndata: after\n\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Content != "boom" {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestSSEStreamReader_Read_CallbackError(t *testing.T) {
	reader := NewSSEStreamReader(NewSSEParser())
	stop := errors.New("stop")
	calls := 0

	err := reader.Read(context.Background(), strings.NewReader("data: a\n\ndata: b\n\n"), func(StreamEvent) error {
		calls++
		return stop
	})

	if !errors.Is(err, stop) {
		t.Errorf("expected callback error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 callback call, got %d", calls)
	}
}

func TestSSEStreamReader_Read_ContextCancelled(t *testing.T) {
	reader := NewSSEStreamReader(NewSSEParser())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := reader.Read(ctx, strings.NewReader("data: a\n\n"), func(StreamEvent) error {
		t.Error("callback should not run after cancel")
		return nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSSEStreamReader_Read_LargePayload(t *testing.T) {
	big := strings.Repeat("x", 200*1024)
	events, err := collect(t, "data: [SOURCE] {\"name\":\""+big+"\"}\n\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || len(events[0].Payload) < len(big) {
		t.Errorf("large payload was not delivered intact")
	}
}

// -----------------------------------------------------------------------------
// ReadAll Tests
// -----------------------------------------------------------------------------

func TestSSEStreamReader_ReadAll(t *testing.T) {
	reader := NewSSEStreamReader(NewSSEParser())
	stream := "data: [SESSION_ID] s-1\n\n" +
		"data: [STATUS] Searching documents\n\n" +
		"data: [SOURCE] {\"name\":\"A\"}\n\n" +
		"data: [ENRICH] {\"name\":\"A\",\"enhanced\":true}\n\n" +
		"data: The\n\n" +
		"data:  answer\n\n" +
		"data: [TRACE_ID] t-1\n\n" +
		"data: [DONE]\n\n"

	result, err := reader.ReadAll(context.Background(), strings.NewReader(stream))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.SessionID != "s-1" {
		t.Errorf("expected SessionID s-1, got %q", result.SessionID)
	}
	if result.TraceID != "t-1" {
		t.Errorf("expected TraceID t-1, got %q", result.TraceID)
	}
	if result.Answer != "The answer" {
		t.Errorf("expected Answer %q, got %q", "The answer", result.Answer)
	}
	if len(result.Sources) != 1 || len(result.Enrich) != 1 {
		t.Errorf("expected 1 source and 1 enrich, got %d and %d", len(result.Sources), len(result.Enrich))
	}
	if len(result.Statuses) != 1 {
		t.Errorf("expected 1 status, got %d", len(result.Statuses))
	}
	if !result.Done {
		t.Error("expected Done")
	}
	if result.TotalEvents != 8 || result.TotalTokens != 2 {
		t.Errorf("unexpected totals: events=%d tokens=%d", result.TotalEvents, result.TotalTokens)
	}
}

func TestSSEStreamReader_ReadAll_ErrorCaptured(t *testing.T) {
	reader := NewSSEStreamReader(NewSSEParser())

	result, err := reader.ReadAll(context.Background(), strings.NewReader("data: partial\n\ndata: [ERROR] model offline\n\n"))
	if err != nil {
		t.Fatalf("expected stream error in result, got %v", err)
	}
	if result.Error != "model offline" {
		t.Errorf("expected Error %q, got %q", "model offline", result.Error)
	}
	if result.Answer != "partial" {
		t.Errorf("expected partial answer kept, got %q", result.Answer)
	}
	if result.Done {
		t.Error("Done should be false after an error")
	}
}

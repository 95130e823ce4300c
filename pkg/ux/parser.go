// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides user experience components for the askdesk CLI.
//
// This file contains the parser for the chat stream's tagged data format.
//
// Single Responsibility:
//
//	Parsers ONLY parse. They do not perform I/O, rendering, or state management.
//	The reader assembles SSE lines into event data; the parser turns that data
//	into a StreamEvent.
package ux

import (
	"strings"
)

// =============================================================================
// SSE Parser Interface
// =============================================================================

// SSEParser converts the data of one SSE event into a StreamEvent.
//
// Wire format (each event terminated by a blank line):
//
//	data: [SESSION_ID] 4f1c...
//	data: [SOURCE] {"name":"Lease","icon":"pdf","loading":true}
//	data: [ENRICH] {"name":"Lease","enhanced":true,"summary":["..."]}
//	data:  world
//	data: [TRACE_ID] 9b2e...
//	data: [DONE]
//
// Data that does not start with a known tag is an answer token and is kept
// byte for byte, leading spaces included.
//
// Thread Safety:
//
//	The default implementation is stateless and safe for concurrent use.
//
// Example:
//
//	parser := NewSSEParser()
//	event := parser.ParseData("[TRACE_ID] abc")
//	fmt.Println(event.Type, event.Content) // trace_id abc
type SSEParser interface {
	// ParseData parses the joined data lines of one event.
	ParseData(data string) StreamEvent
}

// =============================================================================
// SSE Parser Implementation
// =============================================================================

type sseParser struct{}

// NewSSEParser creates a new SSE parser.
func NewSSEParser() SSEParser {
	return &sseParser{}
}

// ParseData dispatches on the leading tag.
func (p *sseParser) ParseData(data string) StreamEvent {
	if strings.TrimSpace(data) == TagDone {
		return StreamEvent{Type: StreamEventDone}
	}

	for _, c := range []struct {
		tag string
		typ StreamEventType
	}{
		{TagSessionID, StreamEventSessionID},
		{TagSource, StreamEventSource},
		{TagEnrich, StreamEventEnrich},
		{TagTraceID, StreamEventTraceID},
		{TagStatus, StreamEventStatus},
		{TagError, StreamEventError},
	} {
		rest, ok := strings.CutPrefix(data, c.tag)
		if !ok {
			continue
		}
		rest = strings.TrimSpace(rest)
		if c.typ == StreamEventSource || c.typ == StreamEventEnrich {
			return StreamEvent{Type: c.typ, Payload: []byte(rest)}
		}
		return StreamEvent{Type: c.typ, Content: rest}
	}

	return StreamEvent{Type: StreamEventToken, Content: data}
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ SSEParser = (*sseParser)(nil)

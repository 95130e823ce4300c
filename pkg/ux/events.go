// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"io"
	"strings"
)

// StreamEventType identifies a chat stream event.
type StreamEventType string

const (
	StreamEventSessionID StreamEventType = "session_id"
	StreamEventSource    StreamEventType = "source"
	StreamEventEnrich    StreamEventType = "enrich"
	StreamEventTraceID   StreamEventType = "trace_id"
	StreamEventStatus    StreamEventType = "status"
	StreamEventToken     StreamEventType = "token"
	StreamEventDone      StreamEventType = "done"
	StreamEventError     StreamEventType = "error"
)

// Wire tags that prefix an event's data. Data without a known tag is a token.
const (
	TagSessionID = "[SESSION_ID]"
	TagSource    = "[SOURCE]"
	TagEnrich    = "[ENRICH]"
	TagTraceID   = "[TRACE_ID]"
	TagStatus    = "[STATUS]"
	TagError     = "[ERROR]"
	TagDone      = "[DONE]"
)

var tagByType = map[StreamEventType]string{
	StreamEventSessionID: TagSessionID,
	StreamEventSource:    TagSource,
	StreamEventEnrich:    TagEnrich,
	StreamEventTraceID:   TagTraceID,
	StreamEventStatus:    TagStatus,
	StreamEventError:     TagError,
	StreamEventDone:      TagDone,
}

// StreamEvent is one decoded event from the chat stream.
//
// Content holds the token text, the session or trace id, the status text or
// the error message. Payload holds the raw JSON of source and enrich events.
type StreamEvent struct {
	Index   int
	Type    StreamEventType
	Content string
	Payload []byte
}

// IsTerminal reports whether no further events follow this one.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == StreamEventDone || e.Type == StreamEventError
}

// StreamCallback receives events in stream order. Returning an error stops
// the read and the error is returned from StreamReader.Read.
type StreamCallback func(event StreamEvent) error

// StreamResult aggregates a whole stream. See StreamReader.ReadAll.
type StreamResult struct {
	SessionID string
	TraceID   string
	Answer    string
	Sources   [][]byte
	Enrich    [][]byte
	Statuses  []string
	Error     string
	Done      bool

	TotalEvents int
	TotalTokens int
}

// EncodeEvent writes e in the chat stream wire format: one "data: " line per
// line of data, then a blank line.
func EncodeEvent(w io.Writer, e StreamEvent) error {
	var data string
	switch e.Type {
	case StreamEventToken:
		data = e.Content
	case StreamEventDone:
		data = TagDone
	case StreamEventSource, StreamEventEnrich:
		data = tagByType[e.Type] + " " + string(e.Payload)
	default:
		tag, ok := tagByType[e.Type]
		if !ok {
			return fmt.Errorf("unknown stream event type %q", e.Type)
		}
		data = tag + " " + e.Content
	}

	var b strings.Builder
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

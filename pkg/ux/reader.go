// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides user experience components for the askdesk CLI.
//
// This file contains the stream reader that consumes an io.Reader and emits
// parsed events via callbacks.
//
// Context Support:
//
//	Read accepts context.Context for cancellation. When the context is
//	cancelled, reading stops and the context error is returned.
package ux

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// maxLineBytes bounds a single SSE line. Source payloads carry document text.
const maxLineBytes = 4 << 20

// =============================================================================
// Stream Reader Interface
// =============================================================================

// StreamReader reads a chat stream and invokes callbacks.
//
// Thread Safety:
//
//	A reader instance may be shared, but a single Read call must not be
//	run concurrently with itself on the same io.Reader.
//
// Example:
//
//	reader := NewSSEStreamReader(NewSSEParser())
//	err := reader.Read(ctx, resp.Body, func(event StreamEvent) error {
//	    if event.Type == StreamEventToken {
//	        fmt.Print(event.Content)
//	    }
//	    return nil
//	})
type StreamReader interface {
	// Read processes a stream, invoking callback for each event.
	//
	// The stream is complete when EOF is reached, a terminal event
	// (done/error) is delivered, ctx is cancelled or callback returns an error.
	Read(ctx context.Context, r io.Reader, callback StreamCallback) error

	// ReadAll reads the entire stream and returns the aggregated result.
	// An [ERROR] event is captured in StreamResult.Error, not returned.
	ReadAll(ctx context.Context, r io.Reader) (*StreamResult, error)
}

// =============================================================================
// SSE Stream Reader
// =============================================================================

type sseStreamReader struct {
	parser SSEParser
}

// NewSSEStreamReader creates a new SSE stream reader.
func NewSSEStreamReader(parser SSEParser) StreamReader {
	return &sseStreamReader{parser: parser}
}

// Read assembles SSE events line by line.
//
// Line handling:
//   - "data:" lines append to the current event (one leading space dropped)
//   - blank lines dispatch the current event
//   - ":" comments and "event:", "id:", "retry:" fields are ignored
//   - any other line continues the current event's data after a newline;
//     servers that write raw newlines inside a token produce these
func (r *sseStreamReader) Read(ctx context.Context, reader io.Reader, callback StreamCallback) error {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		data       strings.Builder
		hasData    bool
		eventIndex int
	)

	dispatch := func() (bool, error) {
		if !hasData {
			return false, nil
		}
		event := r.parser.ParseData(data.String())
		data.Reset()
		hasData = false

		event.Index = eventIndex
		eventIndex++
		if err := callback(event); err != nil {
			return true, err
		}
		return event.IsTerminal(), nil
	}

	appendData := func(s string) {
		if hasData {
			data.WriteByte('\n')
		}
		data.WriteString(s)
		hasData = true
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSuffix(scanner.Text(), "\r")

		switch {
		case line == "":
			stop, err := dispatch()
			if err != nil || stop {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			value := strings.TrimPrefix(line, "data:")
			value = strings.TrimPrefix(value, " ")
			appendData(value)
		case isIgnoredField(line):
		default:
			appendData(line)
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := dispatch()
	return err
}

func isIgnoredField(line string) bool {
	for _, f := range []string{"event:", "id:", "retry:"} {
		if strings.HasPrefix(line, f) {
			return true
		}
	}
	return false
}

// ReadAll collects every event into a StreamResult.
func (r *sseStreamReader) ReadAll(ctx context.Context, reader io.Reader) (*StreamResult, error) {
	result := &StreamResult{}
	var answer strings.Builder

	err := r.Read(ctx, reader, func(event StreamEvent) error {
		result.TotalEvents++

		switch event.Type {
		case StreamEventSessionID:
			result.SessionID = event.Content
		case StreamEventTraceID:
			result.TraceID = event.Content
		case StreamEventToken:
			answer.WriteString(event.Content)
			result.TotalTokens++
		case StreamEventSource:
			result.Sources = append(result.Sources, event.Payload)
		case StreamEventEnrich:
			result.Enrich = append(result.Enrich, event.Payload)
		case StreamEventStatus:
			result.Statuses = append(result.Statuses, event.Content)
		case StreamEventError:
			result.Error = event.Content
		case StreamEventDone:
			result.Done = true
		}
		return nil
	})

	result.Answer = answer.String()
	return result, err
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ StreamReader = (*sseStreamReader)(nil)

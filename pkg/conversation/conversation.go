// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package conversation holds the question/answer conversation and the
// controller that drives it from the chat stream.
package conversation

// Role identifies who produced a message.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a Conversation.
type Message struct {
	Role    Role
	Content string

	// Sources lists the cited source names in first-citation order.
	Sources []string

	// TraceID identifies the answer for feedback. Empty until the stream
	// delivers one.
	TraceID string
}

func (m Message) clone() Message {
	m.Sources = append([]string(nil), m.Sources...)
	return m
}

func (m *Message) cite(name string) {
	for _, s := range m.Sources {
		if s == name {
			return
		}
	}
	m.Sources = append(m.Sources, name)
}

// Conversation is an ordered list of messages. Element 0 is the summary
// message answering the top-level search; its empty content means the answer
// is not ready. Later elements alternate human and assistant turns.
type Conversation []Message

// Summary returns the summary message, or the zero Message when empty.
func (c Conversation) Summary() Message {
	if len(c) == 0 {
		return Message{}
	}
	return c[0]
}

// HasSummary reports whether the summary answer has any content.
func (c Conversation) HasSummary() bool {
	return len(c) > 0 && c[0].Content != ""
}

// Turns returns the follow-up messages after the summary.
func (c Conversation) Turns() []Message {
	if len(c) <= 1 {
		return nil
	}
	return c[1:]
}

// Last returns the most recent message, or the zero Message when empty.
func (c Conversation) Last() Message {
	if len(c) == 0 {
		return Message{}
	}
	return c[len(c)-1]
}

// LatestTraceID returns the trace id of the newest assistant message that
// has one.
func (c Conversation) LatestTraceID() string {
	for i := len(c) - 1; i >= 0; i-- {
		if c[i].Role == RoleAssistant && c[i].TraceID != "" {
			return c[i].TraceID
		}
	}
	return ""
}

func (c Conversation) clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	for i, m := range c {
		out[i] = m.clone()
	}
	return out
}

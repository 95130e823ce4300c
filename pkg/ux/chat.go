// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AleutianAI/askdesk/pkg/sources"
)

// Headings shared by the plain renderer and the TUI.
const (
	HeadingAnswer    = "Answer"
	HeadingSources   = "Sourced from"
	HeadingSuggested = "Common questions"
	PoweredByPrefix  = "Powered by "
)

// ChatUI renders one question/answer exchange as plain terminal output.
// The interactive TUI lives in pkg/tui; this is the scripting and pipe path.
type ChatUI interface {
	// Question echoes the submitted question.
	Question(q string)

	// Answer displays the finished answer. poweredBy may be empty.
	Answer(answer, poweredBy string)

	// Sources displays the cited sources with their snippets.
	Sources(records []sources.Record)

	// NoSources displays a message when the answer cited nothing
	NoSources()

	// Trace displays the trace id that feedback votes refer to.
	Trace(traceID string)

	// StreamError displays an [ERROR] event from the backend.
	StreamError(msg string)

	// Error displays a client-side failure
	Error(err error)

	// Suggestions lists the common questions.
	Suggestions(queries []string)
}

// terminalChatUI implements ChatUI for terminal output
type terminalChatUI struct {
	writer      io.Writer
	personality PersonalityLevel
	maxWords    int
	markdown    *MarkdownRenderer
}

// write is a helper that writes formatted output.
// Errors are ignored as there's no meaningful recovery for terminal output.
func (u *terminalChatUI) write(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(u.writer, format, args...)
}

func (u *terminalChatUI) writeln(args ...interface{}) {
	_, _ = fmt.Fprintln(u.writer, args...)
}

// NewChatUI creates a ChatUI on stdout using the current personality.
func NewChatUI(maxWords int) ChatUI {
	return NewChatUIWithWriter(os.Stdout, GetPersonality().Level, maxWords)
}

// NewChatUIWithWriter creates a ChatUI with a custom writer (for testing)
func NewChatUIWithWriter(w io.Writer, personality PersonalityLevel, maxWords int) ChatUI {
	if maxWords <= 0 {
		maxWords = sources.DefaultSummaryWords
	}
	return &terminalChatUI{
		writer:      w,
		personality: personality,
		maxWords:    maxWords,
		markdown:    NewMarkdownRenderer(DefaultWrapWidth),
	}
}

// Question echoes the question
func (u *terminalChatUI) Question(q string) {
	switch u.personality {
	case PersonalityMachine:
		u.write("QUESTION: %s\n", q)
	case PersonalityMinimal:
		u.write("> %s\n", q)
	default:
		u.writeln(Styles.HumanBubble.Render("> " + q))
	}
}

// Answer renders the answer as markdown outside machine mode.
func (u *terminalChatUI) Answer(answer, poweredBy string) {
	if u.personality == PersonalityMachine {
		u.write("ANSWER: %s\n", strings.ReplaceAll(answer, "\n", " "))
		return
	}

	formatted := FormatAnswer(answer)
	if u.personality == PersonalityMinimal {
		u.writeln()
		u.writeln(HeadingAnswer)
		u.writeln(formatted)
		return
	}

	u.writeln()
	header := Styles.Title.Render(HeadingAnswer)
	if poweredBy != "" {
		header += "  " + Styles.Muted.Render(PoweredByPrefix+poweredBy)
	}
	u.writeln(header)
	u.writeln(u.markdown.Render(formatted))
}

// Snippets returns one "..."-prefixed line per normalized summary fragment of
// r. It is empty when nothing is left after normalization.
func Snippets(r sources.Record, maxWords int) []string {
	frags := sources.NormalizeSummary(r.Summary, maxWords)
	lines := make([]string, 0, len(frags))
	for _, f := range frags {
		lines = append(lines, "..."+f)
	}
	return lines
}

// Sources displays the cited sources
func (u *terminalChatUI) Sources(records []sources.Record) {
	if len(records) == 0 {
		u.NoSources()
		return
	}

	if u.personality == PersonalityMachine {
		for _, r := range records {
			u.sourceMachine(r)
		}
		return
	}

	u.writeln()
	if u.personality == PersonalityMinimal {
		u.writeln(HeadingSources + ":")
		for i, r := range records {
			u.write("  %d. %s\n", i+1, r.Name)
			for _, s := range Snippets(r, u.maxWords) {
				u.write("     %s\n", s)
			}
		}
		return
	}

	u.writeln(Styles.Subtitle.Render(HeadingSources))
	for i, r := range records {
		u.writeln(Styles.SourceBlock.Render(u.sourceBlock(i+1, r)))
	}
}

func (u *terminalChatUI) sourceMachine(r sources.Record) {
	parts := []string{"name=" + quoteIfSpaced(r.Name), "state=" + r.State.String()}
	if r.Confidence != nil {
		parts = append(parts, fmt.Sprintf("confidence=%.1f", *r.Confidence))
	}
	if r.URL != "" {
		parts = append(parts, "url="+r.URL)
	}
	if r.UpdatedAt != nil {
		parts = append(parts, "updated_at="+r.UpdatedAt.UTC().Format("2006-01-02"))
	}
	u.write("SOURCE: %s\n", strings.Join(parts, " "))
	for _, s := range Snippets(r, u.maxWords) {
		u.write("SNIPPET: %s %s\n", quoteIfSpaced(r.Name), s)
	}
}

// sourceBlock renders the body of one expanded source.
func (u *terminalChatUI) sourceBlock(n int, r sources.Record) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%d. %s %s", n, SourceIcon(r.Icon), Styles.Bold.Render(r.Name)))

	if r.Confidence != nil {
		b.WriteString("\n" + Styles.Highlight.Render(FormatConfidence(*r.Confidence)))
	}
	if r.UpdatedAt != nil {
		b.WriteString("\n" + Styles.Caption.Render(FormatUpdatedAt(*r.UpdatedAt)))
	}
	if r.URL != "" {
		b.WriteString("\n" + Styles.Caption.Render("URL") + "  " + Styles.Link.Render(r.URL))
	}

	switch {
	case r.Errored():
		b.WriteString("\n" + Styles.Error.Render("Summary unavailable"))
	case r.HasSummary():
		if lines := Snippets(r, u.maxWords); len(lines) > 0 {
			b.WriteString("\n" + Styles.Caption.Render("Snippet"))
			for _, s := range lines {
				b.WriteString("\n  " + s)
			}
		}
	case r.Loading():
		b.WriteString("\n" + Styles.Muted.Render("Summary pending"))
	}
	return b.String()
}

func quoteIfSpaced(s string) string {
	if strings.ContainsAny(s, " \t") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// NoSources displays a message when no sources were found
func (u *terminalChatUI) NoSources() {
	if u.personality == PersonalityMachine {
		u.writeln("SOURCES: none")
		return
	}
	if u.personality != PersonalityMinimal {
		u.writeln(Styles.Muted.Render("(No sources cited)"))
	}
}

// Trace displays the trace id
func (u *terminalChatUI) Trace(traceID string) {
	if traceID == "" {
		return
	}
	if u.personality == PersonalityMachine {
		u.write("TRACE_ID: %s\n", traceID)
		return
	}
	u.writeln(Styles.Muted.Render("trace " + traceID))
}

// StreamError displays a backend error
func (u *terminalChatUI) StreamError(msg string) {
	if u.personality == PersonalityMachine {
		u.write("STREAM_ERROR: %s\n", msg)
		return
	}
	u.write("%s %s\n", IconError.Render(), Styles.Error.Render("Backend error: "+msg))
}

// Error displays a client error
func (u *terminalChatUI) Error(err error) {
	if u.personality == PersonalityMachine {
		u.write("CHAT_ERROR: %v\n", err)
		return
	}
	u.write("%s %s\n", IconError.Render(), Styles.Error.Render(fmt.Sprintf("Chat error: %v", err)))
}

// Suggestions lists the common questions
func (u *terminalChatUI) Suggestions(queries []string) {
	if len(queries) == 0 {
		return
	}
	if u.personality == PersonalityMachine {
		for _, q := range queries {
			u.write("SUGGESTION: %s\n", q)
		}
		return
	}

	u.writeln(Styles.Subtitle.Render(HeadingSuggested))
	for i, q := range queries {
		u.write("  %d. %s\n", i+1, q)
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/askdesk/pkg/conversation"
	"github.com/AleutianAI/askdesk/pkg/feedback"
	"github.com/AleutianAI/askdesk/pkg/sources"
	"github.com/AleutianAI/askdesk/pkg/ux"
	"github.com/charmbracelet/lipgloss"
)

const (
	headerHeight = 3
	footerHeight = 2
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading...\n"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	title := ux.Styles.Title.Render("askdesk")
	status := m.snapshot.Status
	right := ""
	switch {
	case status.InProgress() && m.snapshot.StatusText != "":
		right = ux.Styles.Muted.Render(m.snapshot.StatusText)
	case status != conversation.StatusIdle:
		right = ux.Styles.Muted.Render(status.String())
	}
	gap := max(m.width-lipgloss.Width(title)-lipgloss.Width(right), 1)

	return title + strings.Repeat(" ", gap) + right + "\n" +
		m.input.View() + "\n" +
		ux.Styles.Muted.Render(strings.Repeat("─", max(m.width, 1)))
}

func (m Model) renderFooter() string {
	var parts []string
	if !m.cfg.HideHints {
		for _, b := range m.keys.help(m.listFocus) {
			h := b.Help()
			if h.Key == "" {
				continue
			}
			parts = append(parts, h.Key+" "+ux.Styles.Muted.Render(h.Desc))
		}
	}
	help := strings.Join(parts, "  ")
	if m.notice != "" {
		return ux.Styles.Warning.Render(m.notice) + "\n" + help
	}
	return "\n" + help
}

// renderContent builds the scrollable pane and the name -> line offset map
// of every rendered source block.
func (m Model) renderContent() (string, map[string]int) {
	offsets := map[string]int{}
	if m.idle() {
		return m.renderSuggestions(), offsets
	}

	var b strings.Builder
	conv := m.snapshot.Conversation

	if !conv.HasSummary() {
		switch {
		case m.snapshot.Status.InProgress():
			b.WriteString(ux.Styles.Muted.Render(m.loadingText()))
			b.WriteString("\n")
		case m.snapshot.Status == conversation.StatusAborted:
			b.WriteString(ux.Styles.Muted.Render("Stopped before an answer arrived."))
			b.WriteString("\n")
		}
		b.WriteString(m.renderStatusLine())
		return b.String(), offsets
	}

	b.WriteString(m.renderAnswerHeader())
	b.WriteString("\n")
	b.WriteString(m.markdown.Render(ux.FormatAnswer(conv.Summary().Content)))
	b.WriteString("\n")
	b.WriteString(m.renderAssistantFooter(conv.Summary()))

	for i, turn := range conv.Turns() {
		b.WriteString("\n")
		if turn.Role == conversation.RoleHuman {
			b.WriteString(ux.Styles.HumanBubble.Render("> " + turn.Content))
			b.WriteString("\n")
			continue
		}
		last := i == len(conv.Turns())-1
		if turn.Content == "" && last && m.snapshot.Status.InProgress() {
			b.WriteString(ux.Styles.Muted.Render(m.loadingText()))
			b.WriteString("\n")
			continue
		}
		b.WriteString(m.markdown.Render(ux.FormatAnswer(turn.Content)))
		b.WriteString("\n")
		b.WriteString(m.renderAssistantFooter(turn))
	}

	b.WriteString(m.renderStatusLine())

	if len(m.records) > 0 {
		b.WriteString("\n")
		b.WriteString(ux.Styles.Subtitle.Render(ux.HeadingSources))
		b.WriteString("\n")
		for i, r := range m.records {
			offsets[r.Name] = strings.Count(b.String(), "\n")
			b.WriteString(m.renderSourceBlock(i, r))
			b.WriteString("\n")
		}
	}
	return b.String(), offsets
}

func (m Model) renderSuggestions() string {
	var b strings.Builder
	b.WriteString(ux.Styles.Subtitle.Render(ux.HeadingSuggested))
	b.WriteString("\n\n")
	for i, q := range m.cfg.SuggestedQueries {
		line := fmt.Sprintf("%d. %s", i+1, q)
		if m.listFocus && i == m.selected {
			b.WriteString(ux.Styles.Chip.Render(line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderAnswerHeader() string {
	h := ux.Styles.Title.Render(ux.HeadingAnswer)
	if m.cfg.PoweredBy != "" {
		h += "  " + ux.Styles.Muted.Render(ux.PoweredByPrefix+m.cfg.PoweredBy)
	}
	return h
}

// renderAssistantFooter shows the citation chips and the feedback controls
// of one answer.
func (m Model) renderAssistantFooter(msg conversation.Message) string {
	var b strings.Builder
	if len(msg.Sources) > 0 {
		chips := make([]string, 0, len(msg.Sources))
		for i, name := range msg.Sources {
			label := fmt.Sprintf("[%d] %s", i+1, name)
			if r, ok := m.sources.Store().Get(name); ok && r.Confidence != nil {
				label += " · " + ux.FormatConfidence(*r.Confidence)
			}
			chips = append(chips, ux.Styles.Highlight.Render(label))
		}
		b.WriteString(strings.Join(chips, "  "))
		b.WriteString("\n")
	}
	if msg.TraceID != "" {
		b.WriteString(m.renderFeedback(msg.TraceID))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderFeedback(traceID string) string {
	status := m.tracker.Status(traceID)
	up := string(ux.IconThumbUp) + " +"
	down := string(ux.IconThumbDown) + " -"

	switch status.State {
	case feedback.Voted:
		if status.Vote == feedback.Up {
			return ux.Styles.Success.Render(up) + "  " + ux.Styles.Muted.Render(down)
		}
		return ux.Styles.Muted.Render(up) + "  " + ux.Styles.Error.Render(down)
	case feedback.Submitting:
		return ux.Styles.Muted.Render(up + "  " + down + "  sending")
	default:
		return up + "  " + down
	}
}

func (m Model) renderStatusLine() string {
	switch m.snapshot.Status {
	case conversation.StatusFailed:
		return ux.Styles.Error.Render(string(ux.IconError)+" "+m.snapshot.Err) + "\n" +
			ux.Styles.Muted.Render("ctrl+r to retry, ctrl+l to clear") + "\n"
	case conversation.StatusAborted:
		return ux.Styles.Muted.Render("Stopped") + "\n"
	}
	return ""
}

// renderSourceBlock renders one source at its current animation height and
// measures its natural height for the controller.
func (m Model) renderSourceBlock(i int, r sources.Record) string {
	full := m.sourceLines(i, r)
	m.sources.Measure(r.Name, len(full))

	visible := min(m.sources.VisibleHeight(r.Name), len(full))
	style := ux.Styles.SourceBlock
	if m.listFocus && i == m.selected {
		style = ux.Styles.SourceFocus
	}
	return style.Render(strings.Join(full[:max(visible, 1)], "\n"))
}

// sourceLines returns the fully expanded block, one element per terminal line.
func (m Model) sourceLines(i int, r sources.Record) []string {
	marker := ux.IconCollapsed
	if r.Expanded {
		marker = ux.IconExpanded
	}
	title := fmt.Sprintf("%s %d. %s %s", marker, i+1, ux.SourceIcon(r.Icon), ux.Styles.Bold.Render(r.Name))
	switch {
	case r.Errored():
		title += " " + ux.IconError.Render()
	case r.Enhanced():
		title += " " + ux.IconSuccess.Render()
	}

	var body []string
	if r.Confidence != nil {
		body = append(body, ux.Styles.Highlight.Render(ux.FormatConfidence(*r.Confidence)))
	}
	if r.UpdatedAt != nil {
		body = append(body, ux.Styles.Caption.Render(ux.FormatUpdatedAt(*r.UpdatedAt)))
	}
	if r.URL != "" {
		body = append(body, ux.Styles.Caption.Render("URL")+"  "+ux.Styles.Link.Render(r.URL))
	}

	switch {
	case r.Errored():
		body = append(body, ux.Styles.Error.Render("Summary unavailable"))
	case r.HasSummary():
		if lines := ux.Snippets(r, m.cfg.SummaryWords); len(lines) > 0 {
			body = append(body, ux.Styles.Caption.Render("Snippet"))
			for _, s := range lines {
				body = append(body, wrapLines(s, m.contentWidth()-2)...)
			}
		}
	case r.Loading():
		body = append(body, ux.Styles.Muted.Render(m.loadingText()))
	}

	return append([]string{title}, body...)
}

func (m Model) loadingText() string {
	if m.loadingStart.IsZero() {
		return ux.LoadingFrame(0)
	}
	return ux.LoadingFrame(time.Since(m.loadingStart))
}

// wrapLines word-wraps text to width columns.
func wrapLines(text string, width int) []string {
	wrapped := lipgloss.NewStyle().Width(max(width, 10)).Render(text)
	lines := strings.Split(wrapped, "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " ")
	}
	return lines
}

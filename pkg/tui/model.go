// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tui provides the interactive askdesk terminal application.
//
// # Description
//
// The model shows a query input, the streamed answer with its citation chips
// and feedback controls, follow-up turns, and the expandable source blocks.
// Network work runs in tea.Cmd goroutines through the conversation controller
// and the feedback tracker; results come back as messages.
//
// # Thread Safety
//
// Model state is owned by the bubbletea event loop. The shared controllers it
// holds pointers to are safe for concurrent use.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/askdesk/pkg/conversation"
	"github.com/AleutianAI/askdesk/pkg/feedback"
	"github.com/AleutianAI/askdesk/pkg/sources"
	"github.com/AleutianAI/askdesk/pkg/ux"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// Messages
// =============================================================================

// streamUpdateMsg signals that the conversation controller changed state.
type streamUpdateMsg struct{}

// frameMsg advances the expand/collapse animation.
type frameMsg struct{}

// loadingTickMsg advances the loading text.
type loadingTickMsg struct{}

// scrollMsg scrolls the block tagged name into view.
type scrollMsg struct{ name string }

// voteDoneMsg reports a finished feedback submission.
type voteDoneMsg struct {
	traceID string
	vote    feedback.Vote
	err     error
}

// voteFailureMsg carries a failure published by the tracker.
type voteFailureMsg feedback.Failure

// =============================================================================
// Config
// =============================================================================

// Config configures the application model.
type Config struct {
	// SuggestedQueries are listed under "Common questions" while idle.
	SuggestedQueries []string

	// SummaryWords is the snippet word budget (default 150).
	SummaryWords int

	// PoweredBy names the answer backend in the answer header. Optional.
	PoweredBy string

	// Logger receives UI events. It must not write to the terminal.
	Logger *slog.Logger

	// HideHints drops the key binding footer. Notices still show.
	HideHints bool
}

// =============================================================================
// Model
// =============================================================================

// Model is the bubbletea model for askdesk.
type Model struct {
	cfg  Config
	ctx  context.Context
	keys keyMap

	conv    *conversation.Controller
	sources *sources.Controller
	tracker *feedback.Tracker

	input    textinput.Model
	viewport viewport.Model
	markdown *ux.MarkdownRenderer

	width  int
	height int
	ready  bool

	listFocus bool
	selected  int

	snapshot conversation.Snapshot
	records  []sources.Record
	offsets  map[string]int

	loadingStart     time.Time
	frameScheduled   bool
	loadingScheduled bool

	notice   string
	quitting bool
}

// New creates the application model. ctx bounds every request the model
// starts; cancel it to stop in-flight work on exit.
func New(ctx context.Context, conv *conversation.Controller, srcs *sources.Controller, tracker *feedback.Tracker, cfg Config) Model {
	if cfg.SummaryWords <= 0 {
		cfg.SummaryWords = sources.DefaultSummaryWords
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	input := textinput.New()
	input.Placeholder = "Ask a question"
	input.Prompt = "› "
	input.CharLimit = 500
	input.Focus()

	m := Model{
		cfg:      cfg,
		ctx:      ctx,
		keys:     defaultKeyMap(),
		conv:     conv,
		sources:  srcs,
		tracker:  tracker,
		input:    input,
		markdown: ux.NewMarkdownRenderer(ux.DefaultWrapWidth),
		offsets:  map[string]int{},
	}
	m.snapshot = conv.Snapshot()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForUpdate(), m.waitForFailure())
}

func (m Model) waitForUpdate() tea.Cmd {
	updates, done := m.conv.Updates(), m.ctx.Done()
	return func() tea.Msg {
		select {
		case <-updates:
			return streamUpdateMsg{}
		case <-done:
			return nil
		}
	}
}

func (m Model) waitForFailure() tea.Cmd {
	failures, done := m.tracker.Failures(), m.ctx.Done()
	return func() tea.Msg {
		select {
		case f := <-failures:
			return voteFailureMsg(f)
		case <-done:
			return nil
		}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := max(m.height-headerHeight-footerHeight, 1)
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.input.Width = max(m.width-4, 10)
		m.markdown.SetWidth(m.contentWidth())
		m.refresh()
		cmds = append(cmds, m.scheduleTicks()...)

	case streamUpdateMsg:
		m.refresh()
		cmds = append(cmds, m.waitForUpdate())
		cmds = append(cmds, m.scheduleTicks()...)

	case frameMsg:
		m.frameScheduled = false
		m.sources.Tick()
		m.refresh()
		cmds = append(cmds, m.scheduleTicks()...)

	case loadingTickMsg:
		m.loadingScheduled = false
		m.refresh()
		cmds = append(cmds, m.scheduleTicks()...)

	case scrollMsg:
		if off, ok := m.offsets[msg.name]; ok && m.ready {
			m.viewport.SetYOffset(off)
		}

	case voteDoneMsg:
		if msg.err == nil {
			m.notice = "Thanks for the feedback"
		}
		m.refresh()

	case voteFailureMsg:
		m.notice = fmt.Sprintf("Feedback not recorded: %v", msg.Err)
		m.refresh()
		cmds = append(cmds, m.waitForFailure())

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, tea.Batch(cmds...)
}

// =============================================================================
// Key handling
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.conv.Abort()
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Stop):
		if m.snapshot.Status.InProgress() {
			m.conv.Abort()
			m.notice = "Stopped"
		} else if m.listFocus {
			m.setListFocus(false)
		}
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Retry):
		m.sources.Reset()
		if err := m.conv.Retry(m.ctx); err != nil {
			m.notice = err.Error()
		} else {
			m.startedRequest()
			m.input.SetValue(m.conv.Snapshot().LastQuery)
		}
		m.refresh()
		return m, tea.Batch(m.scheduleTicks()...)

	case key.Matches(msg, m.keys.Clear):
		m.conv.Reset()
		m.sources.Reset()
		m.input.SetValue("")
		m.selected = 0
		m.notice = ""
		m.setListFocus(false)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Focus):
		m.setListFocus(!m.listFocus)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	if m.listFocus {
		return m.handleListKey(msg)
	}
	return m.handleInputKey(msg)
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Submit):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		if m.snapshot.Conversation.HasSummary() && !m.snapshot.Status.InProgress() {
			return m.followUp(text)
		}
		return m.search(text)

	case key.Matches(msg, m.keys.NewSearch):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		return m.search(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	idle := m.idle()
	n := len(m.records)
	if idle {
		n = len(m.cfg.SuggestedQueries)
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.selected < n-1 {
			m.selected++
		}
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Toggle):
		if idle {
			return m.runSuggestion(m.selected)
		}
		return m.click(sources.Target{Kind: sources.TargetBody})

	case key.Matches(msg, m.keys.OpenLink):
		if idle || m.selected >= len(m.records) || m.records[m.selected].URL == "" {
			return m, nil
		}
		return m.click(sources.Target{Kind: sources.TargetLink, Href: m.records[m.selected].URL})

	case key.Matches(msg, m.keys.VoteUp):
		return m.vote(feedback.Up)

	case key.Matches(msg, m.keys.VoteDown):
		return m.vote(feedback.Down)
	}

	if s := msg.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
		i := int(s[0] - '1')
		if idle {
			return m.runSuggestion(i)
		}
		return m.focusCitation(i)
	}
	return m, nil
}

// =============================================================================
// Actions
// =============================================================================

func (m Model) search(query string) (tea.Model, tea.Cmd) {
	m.sources.Reset()
	if err := m.conv.Search(m.ctx, query); err != nil {
		m.notice = err.Error()
		return m, nil
	}
	m.cfg.Logger.Info("search submitted", "query_length", len(query))
	m.startedRequest()
	m.refresh()
	return m, tea.Batch(m.scheduleTicks()...)
}

func (m Model) followUp(question string) (tea.Model, tea.Cmd) {
	if err := m.conv.Ask(m.ctx, question); err != nil {
		m.notice = err.Error()
		return m, nil
	}
	m.input.SetValue("")
	m.startedRequest()
	m.refresh()
	m.viewport.GotoBottom()
	return m, tea.Batch(m.scheduleTicks()...)
}

func (m Model) runSuggestion(i int) (tea.Model, tea.Cmd) {
	if i < 0 || i >= len(m.cfg.SuggestedQueries) {
		return m, nil
	}
	q := m.cfg.SuggestedQueries[i]
	m.input.SetValue(q)
	m.setListFocus(false)
	return m.search(q)
}

func (m Model) click(target sources.Target) (tea.Model, tea.Cmd) {
	if m.selected >= len(m.records) {
		return m, nil
	}
	name := m.records[m.selected].Name
	res, err := m.sources.HandleClick(name, target)
	if err != nil {
		m.notice = err.Error()
		return m, nil
	}
	if res.Action == sources.ClickNavigate {
		m.notice = "Open: " + res.Href
	}
	m.refresh()
	return m, tea.Batch(m.scheduleTicks()...)
}

// focusCitation expands the i-th source cited by the latest answer and
// scrolls to it once the expansion has settled.
func (m Model) focusCitation(i int) (tea.Model, tea.Cmd) {
	cited := m.latestCitations()
	if i < 0 || i >= len(cited) {
		return m, nil
	}
	req, err := m.sources.FocusCitation(cited[i])
	if err != nil {
		m.notice = err.Error()
		return m, nil
	}
	for j, r := range m.records {
		if r.Name == req.Name {
			m.selected = j
		}
	}
	m.refresh()

	cmds := m.scheduleTicks()
	cmds = append(cmds, tea.Tick(req.Delay, func(time.Time) tea.Msg {
		return scrollMsg{name: req.Name}
	}))
	return m, tea.Batch(cmds...)
}

func (m Model) vote(v feedback.Vote) (tea.Model, tea.Cmd) {
	traceID := m.snapshot.Conversation.LatestTraceID()
	if traceID == "" || m.tracker.ControlsDisabled(traceID) {
		return m, nil
	}

	ctx, tracker := m.ctx, m.tracker
	return m, func() tea.Msg {
		err := tracker.Submit(ctx, traceID, v)
		return voteDoneMsg{traceID: traceID, vote: v, err: err}
	}
}

// =============================================================================
// State helpers
// =============================================================================

func (m *Model) setListFocus(on bool) {
	m.listFocus = on
	m.selected = 0
	if on {
		m.input.Blur()
	} else {
		m.input.Focus()
	}
}

func (m *Model) startedRequest() {
	m.loadingStart = time.Now()
	m.notice = ""
	m.selected = 0
}

func (m Model) idle() bool {
	return m.snapshot.Status == conversation.StatusIdle && len(m.snapshot.Conversation) == 0
}

// latestCitations returns the source names cited by the newest assistant
// message that cites any.
func (m Model) latestCitations() []string {
	conv := m.snapshot.Conversation
	for i := len(conv) - 1; i >= 0; i-- {
		if conv[i].Role == conversation.RoleAssistant && len(conv[i].Sources) > 0 {
			return conv[i].Sources
		}
	}
	return nil
}

func (m Model) needsLoadingText() bool {
	if m.snapshot.Status.InProgress() {
		if !m.snapshot.Conversation.HasSummary() || m.snapshot.Conversation.Last().Content == "" {
			return true
		}
	}
	for _, r := range m.records {
		if r.Loading() && !r.HasSummary() {
			return true
		}
	}
	return false
}

func (m *Model) scheduleTicks() []tea.Cmd {
	var cmds []tea.Cmd
	if !m.frameScheduled && m.sources.Animating() {
		m.frameScheduled = true
		cmds = append(cmds, tea.Tick(sources.FrameInterval, func(time.Time) tea.Msg { return frameMsg{} }))
	}
	if !m.loadingScheduled && m.needsLoadingText() {
		m.loadingScheduled = true
		cmds = append(cmds, tea.Tick(ux.DotInterval, func(time.Time) tea.Msg { return loadingTickMsg{} }))
	}
	return cmds
}

// refresh re-reads the shared state and rebuilds the viewport content.
func (m *Model) refresh() {
	m.snapshot = m.conv.Snapshot()
	m.records = m.sources.Store().List()

	n := len(m.records)
	if m.idle() {
		n = len(m.cfg.SuggestedQueries)
	}
	if m.selected >= n {
		m.selected = max(n-1, 0)
	}

	content, offsets := m.renderContent()
	m.offsets = offsets
	if m.ready {
		m.viewport.SetContent(content)
	}
}

func (m Model) contentWidth() int {
	if m.width <= 0 {
		return ux.DefaultWrapWidth
	}
	return max(m.width-4, 20)
}

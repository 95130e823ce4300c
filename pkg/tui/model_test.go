// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tui

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/AleutianAI/askdesk/pkg/conversation"
	"github.com/AleutianAI/askdesk/pkg/feedback"
	"github.com/AleutianAI/askdesk/pkg/sources"
	"github.com/AleutianAI/askdesk/pkg/ux"
	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// Fixtures
// =============================================================================

type fakeAsker struct {
	mu        sync.Mutex
	questions []string
	events    []ux.StreamEvent
	block     chan struct{}
}

func (f *fakeAsker) Ask(ctx context.Context, question, sessionID string, cb ux.StreamCallback) error {
	f.mu.Lock()
	f.questions = append(f.questions, question)
	events, block := f.events, f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-block:
		}
	}
	for i, e := range events {
		e.Index = i
		if err := cb(e); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeAsker) asked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.questions...)
}

func answerEvents() []ux.StreamEvent {
	return []ux.StreamEvent{
		{Type: ux.StreamEventSessionID, Content: "s-1"},
		{Type: ux.StreamEventSource, Payload: []byte(`{"name":"Lease.pdf","icon":"pdf","confidence":87.5,"loading":true}`)},
		{Type: ux.StreamEventSource, Payload: []byte(`{"name":"Memo","url":"https://docs.example.com/memo"}`)},
		{Type: ux.StreamEventToken, Content: "Rent is due"},
		{Type: ux.StreamEventToken, Content: " monthly."},
		{Type: ux.StreamEventEnrich, Payload: []byte(`{"name":"Lease.pdf","enhanced":true,"summary":["Rent clause, section 4."]}`)},
		{Type: ux.StreamEventTraceID, Content: "t-1"},
		{Type: ux.StreamEventDone},
	}
}

type harness struct {
	asker   *fakeAsker
	conv    *conversation.Controller
	sources *sources.Controller
	votes   atomic.Int32
	model   Model
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{asker: &fakeAsker{events: answerEvents()}}
	store := sources.NewStore()
	h.sources = sources.NewController(store)
	h.conv = conversation.NewController(h.asker, store, nil)
	tracker := feedback.NewTracker(feedback.SubmitterFunc(func(context.Context, string, int) error {
		h.votes.Add(1)
		return nil
	}), nil)

	h.model = New(ctx, h.conv, h.sources, tracker, Config{
		SuggestedQueries: []string{"What does ATD stand for in a legal context?", "What qualifies a lawsuit as a class action?"},
		PoweredBy:        "devserver",
	})
	h.send(tea.WindowSizeMsg{Width: 100, Height: 40})
	return h
}

func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

func (h *harness) key(s string) tea.Cmd {
	switch s {
	case "tab":
		return h.send(tea.KeyMsg{Type: tea.KeyTab})
	case "enter":
		return h.send(tea.KeyMsg{Type: tea.KeyEnter})
	case "esc":
		return h.send(tea.KeyMsg{Type: tea.KeyEsc})
	case "space":
		return h.send(tea.KeyMsg{Type: tea.KeySpace})
	case "ctrl+l":
		return h.send(tea.KeyMsg{Type: tea.KeyCtrlL})
	case "ctrl+r":
		return h.send(tea.KeyMsg{Type: tea.KeyCtrlR})
	case "ctrl+n":
		return h.send(tea.KeyMsg{Type: tea.KeyCtrlN})
	default:
		return h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	}
}

func (h *harness) typeText(s string) {
	for _, r := range s {
		h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

// settle waits for the stream goroutine and applies its updates.
func (h *harness) settle() {
	h.conv.Wait()
	h.send(streamUpdateMsg{})
}

// animate runs animation frames until every block reached its target.
func (h *harness) animate(t *testing.T) {
	t.Helper()
	for i := 0; i < 100; i++ {
		if !h.sources.Animating() {
			return
		}
		h.send(frameMsg{})
	}
	t.Fatal("animation did not settle")
}

// =============================================================================
// Idle view
// =============================================================================

func TestModel_IdleShowsSuggestions(t *testing.T) {
	h := newHarness(t)

	view := h.model.View()
	if !strings.Contains(view, ux.HeadingSuggested) {
		t.Errorf("expected %q heading in idle view", ux.HeadingSuggested)
	}
	if !strings.Contains(view, "What does ATD stand for") {
		t.Error("expected suggested query in idle view")
	}
}

func TestModel_SuggestionByNumber(t *testing.T) {
	h := newHarness(t)

	h.key("tab")
	if !h.model.listFocus {
		t.Fatal("expected list focus after tab")
	}
	h.key("2")
	h.settle()

	asked := h.asker.asked()
	if len(asked) != 1 || asked[0] != "What qualifies a lawsuit as a class action?" {
		t.Fatalf("unexpected questions %v", asked)
	}
	if h.model.input.Value() != asked[0] {
		t.Errorf("expected input to hold the suggestion, got %q", h.model.input.Value())
	}
	if h.model.listFocus {
		t.Error("running a suggestion should return focus to the input")
	}
}

// =============================================================================
// Search and answer rendering
// =============================================================================

func TestModel_SearchRendersAnswerAndSources(t *testing.T) {
	h := newHarness(t)

	h.typeText("When is rent due?")
	h.key("enter")
	h.settle()

	if got := h.asker.asked(); len(got) != 1 || got[0] != "When is rent due?" {
		t.Fatalf("unexpected questions %v", got)
	}

	content, offsets := h.model.renderContent()
	for _, want := range []string{ux.HeadingAnswer, "Powered by devserver", "Rent is due", ux.HeadingSources, "Lease.pdf", "Memo", "Confidence: 87.5%"} {
		if !strings.Contains(content, want) {
			t.Errorf("expected %q in content", want)
		}
	}
	if _, ok := offsets["Lease.pdf"]; !ok {
		t.Error("expected an offset for Lease.pdf")
	}
	if offsets["Memo"] <= offsets["Lease.pdf"] {
		t.Errorf("expected Memo below Lease.pdf, got %v", offsets)
	}
	if h.model.snapshot.Status != conversation.StatusDone {
		t.Errorf("expected done, got %v", h.model.snapshot.Status)
	}
}

func TestModel_FollowUpAfterAnswer(t *testing.T) {
	h := newHarness(t)

	h.typeText("first")
	h.key("enter")
	h.settle()

	h.model.input.SetValue("second")
	h.key("enter")
	h.settle()

	if got := h.asker.asked(); len(got) != 2 || got[1] != "second" {
		t.Fatalf("unexpected questions %v", got)
	}
	if len(h.model.snapshot.Conversation) != 3 {
		t.Errorf("expected summary plus one turn pair, got %d messages", len(h.model.snapshot.Conversation))
	}
	if h.model.input.Value() != "" {
		t.Errorf("expected input cleared after follow-up, got %q", h.model.input.Value())
	}
}

func TestModel_NewSearchReplacesConversation(t *testing.T) {
	h := newHarness(t)

	h.typeText("first")
	h.key("enter")
	h.settle()

	h.model.input.SetValue("fresh")
	h.key("ctrl+n")
	h.settle()

	if len(h.model.snapshot.Conversation) != 1 {
		t.Errorf("expected a new conversation, got %d messages", len(h.model.snapshot.Conversation))
	}
}

// =============================================================================
// Source interaction
// =============================================================================

func TestModel_ToggleSourceAnimates(t *testing.T) {
	h := newHarness(t)
	h.typeText("q")
	h.key("enter")
	h.settle()

	if got := h.sources.VisibleHeight("Lease.pdf"); got != sources.CollapsedHeight {
		t.Fatalf("expected collapsed block, got height %d", got)
	}

	h.key("tab")
	cmd := h.key("enter")
	if cmd == nil {
		t.Error("expected an animation tick after toggling")
	}

	rec, _ := h.sources.Store().Get("Lease.pdf")
	if !rec.Expanded {
		t.Fatal("expected Lease.pdf expanded")
	}
	h.animate(t)

	if h.sources.VisibleHeight("Lease.pdf") != h.sources.TargetHeight("Lease.pdf") {
		t.Error("visible height did not reach target")
	}
	if h.sources.TargetHeight("Lease.pdf") <= sources.CollapsedHeight {
		t.Error("expanded block should be taller than its title row")
	}

	other, _ := h.sources.Store().Get("Memo")
	if other.Expanded {
		t.Error("toggling one block must not expand another")
	}

	h.key("space")
	h.animate(t)
	if h.sources.VisibleHeight("Lease.pdf") != sources.CollapsedHeight {
		t.Error("expected block collapsed again")
	}
}

func TestModel_OpenLinkDoesNotToggle(t *testing.T) {
	h := newHarness(t)
	h.typeText("q")
	h.key("enter")
	h.settle()

	h.key("tab")
	h.key("j")
	h.key("o")

	rec, _ := h.sources.Store().Get("Memo")
	if rec.Expanded {
		t.Error("opening a link must not toggle the block")
	}
	if h.model.notice != "Open: https://docs.example.com/memo" {
		t.Errorf("unexpected notice %q", h.model.notice)
	}
}

func TestModel_FocusCitationExpandsAndScrolls(t *testing.T) {
	h := newHarness(t)
	h.typeText("q")
	h.key("enter")
	h.settle()

	h.key("tab")
	cmd := h.key("2")
	if cmd == nil {
		t.Fatal("expected delayed scroll command")
	}

	rec, _ := h.sources.Store().Get("Memo")
	if !rec.Expanded {
		t.Fatal("expected cited source expanded")
	}
	if h.model.selected != 1 {
		t.Errorf("expected selection on the cited source, got %d", h.model.selected)
	}

	h.animate(t)
	h.send(scrollMsg{name: "Memo"})
	want := h.model.offsets["Memo"]
	if h.model.viewport.YOffset != min(want, max(h.model.viewport.TotalLineCount()-h.model.viewport.Height, 0)) {
		t.Errorf("expected viewport at %d, got %d", want, h.model.viewport.YOffset)
	}
}

// =============================================================================
// Feedback
// =============================================================================

func TestModel_VoteOnce(t *testing.T) {
	h := newHarness(t)
	h.typeText("q")
	h.key("enter")
	h.settle()
	h.key("tab")

	cmd := h.key("+")
	if cmd == nil {
		t.Fatal("expected a vote command")
	}
	h.send(cmd())

	if h.votes.Load() != 1 {
		t.Fatalf("expected 1 submission, got %d", h.votes.Load())
	}
	if h.model.notice != "Thanks for the feedback" {
		t.Errorf("unexpected notice %q", h.model.notice)
	}

	if cmd := h.key("-"); cmd != nil {
		t.Error("controls should be disabled after a vote")
	}
	if h.votes.Load() != 1 {
		t.Errorf("expected still 1 submission, got %d", h.votes.Load())
	}
}

func TestModel_VoteFailureNotice(t *testing.T) {
	h := newHarness(t)
	h.send(voteFailureMsg{TraceID: "t-1", Vote: feedback.Up, Err: context.DeadlineExceeded})

	if !strings.Contains(h.model.notice, "Feedback not recorded") {
		t.Errorf("unexpected notice %q", h.model.notice)
	}
}

// =============================================================================
// Stop / Retry / Clear
// =============================================================================

func TestModel_StopAbortsStream(t *testing.T) {
	h := newHarness(t)
	h.asker.block = make(chan struct{})

	h.typeText("q")
	h.key("enter")
	if !h.model.snapshot.Status.InProgress() {
		t.Fatal("expected a request in progress")
	}

	h.key("esc")
	h.conv.Wait()
	h.send(streamUpdateMsg{})

	if h.model.snapshot.Status != conversation.StatusAborted {
		t.Errorf("expected aborted, got %v", h.model.snapshot.Status)
	}
	if h.sources.Store().Len() != 0 {
		t.Error("no sources should merge after stop")
	}
}

func TestModel_RetryAndClear(t *testing.T) {
	h := newHarness(t)
	h.typeText("rent")
	h.key("enter")
	h.settle()

	h.key("ctrl+r")
	h.settle()
	if got := h.asker.asked(); len(got) != 2 || got[1] != "rent" {
		t.Fatalf("expected retry of last query, got %v", got)
	}

	h.key("ctrl+l")
	if h.model.input.Value() != "" {
		t.Errorf("expected query text cleared, got %q", h.model.input.Value())
	}
	if h.sources.Store().Len() != 0 {
		t.Error("expected sources cleared")
	}
	if !strings.Contains(h.model.View(), ux.HeadingSuggested) {
		t.Error("expected idle view after clear")
	}

	h.key("ctrl+r")
	if !strings.Contains(h.model.notice, "no previous query") {
		t.Errorf("unexpected notice %q", h.model.notice)
	}
}

func TestModel_LoadingTextWhileWaiting(t *testing.T) {
	h := newHarness(t)
	h.asker.block = make(chan struct{})

	h.typeText("q")
	cmd := h.key("enter")
	if cmd == nil {
		t.Error("expected a loading tick to be scheduled")
	}

	content, _ := h.model.renderContent()
	if !strings.Contains(content, "Searching documents") {
		t.Errorf("expected loading text, got %q", content)
	}

	close(h.asker.block)
	h.settle()
}

func TestModel_QuitAborts(t *testing.T) {
	h := newHarness(t)
	cmd := h.send(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if h.model.View() != "" {
		t.Error("expected empty view after quit")
	}
}

func TestFooter_HintsCanBeHidden(t *testing.T) {
	h := newHarness(t)
	if !strings.Contains(h.model.renderFooter(), "ctrl+n") {
		t.Fatalf("expected key hints in footer, got %q", h.model.renderFooter())
	}

	h.model.cfg.HideHints = true
	if footer := h.model.renderFooter(); strings.Contains(footer, "ctrl+n") || strings.Contains(footer, "ctrl+c") {
		t.Errorf("expected no key hints, got %q", footer)
	}

	h.model.notice = "Stopped"
	if footer := h.model.renderFooter(); !strings.Contains(footer, "Stopped") {
		t.Errorf("notice must show with hints hidden, got %q", footer)
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"strings"
	"sync"
	"time"
)

// LoadingPhrases rotate while a summary or answer is still pending.
var LoadingPhrases = []string{
	"Searching documents",
	"Reviewing sources",
	"Analyzing content",
	"Gathering insights",
	"Almost ready",
}

const (
	// DotInterval advances the trailing dots: ".", "..", "...", ".".
	DotInterval = 500 * time.Millisecond

	// PhraseInterval advances to the next phrase, wrapping at the end.
	PhraseInterval = 2 * time.Second
)

// LoadingFrame returns the loading text shown after elapsed time.
func LoadingFrame(elapsed time.Duration) string {
	if elapsed < 0 {
		elapsed = 0
	}
	phrase := LoadingPhrases[int(elapsed/PhraseInterval)%len(LoadingPhrases)]
	dots := int(elapsed/DotInterval)%3 + 1
	return phrase + strings.Repeat(".", dots)
}

// =============================================================================
// LoadingText
// =============================================================================

// LoadingText drives LoadingFrame from a ticker and hands every frame to a
// callback. Used by the non-interactive commands; the TUI uses tea.Tick.
//
// Thread Safety:
//
//	Start and Stop may be called from any goroutine. Stop waits for the
//	ticker goroutine to exit, and the callback is never invoked after Stop
//	returns.
type LoadingText struct {
	onFrame func(frame string)

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	started time.Time
}

// NewLoadingText creates a loading animation that reports frames to onFrame.
func NewLoadingText(onFrame func(frame string)) *LoadingText {
	return &LoadingText{onFrame: onFrame}
}

// Start begins the animation. The first frame is delivered immediately.
// Calling Start on a running animation is a no-op.
func (l *LoadingText) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop != nil {
		return
	}

	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	l.started = time.Now()
	l.onFrame(LoadingFrame(0))

	go l.run(l.started, l.stop, l.done)
}

func (l *LoadingText) run(started time.Time, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(DotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			l.onFrame(LoadingFrame(now.Sub(started)))
		}
	}
}

// Stop ends the animation and waits for the ticker goroutine to exit.
func (l *LoadingText) Stop() {
	l.mu.Lock()
	stop, done := l.stop, l.done
	l.stop, l.done = nil, nil
	l.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether the animation is active.
func (l *LoadingText) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stop != nil
}

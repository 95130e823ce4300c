// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sources

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// CollapsedHeight is the height of a collapsed block: its title row.
	CollapsedHeight = 1

	// ScrollSettleDelay is how long the view waits after a citation focus
	// before scrolling, so the expand animation has settled.
	ScrollSettleDelay = 300 * time.Millisecond

	// FrameInterval is the spacing between animation frames.
	FrameInterval = 30 * time.Millisecond

	// AnimationFraction is the share of the remaining distance covered per frame.
	AnimationFraction = 0.35
)

// =============================================================================
// Click Handling Types
// =============================================================================

// TargetKind identifies what part of a block received a click.
type TargetKind int

const (
	// TargetBody is anywhere in the block that is not a link.
	TargetBody TargetKind = iota

	// TargetLink is the source URL.
	TargetLink
)

// Target describes the element under a click.
type Target struct {
	Kind TargetKind
	Href string
}

// ClickAction is what the view should do after a click.
type ClickAction int

const (
	// ClickToggled means the block's Expanded flag flipped.
	ClickToggled ClickAction = iota

	// ClickNavigate means the click was on a link; open Href, do not toggle.
	ClickNavigate
)

// ClickResult is the outcome of HandleClick.
type ClickResult struct {
	Action   ClickAction
	Expanded bool
	Href     string
}

// ScrollRequest asks the view to bring the block tagged Name into view once
// Delay has elapsed.
type ScrollRequest struct {
	Name  string
	Delay time.Duration
}

// =============================================================================
// Controller
// =============================================================================

type blockHeight struct {
	natural  int
	visible  int
	measured bool
}

// Controller owns the expand/collapse behavior of source blocks.
//
// # Description
//
// The Controller is the only writer of Record.Expanded. It also tracks the
// measured natural height of every block and animates the visible height
// toward its target one frame at a time. Heights are terminal lines.
//
// # Thread Safety
//
// Safe for concurrent use.
type Controller struct {
	store   *Store
	mu      sync.Mutex
	heights map[string]*blockHeight
}

// NewController returns a Controller bound to store.
func NewController(store *Store) *Controller {
	return &Controller{
		store:   store,
		heights: make(map[string]*blockHeight),
	}
}

// Store returns the Store this controller writes to.
func (c *Controller) Store() *Store {
	return c.store
}

// Measure records the natural (fully expanded) height of a block. Call it on
// first render and whenever the block's displayable content changes.
//
// The first measurement snaps the visible height to the target; later ones
// let Tick animate toward the new target.
func (c *Controller) Measure(name string, natural int) {
	if natural < CollapsedHeight {
		natural = CollapsedHeight
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.heights[name]
	if !ok {
		h = &blockHeight{}
		c.heights[name] = h
	}
	h.natural = natural
	if !h.measured {
		h.measured = true
		h.visible = c.targetLocked(name)
	}
}

// TargetHeight returns the natural height when expanded, else CollapsedHeight.
// Unmeasured blocks are treated as collapsed.
func (c *Controller) TargetHeight(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targetLocked(name)
}

func (c *Controller) targetLocked(name string) int {
	h, ok := c.heights[name]
	if !ok || !h.measured {
		return CollapsedHeight
	}
	r, ok := c.store.Get(name)
	if !ok || !r.Expanded {
		return CollapsedHeight
	}
	return h.natural
}

// VisibleHeight returns the current animation frame height of a block.
func (c *Controller) VisibleHeight(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.heights[name]
	if !ok || !h.measured {
		return CollapsedHeight
	}
	return h.visible
}

// Tick advances every block one animation frame and reports whether any block
// is still moving.
func (c *Controller) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	moving := false
	for name, h := range c.heights {
		if !h.measured {
			continue
		}
		target := c.targetLocked(name)
		if h.visible == target {
			continue
		}
		h.visible = step(h.visible, target)
		if h.visible != target {
			moving = true
		}
	}
	return moving
}

// Animating reports whether any block has not reached its target height.
func (c *Controller) Animating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, h := range c.heights {
		if h.measured && h.visible != c.targetLocked(name) {
			return true
		}
	}
	return false
}

// step moves current toward target by AnimationFraction of the distance,
// at least one line.
func step(current, target int) int {
	dist := target - current
	if dist == 0 {
		return target
	}
	delta := int(math.Ceil(math.Abs(float64(dist)) * AnimationFraction))
	if delta < 1 {
		delta = 1
	}
	if dist < 0 {
		delta = -delta
	}
	next := current + delta
	if (dist > 0 && next > target) || (dist < 0 && next < target) {
		return target
	}
	return next
}

// Toggle flips a block and returns its new Expanded value.
func (c *Controller) Toggle(name string) (bool, error) {
	expanded, err := c.store.ToggleExpanded(name)
	if err != nil {
		return false, fmt.Errorf("toggle %q: %w", name, err)
	}
	return expanded, nil
}

// HandleClick routes a click on a block. A click on a link never toggles.
func (c *Controller) HandleClick(name string, target Target) (ClickResult, error) {
	if target.Kind == TargetLink {
		return ClickResult{Action: ClickNavigate, Href: target.Href}, nil
	}
	expanded, err := c.Toggle(name)
	if err != nil {
		return ClickResult{}, err
	}
	return ClickResult{Action: ClickToggled, Expanded: expanded}, nil
}

// FocusCitation force-expands a block (never collapses it) and returns the
// delayed scroll the view should perform.
func (c *Controller) FocusCitation(name string) (ScrollRequest, error) {
	if err := c.store.SetExpanded(name, true); err != nil {
		return ScrollRequest{}, fmt.Errorf("focus citation %q: %w", name, err)
	}
	return ScrollRequest{Name: name, Delay: ScrollSettleDelay}, nil
}

// Reset forgets all measured heights. Call it alongside Store.ResetAll.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heights = make(map[string]*blockHeight)
}

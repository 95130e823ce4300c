// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sources holds the per-source view model behind every answer:
// the record store, the field-level merge applied to backend updates, the
// expand/collapse controller and the summary text normalizer.
package sources

import (
	"strings"
	"time"
)

// =============================================================================
// Enrichment State
// =============================================================================

// EnrichmentState is the lifecycle of a source's late-arriving metadata.
//
// A single enum keeps loading, enhanced and errored mutually exclusive.
type EnrichmentState int

const (
	// StateIdle means no enrichment has been requested or reported.
	StateIdle EnrichmentState = iota

	// StateLoading means the backend is still producing the summary.
	StateLoading

	// StateEnhanced means the summary arrived.
	StateEnhanced

	// StateFailed means enrichment failed for this source only.
	StateFailed
)

// String returns the lowercase state name.
func (s EnrichmentState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateEnhanced:
		return "enhanced"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// =============================================================================
// Record
// =============================================================================

// Summary is an ordered list of summary fragments.
type Summary []string

// Text joins the fragments with a single space.
func (s Summary) Text() string {
	return strings.Join(s, " ")
}

// Record is the merged, renderable view of one cited source.
//
// Name is the identity and never changes. Expanded is UI state owned by the
// Controller; backend updates cannot reach it.
type Record struct {
	Name       string
	Icon       string
	URL        string
	Confidence *float64
	Summary    Summary
	UpdatedAt  *time.Time
	State      EnrichmentState
	Expanded   bool
}

// Loading reports whether enrichment is in progress.
func (r Record) Loading() bool { return r.State == StateLoading }

// Enhanced reports whether the enriched summary arrived.
func (r Record) Enhanced() bool { return r.State == StateEnhanced }

// Errored reports whether enrichment failed.
func (r Record) Errored() bool { return r.State == StateFailed }

// HasSummary reports whether there is any summary text to display.
func (r Record) HasSummary() bool {
	for _, f := range r.Summary {
		if strings.TrimSpace(f) != "" {
			return true
		}
	}
	return false
}

// clone returns a copy that shares no memory with r.
func (r Record) clone() Record {
	out := r
	if r.Confidence != nil {
		c := *r.Confidence
		out.Confidence = &c
	}
	if r.UpdatedAt != nil {
		t := *r.UpdatedAt
		out.UpdatedAt = &t
	}
	if r.Summary != nil {
		out.Summary = append(Summary(nil), r.Summary...)
	}
	return out
}

// =============================================================================
// Update
// =============================================================================

// Update is a partial source payload. Nil fields are absent and leave the
// existing record value in place.
//
// The backend's three enrichment flags stay separate so an update naming one
// flag never rewrites the others. See resolveState.
//
// Update carries no Expanded field.
type Update struct {
	Name       string
	Icon       *string
	URL        *string
	Confidence *float64
	Summary    *Summary
	UpdatedAt  *time.Time
	Loading    *bool
	Enhanced   *bool
	Failed     *bool
}

// resolveState folds the flags present in u into current.
//
// A true flag moves to its state, with failed > enhanced > loading when
// several are true. A false flag returns to Idle only when its own state is
// the current one. Absent flags change nothing.
func (u Update) resolveState(current EnrichmentState) EnrichmentState {
	flags := []struct {
		v     *bool
		state EnrichmentState
	}{
		{u.Failed, StateFailed},
		{u.Enhanced, StateEnhanced},
		{u.Loading, StateLoading},
	}
	for _, f := range flags {
		if f.v != nil && *f.v {
			return f.state
		}
	}
	for _, f := range flags {
		if f.v != nil && current == f.state {
			return StateIdle
		}
	}
	return current
}

// MergeUpdate applies the fields present in u to r and returns the result.
// Fields absent from u are returned untouched; r is not modified.
func MergeUpdate(r Record, u Update) Record {
	out := r.clone()
	if u.Icon != nil {
		out.Icon = *u.Icon
	}
	if u.URL != nil {
		out.URL = *u.URL
	}
	if u.Confidence != nil {
		c := *u.Confidence
		out.Confidence = &c
	}
	if u.Summary != nil {
		out.Summary = append(Summary(nil), (*u.Summary)...)
	}
	if u.UpdatedAt != nil {
		t := *u.UpdatedAt
		out.UpdatedAt = &t
	}
	out.State = u.resolveState(out.State)
	return out
}

// Ptr returns a pointer to v. Handy for building Updates in code and tests.
func Ptr[T any](v T) *T {
	return &v
}

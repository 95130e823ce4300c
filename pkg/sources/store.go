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
	"errors"
	"sync"
)

// ErrUnknownSource is returned when an operation names a source the store
// has never seen (or has forgotten since the last ResetAll).
var ErrUnknownSource = errors.New("unknown source")

// Store holds one Record per source name for the current result set.
//
// # Description
//
// Store is the single owner of source records. Backend events arrive through
// Upsert; UI state changes arrive through ToggleExpanded and SetExpanded,
// which only the Controller calls. Reads return copies so callers can never
// mutate stored records behind the lock.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Updates for one source are applied
// in the order the calls acquire the lock, which for a single stream reader is
// arrival order.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{records: make(map[string]*Record)}
}

// Upsert merges u into the record named u.Name, creating it with defaults
// (Idle, collapsed) if needed. Returns the merged record and whether it was
// created by this call.
func (s *Store) Upsert(u Update) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[u.Name]
	if !ok {
		existing = &Record{Name: u.Name, State: StateIdle}
		s.records[u.Name] = existing
		s.order = append(s.order, u.Name)
	}

	merged := MergeUpdate(*existing, u)
	merged.Name = existing.Name
	merged.Expanded = existing.Expanded
	*existing = merged

	return existing.clone(), !ok
}

// ResetAll forgets every record.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*Record)
	s.order = nil
}

// ToggleExpanded flips the Expanded flag of one record and returns the new value.
func (s *Store) ToggleExpanded(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[name]
	if !ok {
		return false, ErrUnknownSource
	}
	r.Expanded = !r.Expanded
	return r.Expanded, nil
}

// SetExpanded forces the Expanded flag of one record.
func (s *Store) SetExpanded(name string, expanded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[name]
	if !ok {
		return ErrUnknownSource
	}
	r.Expanded = expanded
	return nil
}

// Get returns a copy of the named record.
func (s *Store) Get(name string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[name]
	if !ok {
		return Record{}, false
	}
	return r.clone(), true
}

// List returns copies of all records in first-seen order.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.records[name].clone())
	}
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

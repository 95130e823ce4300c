// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session holds the authenticated-session context passed to commands
// and views, and the durable stores behind it.
//
// The session is the only reader and writer of the persisted token. Views ask
// the Session whether the user is authenticated instead of reading storage.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/awnumar/memguard"
)

// TokenKey is the single durable key holding the auth token.
const TokenKey = "authToken"

var (
	// ErrNoToken is returned by a TokenStore when no token is persisted.
	ErrNoToken = errors.New("no auth token stored")

	// ErrEmptyToken is returned by Login when given an empty token.
	ErrEmptyToken = errors.New("auth token is empty")
)

// TokenStore persists the opaque auth token.
type TokenStore interface {
	// Load returns the stored token or ErrNoToken.
	Load() (string, error)

	// Save replaces the stored token.
	Save(token string) error

	// Delete removes the token. Deleting a missing token is not an error.
	Delete() error

	// Close releases the store.
	Close() error
}

// Session is the authenticated-session context.
//
// # Thread Safety
//
// Safe for concurrent use.
type Session struct {
	store  TokenStore
	logger *slog.Logger

	mu    sync.RWMutex
	token string
}

// New creates a Session and loads any persisted token from store.
func New(store TokenStore, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{store: store, logger: logger}

	token, err := store.Load()
	switch {
	case errors.Is(err, ErrNoToken):
	case err != nil:
		return nil, fmt.Errorf("load session token: %w", err)
	default:
		s.token = token
	}

	logger.Debug("session loaded", "token_present", s.token != "")
	return s, nil
}

// IsAuthenticated reports whether a token is held.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// Token returns the held token, or "" when unauthenticated.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Login persists token and marks the session authenticated.
func (s *Session) Login(token string) error {
	if token == "" {
		return ErrEmptyToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(token); err != nil {
		return fmt.Errorf("persist session token: %w", err)
	}
	s.token = token
	s.logger.Info("session authenticated", "token_present", true)
	return nil
}

// Logout removes the persisted token. The in-memory token is cleared even if
// the store fails.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	if err := s.store.Delete(); err != nil {
		return fmt.Errorf("remove session token: %w", err)
	}
	s.logger.Info("session logged out")
	return nil
}

// Close closes the underlying store.
func (s *Session) Close() error {
	return s.store.Close()
}

// =============================================================================
// Memory Store
// =============================================================================

// MemoryStore is a process-local TokenStore for tests and one-shot commands.
// The token is kept sealed in a memguard enclave and only decrypted on Load.
type MemoryStore struct {
	mu      sync.Mutex
	enclave *memguard.Enclave
}

var _ TokenStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements TokenStore.
func (m *MemoryStore) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enclave == nil {
		return "", ErrNoToken
	}
	buf, err := m.enclave.Open()
	if err != nil {
		return "", fmt.Errorf("open token enclave: %w", err)
	}
	defer buf.Destroy()
	return string(buf.Bytes()), nil
}

// Save implements TokenStore. Saving "" behaves like Delete.
func (m *MemoryStore) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token == "" {
		m.enclave = nil
		return nil
	}
	m.enclave = memguard.NewEnclave([]byte(token))
	return nil
}

// Delete implements TokenStore.
func (m *MemoryStore) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enclave = nil
	return nil
}

// Close implements TokenStore.
func (m *MemoryStore) Close() error { return nil }

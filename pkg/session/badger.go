// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig configures a BadgerStore.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps the token in memory only. Useful for testing.
	InMemory bool

	// SyncWrites fsyncs every write. Default: true.
	SyncWrites bool

	// Logger receives BadgerDB's internal logs. If nil, they are discarded.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns a durable configuration rooted at path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{Path: path, SyncWrites: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore persists the token under TokenKey in an embedded BadgerDB.
//
// # Description
//
// The token survives process restarts. BadgerDB holds a directory lock, so
// only one askdesk process can open the store at a time; a second one gets an
// error from OpenBadgerStore.
//
// # Thread Safety
//
// Safe for concurrent use.
type BadgerStore struct {
	db *badger.DB
}

var _ TokenStore = (*BadgerStore)(nil)

// OpenBadgerStore opens (creating if needed) the token database.
//
// # Inputs
//
//   - cfg: Store configuration. Path is required unless InMemory is true.
//
// # Outputs
//
//   - *BadgerStore: The store. Caller must Close it.
//   - error: Non-nil if the directory cannot be created or the DB is locked.
func OpenBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent token store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0700); err != nil {
			return nil, fmt.Errorf("create token store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Load implements TokenStore.
func (b *BadgerStore) Load() (string, error) {
	var token string
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(TokenKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			token = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", TokenKey, err)
	}
	return token, nil
}

// Save implements TokenStore.
func (b *BadgerStore) Save(token string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(TokenKey), []byte(token))
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", TokenKey, err)
	}
	return nil
}

// Delete implements TokenStore.
func (b *BadgerStore) Delete() error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(TokenKey))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", TokenKey, err)
	}
	return nil
}

// Close implements TokenStore.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}

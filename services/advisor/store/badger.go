// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store provides the concrete implementations of the advisor's
// capability interfaces: BadgerDB-backed sessions, Weaviate-backed evidence
// and semantic search, and a DuckDuckGo web search wrapper.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/candorlabs-ai/northstar/services/advisor/capability"
)

// BadgerConfig holds configuration for the embedded session store.
type BadgerConfig struct {
	// Path is the directory for database files. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence). Used in tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output. Nil disables it.
	Logger *slog.Logger
}

// DefaultBadgerConfig returns production defaults for a persistent store.
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
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerSessionStore implements capability.SessionStore on BadgerDB. Entries
// carry native TTLs, so expired sessions disappear without a sweeper.
type BadgerSessionStore struct {
	db *badger.DB
}

// NewBadgerSessionStore opens the database described by cfg.
//
// # Outputs
//
//   - *BadgerSessionStore: ready for use. Caller must Close() when done.
//   - error: non-nil if the path is missing or the database cannot open.
//
// # Thread Safety
//
// The returned store is safe for concurrent use.
func NewBadgerSessionStore(cfg BadgerConfig) (*BadgerSessionStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent session store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create session store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return &BadgerSessionStore{db: db}, nil
}

// NewInMemorySessionStore opens an in-memory store for tests.
func NewInMemorySessionStore() (*BadgerSessionStore, error) {
	return NewBadgerSessionStore(BadgerConfig{InMemory: true})
}

func sessionKey(id string) []byte  { return []byte("session/" + id) }
func analysisKey(id string) []byte { return []byte("analysis/" + id) }

// PutSession stores the session, replacing any previous version. A positive
// ttl bounds the entry's lifetime; zero stores it without expiry.
func (s *BadgerSessionStore) PutSession(ctx context.Context, session *capability.Session, ttl time.Duration) error {
	return s.put(ctx, sessionKey(session.SessionID), session, ttl)
}

// GetSession loads a session, returning capability.ErrNotFound when it does
// not exist or its TTL has lapsed.
func (s *BadgerSessionStore) GetSession(ctx context.Context, sessionID string) (*capability.Session, error) {
	var session capability.Session
	if err := s.get(ctx, sessionKey(sessionID), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// PutAnalysis stores a background analysis record.
func (s *BadgerSessionStore) PutAnalysis(ctx context.Context, record *capability.AnalysisRecord, ttl time.Duration) error {
	return s.put(ctx, analysisKey(record.AnalysisID), record, ttl)
}

// GetAnalysis loads a background analysis record.
func (s *BadgerSessionStore) GetAnalysis(ctx context.Context, analysisID string) (*capability.AnalysisRecord, error) {
	var record capability.AnalysisRecord
	if err := s.get(ctx, analysisKey(analysisID), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Close closes the underlying database.
func (s *BadgerSessionStore) Close() error {
	return s.db.Close()
}

func (s *BadgerSessionStore) put(ctx context.Context, key []byte, value any, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, payload)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (s *BadgerSessionStore) get(ctx context.Context, key []byte, out any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return capability.ErrNotFound
	}
	return err
}

var _ capability.SessionStore = (*BadgerSessionStore)(nil)

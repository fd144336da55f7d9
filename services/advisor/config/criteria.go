// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/candorlabs-ai/northstar/services/advisor/gate"
)

// criteriaFile is the on-disk shape of a criteria override file:
//
//	stages:
//	  DESIRABILITY:
//	    min_experiments: 3
//	    min_evidence_quality: 0.65
//	    min_total_evidence: 8
//	    required_evidence_types: [interview, experiment]
//	    strength_mix:
//	      medium: 1
//	      strong: 1
//
// Stages absent from the file keep their stock criteria.
type criteriaFile struct {
	Stages map[string]gate.Criteria `yaml:"stages"`
}

// LoadCriteria parses a criteria override file.
//
// Unknown stage keys are an error rather than a warning: a typo like
// "DESIRABILTY" silently keeping the stock bar would be worse than a refused
// file.
func LoadCriteria(path string) (map[gate.Stage]gate.Criteria, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read criteria file: %w", err)
	}

	var file criteriaFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse criteria file: %w", err)
	}

	out := make(map[gate.Stage]gate.Criteria, len(file.Stages))
	for key, crit := range file.Stages {
		stage, err := gate.ParseStage(key)
		if err != nil {
			return nil, fmt.Errorf("criteria file: %w", err)
		}
		out[stage] = crit
	}
	return out, nil
}

// CriteriaSource resolves the effective gate criteria for a stage.
type CriteriaSource interface {
	CriteriaFor(stage gate.Stage) gate.Criteria
}

// StaticCriteria is a CriteriaSource over a fixed override map.
// A nil map yields the stock criteria for every stage.
type StaticCriteria map[gate.Stage]gate.Criteria

// CriteriaFor returns the override for the stage when present, otherwise the
// stock criteria.
func (s StaticCriteria) CriteriaFor(stage gate.Stage) gate.Criteria {
	if crit, ok := s[stage]; ok {
		return crit
	}
	return gate.CriteriaFor(stage, nil)
}

// CriteriaWatcher serves gate criteria from an override file and reloads it
// when the file changes on disk.
//
// # Description
//
// The watcher observes the file's parent directory rather than the file
// itself, because most editors replace files on save (rename + create) which
// would otherwise drop the watch. A failed reload keeps the last good
// overrides and logs a warning.
//
// # Thread Safety
//
// CriteriaFor may be called concurrently with reloads.
type CriteriaWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}

	mu        sync.RWMutex
	overrides map[gate.Stage]gate.Criteria
}

// NewCriteriaWatcher loads the file and starts watching it for changes.
//
// The initial load must succeed; a service should not start with a criteria
// file it cannot read. Call Close to stop the watch goroutine.
func NewCriteriaWatcher(path string) (*CriteriaWatcher, error) {
	overrides, err := LoadCriteria(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create criteria watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch criteria directory: %w", err)
	}

	w := &CriteriaWatcher{
		path:      path,
		watcher:   watcher,
		done:      make(chan struct{}),
		overrides: overrides,
	}
	go w.run()
	return w, nil
}

// CriteriaFor returns the effective criteria for a stage.
func (w *CriteriaWatcher) CriteriaFor(stage gate.Stage) gate.Criteria {
	w.mu.RLock()
	crit, ok := w.overrides[stage]
	w.mu.RUnlock()
	if ok {
		return crit
	}
	return gate.CriteriaFor(stage, nil)
}

// Close stops the watch goroutine and releases the file watcher.
func (w *CriteriaWatcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *CriteriaWatcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("criteria watcher error", "error", err)
		}
	}
}

func (w *CriteriaWatcher) reload() {
	overrides, err := LoadCriteria(w.path)
	if err != nil {
		slog.Warn("criteria reload failed, keeping previous overrides",
			"path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	w.overrides = overrides
	w.mu.Unlock()

	slog.Info("gate criteria reloaded", "path", w.path, "stages", len(overrides))
}

var (
	_ CriteriaSource = (StaticCriteria)(nil)
	_ CriteriaSource = (*CriteriaWatcher)(nil)
)

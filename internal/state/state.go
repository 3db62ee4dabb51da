// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package state persists which identity is active per host pattern. The
// backing file is a small JSON record replaced atomically on every write, so
// an interrupted run can never leave a half-written state behind. There is
// no cross-process locking: two concurrent sshm invocations are last-writer-
// wins at the file level.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/toeirei/sshm/internal/logging"
)

// State is the persisted record: the active tag per host pattern plus the
// marker for the distinguished default tag.
type State struct {
	// Active maps a host pattern (e.g. "github.com") to the active tag.
	Active map[string]string `json:"active"`
	// DefaultTag records which tagged identity currently backs the
	// unlabeled default key pair, if any.
	DefaultTag string `json:"default_tag,omitempty"`
}

// clone returns a deep copy so read-modify-write transactions never mutate
// a caller-visible State.
func (s State) clone() State {
	c := State{DefaultTag: s.DefaultTag, Active: make(map[string]string, len(s.Active))}
	for k, v := range s.Active {
		c.Active[k] = v
	}
	return c
}

// Store reads and writes the state file.
type Store struct {
	path string
}

// NewStore returns a store backed by the given file path.
func NewStore(path string) *Store { return &Store{path: path} }

// Path returns the backing file path.
func (st *Store) Path() string { return st.path }

// Read returns the last committed state. A missing or corrupt file yields an
// empty state; corruption is logged, never fatal.
func (st *Store) Read() State {
	empty := State{Active: map[string]string{}}
	data, err := os.ReadFile(st.path)
	if errors.Is(err, os.ErrNotExist) {
		return empty
	}
	if err != nil {
		logging.Warnf("state file %s unreadable, treating as empty: %v", st.path, err)
		return empty
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		logging.Warnf("state file %s corrupt, treating as empty: %v", st.path, err)
		return empty
	}
	if s.Active == nil {
		s.Active = map[string]string{}
	}
	for pattern, tag := range s.Active {
		s.Active[pattern] = strings.ToLower(tag)
	}
	return s
}

// Write serializes the state to a temporary file in the same directory and
// renames it over the target, so no observer ever sees a partial write.
func (st *Store) Write(s State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".sshm_state.*")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state: %w", err)
	}
	if err := os.Rename(tmpName, st.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// UpdateActive records tag as the active identity for the host pattern in a
// read-modify-write transaction. An empty tag clears the entry. The map
// representation guarantees at most one active tag per pattern.
func (st *Store) UpdateActive(hostPattern, tag string) error {
	s := st.Read().clone()
	if tag == "" {
		delete(s.Active, hostPattern)
	} else {
		s.Active[hostPattern] = strings.ToLower(tag)
	}
	return st.Write(s)
}

// UpdateLabel rewrites every occurrence of oldTag to newTag, including the
// default-tag marker.
func (st *Store) UpdateLabel(oldTag, newTag string) error {
	old := strings.ToLower(oldTag)
	s := st.Read().clone()
	changed := false
	for pattern, tag := range s.Active {
		if tag == old {
			s.Active[pattern] = strings.ToLower(newTag)
			changed = true
		}
	}
	if strings.EqualFold(s.DefaultTag, oldTag) {
		s.DefaultTag = strings.ToLower(newTag)
		changed = true
	}
	if !changed {
		return nil
	}
	return st.Write(s)
}

// RemoveTag drops every binding that points at tag.
func (st *Store) RemoveTag(tag string) error {
	low := strings.ToLower(tag)
	s := st.Read().clone()
	changed := false
	for pattern, t := range s.Active {
		if t == low {
			delete(s.Active, pattern)
			changed = true
		}
	}
	if strings.EqualFold(s.DefaultTag, tag) {
		s.DefaultTag = ""
		changed = true
	}
	if !changed {
		return nil
	}
	return st.Write(s)
}

// SetDefaultTag records which tag backs the default key pair.
func (st *Store) SetDefaultTag(tag string) error {
	s := st.Read().clone()
	s.DefaultTag = strings.ToLower(tag)
	return st.Write(s)
}

// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

package state

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), ".sshm_state"))
}

func TestReadMissingFileIsEmptyState(t *testing.T) {
	st := newTestStore(t)
	s := st.Read()
	if len(s.Active) != 0 || s.DefaultTag != "" {
		t.Fatalf("expected empty state, got %+v", s)
	}
}

func TestReadCorruptFileIsEmptyState(t *testing.T) {
	st := newTestStore(t)
	if err := os.WriteFile(st.Path(), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := st.Read()
	if len(s.Active) != 0 {
		t.Fatalf("expected empty state from corrupt file, got %+v", s)
	}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	st := newTestStore(t)
	want := State{Active: map[string]string{"github.com": "work"}, DefaultTag: "work"}
	if err := st.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got := st.Read()
	if got.Active["github.com"] != "work" || got.DefaultTag != "work" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	// Atomic write leaves no temp files behind.
	entries, err := os.ReadDir(filepath.Dir(st.Path()))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".sshm_state.") && e.Name() != filepath.Base(st.Path()) {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestUpdateActiveKeepsOneTagPerPattern(t *testing.T) {
	st := newTestStore(t)
	if err := st.UpdateActive("github.com", "Work"); err != nil {
		t.Fatalf("UpdateActive: %v", err)
	}
	if err := st.UpdateActive("github.com", "personal"); err != nil {
		t.Fatalf("UpdateActive: %v", err)
	}
	if err := st.UpdateActive("gitlab.com", "work"); err != nil {
		t.Fatalf("UpdateActive: %v", err)
	}
	s := st.Read()
	if got := s.Active["github.com"]; got != "personal" {
		t.Errorf("github.com active = %q, want personal", got)
	}
	if got := s.Active["gitlab.com"]; got != "work" {
		t.Errorf("gitlab.com active = %q, want work (and lowercased)", got)
	}
	if len(s.Active) != 2 {
		t.Errorf("expected 2 patterns, got %d", len(s.Active))
	}
}

func TestUpdateActiveClearsWithEmptyTag(t *testing.T) {
	st := newTestStore(t)
	if err := st.UpdateActive("github.com", "work"); err != nil {
		t.Fatalf("UpdateActive: %v", err)
	}
	if err := st.UpdateActive("github.com", ""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok := st.Read().Active["github.com"]; ok {
		t.Error("entry not cleared")
	}
}

func TestUpdateLabelRewritesAllBindings(t *testing.T) {
	st := newTestStore(t)
	if err := st.Write(State{
		Active:     map[string]string{"github.com": "work", "gitlab.com": "work", "gitee.com": "oss"},
		DefaultTag: "work",
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := st.UpdateLabel("work", "work2"); err != nil {
		t.Fatalf("UpdateLabel: %v", err)
	}
	s := st.Read()
	if s.Active["github.com"] != "work2" || s.Active["gitlab.com"] != "work2" {
		t.Errorf("labels not rewritten: %+v", s.Active)
	}
	if s.Active["gitee.com"] != "oss" {
		t.Errorf("unrelated label touched: %+v", s.Active)
	}
	if s.DefaultTag != "work2" {
		t.Errorf("default tag not rewritten: %q", s.DefaultTag)
	}
}

func TestRemoveTagDropsBindings(t *testing.T) {
	st := newTestStore(t)
	if err := st.Write(State{
		Active:     map[string]string{"github.com": "work", "gitlab.com": "oss"},
		DefaultTag: "work",
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := st.RemoveTag("work"); err != nil {
		t.Fatalf("RemoveTag: %v", err)
	}
	s := st.Read()
	if _, ok := s.Active["github.com"]; ok {
		t.Error("binding for removed tag survived")
	}
	if s.Active["gitlab.com"] != "oss" {
		t.Error("unrelated binding dropped")
	}
	if s.DefaultTag != "" {
		t.Errorf("default marker survived: %q", s.DefaultTag)
	}
}

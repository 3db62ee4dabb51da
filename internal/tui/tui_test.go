// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.
package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/toeirei/sshm/internal/model"
)

func testViews() []model.IdentityView {
	return []model.IdentityView{
		{
			Identity:     model.Identity{Tag: "work", Type: model.KeyTypeEd25519},
			Alias:        "github-work",
			Active:       true,
			ExistsOnDisk: true,
		},
		{
			Identity:     model.Identity{Tag: "play", Type: model.KeyTypeRSA},
			ExistsOnDisk: true,
		},
		{
			Identity: model.Identity{Tag: "ghost", Type: model.KeyTypeEd25519},
		},
	}
}

func TestPickerRendersIdentities(t *testing.T) {
	m := newPicker(nil)
	updated, _ := m.Update(identitiesMsg{views: testViews(), problems: []string{"state references missing files"}})
	view := updated.View()

	for _, want := range []string{"work", "github-work", "play", "ghost", "! state references missing files"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestPickerCursorMovement(t *testing.T) {
	m := newPicker(nil)
	mod, _ := m.Update(identitiesMsg{views: testViews()})
	pm := mod.(pickerModel)
	if pm.cursor != 0 {
		t.Fatalf("cursor = %d", pm.cursor)
	}

	mod, _ = pm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	pm = mod.(pickerModel)
	if pm.cursor != 1 {
		t.Errorf("cursor after j = %d", pm.cursor)
	}

	// Cursor never walks past the end.
	mod, _ = pm.Update(tea.KeyMsg{Type: tea.KeyDown})
	pm = mod.(pickerModel)
	mod, _ = pm.Update(tea.KeyMsg{Type: tea.KeyDown})
	pm = mod.(pickerModel)
	if pm.cursor != 2 {
		t.Errorf("cursor clamped = %d", pm.cursor)
	}
}

func TestPickerCopyIgnoredForMissingFiles(t *testing.T) {
	m := newPicker(nil)
	mod, _ := m.Update(identitiesMsg{views: testViews()})
	pm := mod.(pickerModel)
	pm.cursor = 2 // the ghost entry has no files to copy

	_, cmd := pm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	if cmd != nil {
		t.Errorf("copy on a ghost entry must be a no-op")
	}
}

func TestPickerSwitchIgnoredForDefault(t *testing.T) {
	views := []model.IdentityView{{
		Identity:     model.Identity{Tag: model.DefaultTag, Type: model.KeyTypeEd25519},
		ExistsOnDisk: true,
	}}
	m := newPicker(nil)
	mod, _ := m.Update(identitiesMsg{views: views})
	pm := mod.(pickerModel)

	_, cmd := pm.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Errorf("switching to the default identity must be a no-op")
	}
}

func TestPickerQuit(t *testing.T) {
	m := newPicker(nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q must quit")
	}
	if msg := cmd(); msg != tea.Quit() {
		t.Errorf("expected quit message, got %v", msg)
	}
}

// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.
package i18n

import (
	"testing"
)

func TestTranslatesKnownIDs(t *testing.T) {
	Init("en")

	if got := T("list.empty"); got != "No identities found." {
		t.Fatalf("unexpected translation: %q", got)
	}

	// fmt-style formatting via extra args
	got := T("restore.done", 3, "backup_20250101_120000")
	if got != "Restored 3 files from backup_20250101_120000" {
		t.Fatalf("unexpected formatted translation: %q", got)
	}
}

func TestUnknownIDFallsBackToID(t *testing.T) {
	Init("en")
	if got := T("no.such.message"); got != "no.such.message" {
		t.Fatalf("expected the ID back, got %q", got)
	}
}

func TestTWithoutInitDefaultsToEnglish(t *testing.T) {
	localizer = nil
	if got := T("menu.working"); got != "working..." {
		t.Fatalf("expected lazy init to english, got %q", got)
	}
}

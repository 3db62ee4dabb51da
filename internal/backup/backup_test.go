// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

package backup

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func seedDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
	return dir
}

func TestSnapshotCapturesKeysAndState(t *testing.T) {
	dir := seedDir(t, map[string]string{
		"id_ed25519.work":     "private",
		"id_ed25519.work.pub": "public",
		".sshm_state":         "{}",
		"known_hosts":         "not captured",
	})
	v := NewVault(dir, "key_backups", ".sshm_state")

	snap, err := v.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.FileCount != 3 {
		t.Errorf("expected 3 captured files, got %d", snap.FileCount)
	}
	if _, err := os.Stat(filepath.Join(snap.Path, "id_ed25519.work")); err != nil {
		t.Errorf("private key not captured: %v", err)
	}
	if _, err := os.Stat(filepath.Join(snap.Path, "known_hosts")); !errors.Is(err, os.ErrNotExist) {
		t.Error("known_hosts should not be captured")
	}
}

func TestSnapshotIDsAreMonotonic(t *testing.T) {
	dir := seedDir(t, map[string]string{"id_rsa": "k"})
	v := NewVault(dir, "key_backups", ".sshm_state")
	// Pin the clock so both snapshots land in the same second.
	v.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	a, err := v.Snapshot()
	if err != nil {
		t.Fatalf("first Snapshot: %v", err)
	}
	b, err := v.Snapshot()
	if err != nil {
		t.Fatalf("second Snapshot: %v", err)
	}
	if a.ID == b.ID {
		t.Errorf("snapshot ids collide: %q", a.ID)
	}
	if !(a.ID < b.ID) {
		t.Errorf("ids not lexically ordered: %q then %q", a.ID, b.ID)
	}
}

func TestListNewestFirst(t *testing.T) {
	dir := seedDir(t, map[string]string{"id_rsa": "k"})
	v := NewVault(dir, "key_backups", ".sshm_state")
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		offset := time.Duration(i) * time.Second
		v.now = func() time.Time { return base.Add(offset) }
		if _, err := v.Snapshot(); err != nil {
			t.Fatalf("Snapshot %d: %v", i, err)
		}
	}
	snaps, err := v.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i-1].ID < snaps[i].ID {
			t.Errorf("not newest-first: %q before %q", snaps[i-1].ID, snaps[i].ID)
		}
	}
}

func TestRestoreIsAdditiveOnly(t *testing.T) {
	dir := seedDir(t, map[string]string{"id_ed25519.work": "v1"})
	v := NewVault(dir, "key_backups", ".sshm_state")
	snap, err := v.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	// Mutate the directory after the snapshot: change one file, add another.
	if err := os.WriteFile(filepath.Join(dir, "id_ed25519.work"), []byte("v2"), 0o600); err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "id_rsa.new"), []byte("new"), 0o600); err != nil {
		t.Fatalf("add: %v", err)
	}

	n, err := v.Restore(snap.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 restored file, got %d", n)
	}
	got, err := os.ReadFile(filepath.Join(dir, "id_ed25519.work"))
	if err != nil || string(got) != "v1" {
		t.Errorf("file not restored verbatim: %q err=%v", got, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "id_rsa.new")); err != nil {
		t.Error("restore deleted a file absent from the snapshot")
	}
}

func TestRestoreUnknownID(t *testing.T) {
	dir := seedDir(t, nil)
	v := NewVault(dir, "key_backups", ".sshm_state")
	if _, err := v.Restore("backup_19700101_000000"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("expected ErrSnapshotNotFound, got %v", err)
	}
}

func TestSnapshotFailsWhenRootUnavailable(t *testing.T) {
	dir := seedDir(t, map[string]string{"id_rsa": "k"})
	// Occupy the backup root with a regular file so MkdirAll fails.
	if err := os.WriteFile(filepath.Join(dir, "key_backups"), []byte("x"), 0o600); err != nil {
		t.Fatalf("occupy root: %v", err)
	}
	v := NewVault(dir, "key_backups", ".sshm_state")
	if _, err := v.Snapshot(); err == nil {
		t.Fatal("expected snapshot failure")
	}
}

func TestExportRoundTrip(t *testing.T) {
	dir := seedDir(t, map[string]string{
		"id_ed25519.work":     "private",
		"id_ed25519.work.pub": "public",
	})
	v := NewVault(dir, "key_backups", ".sshm_state")
	snap, err := v.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	out := filepath.Join(t.TempDir(), "export.tar.zst")
	if err := v.Export(snap.ID, out); err != nil {
		t.Fatalf("Export: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer zr.Close()

	found := map[string]string{}
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar: %v", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("tar read: %v", err)
		}
		found[hdr.Name] = string(data)
	}
	if got := found[snap.ID+"/id_ed25519.work"]; got != "private" {
		t.Errorf("archive content mismatch: %q", got)
	}
	if len(found) != 2 {
		t.Errorf("expected 2 archive entries, got %d: %v", len(found), found)
	}
}

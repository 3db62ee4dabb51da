// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package backup snapshots the identity directory before destructive
// operations. Snapshots are verbatim copies under
// <identity_dir>/<backup_root>/<timestamp_id>/ and immutable once created;
// the timestamp id sorts lexically in chronological order.
package backup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/toeirei/sshm/internal/logging"
)

// snapshotPrefix is the directory name prefix of every snapshot.
const snapshotPrefix = "backup_"

// ErrSnapshotNotFound is returned when a snapshot id doesn't exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot describes one immutable point-in-time copy.
type Snapshot struct {
	ID        string
	Path      string
	CreatedAt time.Time
	FileCount int
}

// Vault manages snapshots of one identity directory.
type Vault struct {
	sshDir    string
	root      string // backup root inside sshDir
	stateFile string // state file name copied alongside the keys
	now       func() time.Time
}

// NewVault returns a vault storing snapshots under filepath.Join(sshDir, rootName).
func NewVault(sshDir, rootName, stateFile string) *Vault {
	return &Vault{
		sshDir:    sshDir,
		root:      filepath.Join(sshDir, rootName),
		stateFile: stateFile,
		now:       time.Now,
	}
}

// Root returns the backup root directory.
func (v *Vault) Root() string { return v.root }

// Snapshot copies every file matching the identity naming convention (id_*)
// plus the state file into a fresh snapshot directory. If anything fails the
// partial snapshot directory is removed and an error returned, so callers can
// rely on backup-before-mutate: no snapshot, no mutation.
func (v *Vault) Snapshot() (Snapshot, error) {
	if err := os.MkdirAll(v.root, 0o700); err != nil {
		return Snapshot{}, fmt.Errorf("create backup root: %w", err)
	}

	id := snapshotPrefix + v.now().Format("20060102_150405")
	path := filepath.Join(v.root, id)
	// Monotonic even when two snapshots land in the same second.
	for n := 2; ; n++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			break
		}
		path = filepath.Join(v.root, fmt.Sprintf("%s_%d", id, n))
	}
	id = filepath.Base(path)

	if err := os.Mkdir(path, 0o700); err != nil {
		return Snapshot{}, fmt.Errorf("create snapshot directory: %w", err)
	}

	names, err := v.captureList()
	if err != nil {
		os.RemoveAll(path)
		return Snapshot{}, err
	}
	count := 0
	for _, name := range names {
		if err := copyFile(filepath.Join(v.sshDir, name), filepath.Join(path, name)); err != nil {
			os.RemoveAll(path)
			return Snapshot{}, fmt.Errorf("snapshot %s: %w", name, err)
		}
		count++
	}

	logging.Debugf("snapshot %s captured %d files", id, count)
	return Snapshot{ID: id, Path: path, CreatedAt: v.now(), FileCount: count}, nil
}

// captureList returns the file names the snapshot should contain: id_* key
// files and the state file when present.
func (v *Vault) captureList() ([]string, error) {
	entries, err := os.ReadDir(v.sshDir)
	if err != nil {
		return nil, fmt.Errorf("read identity directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "id_") || e.Name() == v.stateFile {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Restore copies the snapshot's files back into the identity directory
// verbatim. Restore is additive-only: files present in the directory but
// absent from the snapshot are never deleted.
func (v *Vault) Restore(id string) (int, error) {
	src := filepath.Join(v.root, id)
	info, err := os.Stat(src)
	if errors.Is(err, os.ErrNotExist) || (err == nil && !info.IsDir()) {
		return 0, fmt.Errorf("restore %q: %w", id, ErrSnapshotNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("restore %q: %w", id, err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return 0, fmt.Errorf("read snapshot: %w", err)
	}
	count := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(src, e.Name()), filepath.Join(v.sshDir, e.Name())); err != nil {
			return count, fmt.Errorf("restore %s: %w", e.Name(), err)
		}
		count++
	}
	return count, nil
}

// List enumerates snapshots newest-first.
func (v *Vault) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(v.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup root: %w", err)
	}
	var out []Snapshot
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), snapshotPrefix) {
			continue
		}
		path := filepath.Join(v.root, e.Name())
		files, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("read snapshot %s: %w", e.Name(), err)
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat snapshot %s: %w", e.Name(), err)
		}
		out = append(out, Snapshot{
			ID:        e.Name(),
			Path:      path,
			CreatedAt: info.ModTime(),
			FileCount: len(files),
		})
	}
	// The id format sorts lexically identically to chronologically.
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Get returns one snapshot by id.
func (v *Vault) Get(id string) (Snapshot, error) {
	snaps, err := v.List()
	if err != nil {
		return Snapshot{}, err
	}
	for _, s := range snaps {
		if s.ID == id {
			return s, nil
		}
	}
	return Snapshot{}, fmt.Errorf("snapshot %q: %w", id, ErrSnapshotNotFound)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

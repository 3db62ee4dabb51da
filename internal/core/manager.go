// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package core orchestrates every mutating operation on the identity
// directory. Destructive operations follow one fixed sequence: snapshot,
// then key files, then ssh config, then state. A failure aborts the
// sequence where it happened and the returned error names that step; the
// snapshot taken up front is the recovery path.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/toeirei/sshm/internal/backup"
	"github.com/toeirei/sshm/internal/gitexec"
	"github.com/toeirei/sshm/internal/giturl"
	"github.com/toeirei/sshm/internal/keygen"
	"github.com/toeirei/sshm/internal/model"
	"github.com/toeirei/sshm/internal/probe"
	"github.com/toeirei/sshm/internal/registry"
	"github.com/toeirei/sshm/internal/sshconfig"
	"github.com/toeirei/sshm/internal/state"
)

// Defaults for the files the manager owns inside the identity directory.
const (
	DefaultStateFile  = ".sshm_state"
	DefaultBackupDir  = "key_backups"
	DefaultConfigName = "config"
	defaultRemote     = "origin"
)

// Options configures a Manager. Zero-value fields fall back to the
// conventional layout under SSHDir.
type Options struct {
	SSHDir     string
	ConfigPath string // defaults to <SSHDir>/config
	StateFile  string // file name, defaults to ".sshm_state"
	BackupDir  string // directory name, defaults to "key_backups"

	Generator keygen.Generator
	Prober    probe.Prober
	Git       gitexec.Runner

	// Confirm is asked before every destructive step. nil refuses
	// everything, which is the safe default for non-interactive use.
	Confirm func(prompt string) bool
}

// Manager coordinates the key registry, the ssh config, the state file and
// the backup vault. All methods leave the four sources consistent or fail
// before touching them.
type Manager struct {
	sshDir     string
	configPath string
	store      *state.Store
	vault      *backup.Vault
	gen        keygen.Generator
	prober     probe.Prober
	git        gitexec.Runner
	confirm    func(prompt string) bool
}

// New builds a Manager from the given options.
func New(opts Options) *Manager {
	if opts.ConfigPath == "" {
		opts.ConfigPath = filepath.Join(opts.SSHDir, DefaultConfigName)
	}
	if opts.StateFile == "" {
		opts.StateFile = DefaultStateFile
	}
	if opts.BackupDir == "" {
		opts.BackupDir = DefaultBackupDir
	}
	confirm := opts.Confirm
	if confirm == nil {
		confirm = func(string) bool { return false }
	}
	return &Manager{
		sshDir:     opts.SSHDir,
		configPath: opts.ConfigPath,
		store:      state.NewStore(filepath.Join(opts.SSHDir, opts.StateFile)),
		vault:      backup.NewVault(opts.SSHDir, opts.BackupDir, opts.StateFile),
		gen:        opts.Generator,
		prober:     opts.Prober,
		git:        opts.Git,
		confirm:    confirm,
	}
}

// SSHDir returns the identity directory the manager operates on.
func (m *Manager) SSHDir() string { return m.sshDir }

// loadConfig parses the ssh config, folding parse failures into the
// orchestrator taxonomy.
func (m *Manager) loadConfig(op string) (*sshconfig.File, error) {
	f, err := sshconfig.Load(m.configPath)
	if err != nil {
		return nil, E(KindParse, op, "", m.configPath, err)
	}
	return f, nil
}

// List produces the merged identity view plus any cross-source drift
// detected between disk, config and state.
func (m *Manager) List() ([]model.IdentityView, []string, error) {
	scan, err := registry.Scan(m.sshDir)
	if err != nil {
		return nil, nil, E(KindIO, "list", "", m.sshDir, err)
	}
	f, err := m.loadConfig("list")
	if err != nil {
		return nil, nil, err
	}
	views, problems := registry.Reconcile(scan, m.store.Read(), f.Blocks())
	return views, problems, nil
}

// validateTag enforces the tag grammar: lowercase, no separators that would
// collide with the file naming convention.
func validateTag(tag string) error {
	if tag == "" {
		return fmt.Errorf("tag must not be empty")
	}
	if tag != strings.ToLower(tag) {
		return fmt.Errorf("tag must be lowercase")
	}
	if strings.ContainsAny(tag, ". /\\\t") {
		return fmt.Errorf("tag must not contain dots, slashes or whitespace")
	}
	return nil
}

// hostForTag infers the forge hostname from a tag, the way the alias
// convention expects: the tag usually names the platform.
func hostForTag(tag string) string {
	for _, p := range []struct{ token, host string }{
		{"github", "github.com"},
		{"gitlab", "gitlab.com"},
		{"gitee", "gitee.com"},
		{"bitbucket", "bitbucket.org"},
		{"codeberg", "codeberg.org"},
	} {
		if strings.Contains(tag, p.token) {
			return p.host
		}
	}
	return "github.com"
}

// aliasFor derives the config alias for a (host, tag) pair.
func aliasFor(host, tag string) string {
	return giturl.PlatformName(host) + "-" + tag
}

// pairsForTag returns the on-disk key pairs carrying the given tag, ordered
// by the key type preference order.
func (m *Manager) pairsForTag(op, tag string) ([]registry.KeyPair, error) {
	scan, err := registry.Scan(m.sshDir)
	if err != nil {
		return nil, E(KindIO, op, "", m.sshDir, err)
	}
	var pairs []registry.KeyPair
	for _, p := range scan.Pairs {
		if p.Tag == tag && p.HasPrivate && p.HasPublic {
			pairs = append(pairs, p)
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return typeRank(pairs[i].Type) < typeRank(pairs[j].Type)
	})
	return pairs, nil
}

func typeRank(t model.KeyType) int {
	for i, k := range model.KeyTypes {
		if k == t {
			return i
		}
	}
	return len(model.KeyTypes)
}

// pickPair resolves a (tag, type) request against disk. An empty type picks
// the preferred pair; a tag carried by several types must be disambiguated
// explicitly when the operation targets a single pair.
func (m *Manager) pickPair(op, tag string, t model.KeyType) (registry.KeyPair, error) {
	pairs, err := m.pairsForTag(op, tag)
	if err != nil {
		return registry.KeyPair{}, err
	}
	if len(pairs) == 0 {
		return registry.KeyPair{}, E(KindNotFound, op, "", tag, fmt.Errorf("no key pair on disk"))
	}
	if t == "" {
		if len(pairs) > 1 {
			return registry.KeyPair{}, E(KindConflict, op, "", tag,
				fmt.Errorf("tag exists for %d key types, specify one", len(pairs)))
		}
		return pairs[0], nil
	}
	for _, p := range pairs {
		if p.Type == t {
			return p, nil
		}
	}
	return registry.KeyPair{}, E(KindNotFound, op, "", tag,
		fmt.Errorf("no %s key pair", t))
}

// AddRequest describes a new identity to create.
type AddRequest struct {
	Tag     string
	Type    model.KeyType // defaults to ed25519
	Host    string        // forge hostname, inferred from the tag when empty
	Comment string
}

// AddResult reports what Add created.
type AddResult struct {
	Tag         string
	Type        model.KeyType
	Alias       string
	Host        string
	PrivatePath string
	PublicKey   string
	Snapshot    backup.Snapshot // zero when nothing existing was overwritten
}

// Add generates a fresh key pair and binds it to a config alias. Adding is
// additive; a snapshot is only taken when an existing alias block would be
// overwritten, and that overwrite needs confirmation first.
func (m *Manager) Add(ctx context.Context, req AddRequest) (AddResult, error) {
	const op = "add"
	if err := validateTag(req.Tag); err != nil {
		return AddResult{}, E(KindConflict, op, "", req.Tag, err)
	}
	if req.Type == "" {
		req.Type = model.DefaultKeyType
	}
	if req.Host == "" {
		req.Host = hostForTag(req.Tag)
	}

	priv, pub := model.KeyPaths(m.sshDir, req.Type, req.Tag)
	if _, err := os.Stat(priv); err == nil {
		return AddResult{}, E(KindConflict, op, "", req.Tag,
			fmt.Errorf("key file %s already exists", filepath.Base(priv)))
	}

	f, err := m.loadConfig(op)
	if err != nil {
		return AddResult{}, err
	}
	alias := aliasFor(req.Host, req.Tag)
	res := AddResult{Tag: req.Tag, Type: req.Type, Alias: alias, Host: req.Host, PrivatePath: priv}

	if old, ok := f.Get(alias); ok && old.IdentityFile != priv {
		if !m.confirm(fmt.Sprintf("Alias %q already points at %s. Rebind it?", alias, old.IdentityFile)) {
			return AddResult{}, E(KindConflict, op, "", alias,
				fmt.Errorf("alias already bound to %s", old.IdentityFile))
		}
		snap, err := m.vault.Snapshot()
		if err != nil {
			return AddResult{}, E(KindIO, op, StepSnapshot, req.Tag, err)
		}
		res.Snapshot = snap
	}

	if err := m.gen.Generate(ctx, keygen.Request{Type: req.Type, Path: priv, Comment: req.Comment}); err != nil {
		return AddResult{}, E(KindExternalTool, op, StepKeyFiles, req.Tag, err)
	}

	f.Upsert(alias, sshconfig.Fields{
		HostName:     req.Host,
		User:         "git",
		IdentityFile: priv,
		Extra:        []string{"IdentitiesOnly yes"},
	})
	if err := f.Save(); err != nil {
		return AddResult{}, E(KindIO, op, StepConfig, alias, err)
	}

	data, err := os.ReadFile(pub)
	if err != nil {
		return AddResult{}, E(KindIO, op, StepKeyFiles, req.Tag, err)
	}
	res.PublicKey = strings.TrimSpace(string(data))
	return res, nil
}

// RemoveResult reports what Remove deleted.
type RemoveResult struct {
	RemovedFiles   []string
	RemovedAliases []string
	Snapshot       backup.Snapshot
}

// Remove deletes a tag's key pairs, their alias blocks and the tag's state
// entries, in that order, behind a snapshot. The default identity is never
// removed implicitly: it demands an explicit key type when several exist,
// and the confirmation prompt spells out what goes away.
func (m *Manager) Remove(ctx context.Context, tag string, t model.KeyType) (RemoveResult, error) {
	const op = "remove"
	pairs, err := m.pairsForTag(op, tag)
	if err != nil {
		return RemoveResult{}, err
	}
	if len(pairs) == 0 {
		return RemoveResult{}, E(KindNotFound, op, "", tag, fmt.Errorf("no key pair on disk"))
	}

	if tag == model.DefaultTag {
		if t == "" && len(pairs) > 1 {
			return RemoveResult{}, E(KindConflict, op, "", tag,
				fmt.Errorf("default identity exists for %d key types, specify one", len(pairs)))
		}
	}
	if t != "" {
		kept := pairs[:0]
		for _, p := range pairs {
			if p.Type == t {
				kept = append(kept, p)
			}
		}
		pairs = kept
		if len(pairs) == 0 {
			return RemoveResult{}, E(KindNotFound, op, "", tag, fmt.Errorf("no %s key pair", t))
		}
	}

	names := make([]string, 0, len(pairs))
	for _, p := range pairs {
		names = append(names, filepath.Base(p.PrivatePath))
	}
	if !m.confirm(fmt.Sprintf("Delete %s and the matching config entries?", strings.Join(names, ", "))) {
		return RemoveResult{}, E(KindConflict, op, "", tag, fmt.Errorf("not confirmed"))
	}

	f, err := m.loadConfig(op)
	if err != nil {
		return RemoveResult{}, err
	}

	snap, err := m.vault.Snapshot()
	if err != nil {
		return RemoveResult{}, E(KindIO, op, StepSnapshot, tag, err)
	}
	res := RemoveResult{Snapshot: snap}

	removed := map[string]bool{}
	for _, p := range pairs {
		for _, path := range []string{p.PrivatePath, p.PublicPath} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return res, E(KindIO, op, StepKeyFiles, filepath.Base(path), err)
			}
			res.RemovedFiles = append(res.RemovedFiles, path)
		}
		removed[filepath.Base(p.PrivatePath)] = true
	}

	for _, b := range f.Blocks() {
		if removed[filepath.Base(b.IdentityFile)] {
			f.Remove(b.Alias)
			res.RemovedAliases = append(res.RemovedAliases, b.Alias)
		}
	}
	if len(res.RemovedAliases) > 0 {
		if err := f.Save(); err != nil {
			return res, E(KindIO, op, StepConfig, tag, err)
		}
	}

	// Only drop the tag from state when no pair with this tag survives.
	left, err := m.pairsForTag(op, tag)
	if err == nil && len(left) == 0 {
		if err := m.store.RemoveTag(tag); err != nil {
			return res, E(KindIO, op, StepState, tag, err)
		}
	}
	return res, nil
}

// RenameResult reports what Rename moved.
type RenameResult struct {
	RenamedFiles   [][2]string // old path, new path
	RenamedAliases [][2]string // old alias, new alias
	Snapshot       backup.Snapshot
}

// Rename relabels every key pair of a tag, updates the alias blocks that
// reference those files and rewrites the tag in state, behind exactly one
// snapshot. The default tag cannot be renamed.
func (m *Manager) Rename(ctx context.Context, oldTag, newTag string) (RenameResult, error) {
	const op = "rename"
	if oldTag == model.DefaultTag {
		return RenameResult{}, E(KindConflict, op, "", oldTag, fmt.Errorf("the default identity cannot be renamed"))
	}
	if err := validateTag(newTag); err != nil {
		return RenameResult{}, E(KindConflict, op, "", newTag, err)
	}
	pairs, err := m.pairsForTag(op, oldTag)
	if err != nil {
		return RenameResult{}, err
	}
	if len(pairs) == 0 {
		return RenameResult{}, E(KindNotFound, op, "", oldTag, fmt.Errorf("no key pair on disk"))
	}
	taken, err := m.pairsForTag(op, newTag)
	if err != nil {
		return RenameResult{}, err
	}
	if len(taken) > 0 {
		return RenameResult{}, E(KindConflict, op, "", newTag, fmt.Errorf("tag already in use"))
	}

	f, err := m.loadConfig(op)
	if err != nil {
		return RenameResult{}, err
	}

	snap, err := m.vault.Snapshot()
	if err != nil {
		return RenameResult{}, E(KindIO, op, StepSnapshot, oldTag, err)
	}
	res := RenameResult{Snapshot: snap}

	moved := map[string]string{} // old private base name -> new private path
	for _, p := range pairs {
		newPriv, newPub := model.KeyPaths(m.sshDir, p.Type, newTag)
		if err := os.Rename(p.PrivatePath, newPriv); err != nil {
			return res, E(KindIO, op, StepKeyFiles, filepath.Base(p.PrivatePath), err)
		}
		if err := os.Rename(p.PublicPath, newPub); err != nil {
			return res, E(KindIO, op, StepKeyFiles, filepath.Base(p.PublicPath), err)
		}
		res.RenamedFiles = append(res.RenamedFiles,
			[2]string{p.PrivatePath, newPriv}, [2]string{p.PublicPath, newPub})
		moved[filepath.Base(p.PrivatePath)] = newPriv
	}

	changed := false
	for _, b := range f.Blocks() {
		newPriv, ok := moved[filepath.Base(b.IdentityFile)]
		if !ok {
			continue
		}
		fields := sshconfig.Fields{HostName: b.HostName, User: b.User, IdentityFile: newPriv}
		newAlias := renamedAlias(b.Alias, oldTag, newTag)
		if newAlias == b.Alias {
			f.Upsert(b.Alias, fields)
		} else if err := f.Rename(b.Alias, newAlias, fields); err != nil {
			return res, E(KindConflict, op, StepConfig, newAlias, err)
		}
		res.RenamedAliases = append(res.RenamedAliases, [2]string{b.Alias, newAlias})
		changed = true
	}
	if changed {
		if err := f.Save(); err != nil {
			return res, E(KindIO, op, StepConfig, oldTag, err)
		}
	}

	if err := m.store.UpdateLabel(oldTag, newTag); err != nil {
		return res, E(KindIO, op, StepState, oldTag, err)
	}
	return res, nil
}

// renamedAlias rewrites the tag suffix of a derived alias; aliases that do
// not follow the <platform>-<tag> convention keep their name.
func renamedAlias(alias, oldTag, newTag string) string {
	if cut, ok := strings.CutSuffix(alias, "-"+oldTag); ok {
		return cut + "-" + newTag
	}
	return alias
}

// SwitchResult reports what Switch installed.
type SwitchResult struct {
	Tag       string
	Type      model.KeyType
	Alias     string // config alias bound to the tag
	Preserved string // path of the saved pristine default, if created
	Snapshot  backup.Snapshot
}

// Switch installs a tagged key pair as the unlabeled default pair. The very
// first switch saves the pristine default under id_<type>.original so it is
// never silently destroyed; afterwards the previous default is always
// recoverable from the snapshot.
func (m *Manager) Switch(ctx context.Context, tag string, t model.KeyType) (SwitchResult, error) {
	const op = "switch"
	if tag == model.DefaultTag {
		return SwitchResult{}, E(KindConflict, op, "", tag, fmt.Errorf("already the default identity"))
	}
	pair, err := m.pickPair(op, tag, t)
	if err != nil {
		return SwitchResult{}, err
	}
	f, err := m.loadConfig(op)
	if err != nil {
		return SwitchResult{}, err
	}

	snap, err := m.vault.Snapshot()
	if err != nil {
		return SwitchResult{}, E(KindIO, op, StepSnapshot, tag, err)
	}
	res := SwitchResult{Tag: tag, Type: pair.Type, Snapshot: snap}

	defPriv, defPub := model.KeyPaths(m.sshDir, pair.Type, model.DefaultTag)
	origPriv, origPub := model.KeyPaths(m.sshDir, pair.Type, "original")
	if _, err := os.Stat(defPriv); err == nil && m.store.Read().DefaultTag == "" {
		if _, err := os.Stat(origPriv); os.IsNotExist(err) {
			if err := copyFile(defPriv, origPriv); err != nil {
				return res, E(KindIO, op, StepKeyFiles, filepath.Base(origPriv), err)
			}
			if err := copyFile(defPub, origPub); err != nil {
				return res, E(KindIO, op, StepKeyFiles, filepath.Base(origPub), err)
			}
			res.Preserved = origPriv
		}
	}

	if err := copyFile(pair.PrivatePath, defPriv); err != nil {
		return res, E(KindIO, op, StepKeyFiles, filepath.Base(defPriv), err)
	}
	if err := copyFile(pair.PublicPath, defPub); err != nil {
		return res, E(KindIO, op, StepKeyFiles, filepath.Base(defPub), err)
	}

	// The new default rides an alias block like every other tag. A block
	// already bound to this key file keeps its alias and host; otherwise the
	// alias is derived the same way Add derives it.
	host := hostForTag(tag)
	alias := aliasFor(host, tag)
	for _, b := range f.Blocks() {
		if filepath.Base(b.IdentityFile) == filepath.Base(pair.PrivatePath) {
			alias = b.Alias
			if b.HostName != "" {
				host = b.HostName
			}
			break
		}
	}
	res.Alias = alias
	fields := sshconfig.Fields{
		HostName:     host,
		User:         "git",
		IdentityFile: pair.PrivatePath,
		Extra:        []string{"IdentitiesOnly yes"},
	}
	old, exists := f.Get(alias)
	same := exists && old.HostName == fields.HostName && old.User == fields.User &&
		filepath.Base(old.IdentityFile) == filepath.Base(fields.IdentityFile)
	if !same {
		f.Upsert(alias, fields)
		if err := f.Save(); err != nil {
			return res, E(KindIO, op, StepConfig, alias, err)
		}
	}

	if err := m.store.SetDefaultTag(tag); err != nil {
		return res, E(KindIO, op, StepState, tag, err)
	}
	return res, nil
}

// Tag copies the current default pair of the given type to a tagged pair,
// so an unmanaged default key can enter the naming convention without being
// touched itself.
func (m *Manager) Tag(ctx context.Context, t model.KeyType, newTag string) (string, error) {
	const op = "tag"
	if err := validateTag(newTag); err != nil {
		return "", E(KindConflict, op, "", newTag, err)
	}
	if t == "" {
		t = model.DefaultKeyType
	}
	defPriv, defPub := model.KeyPaths(m.sshDir, t, model.DefaultTag)
	if _, err := os.Stat(defPriv); err != nil {
		return "", E(KindNotFound, op, "", model.DefaultTag, fmt.Errorf("no default %s key pair", t))
	}
	newPriv, newPub := model.KeyPaths(m.sshDir, t, newTag)
	if _, err := os.Stat(newPriv); err == nil {
		return "", E(KindConflict, op, "", newTag, fmt.Errorf("key file %s already exists", filepath.Base(newPriv)))
	}
	if err := copyFile(defPriv, newPriv); err != nil {
		return "", E(KindIO, op, StepKeyFiles, newTag, err)
	}
	if err := copyFile(defPub, newPub); err != nil {
		return "", E(KindIO, op, StepKeyFiles, newTag, err)
	}
	return newPriv, nil
}

// PublicKey returns the public key material of a tag's preferred pair.
func (m *Manager) PublicKey(tag string, t model.KeyType) (string, error) {
	pair, err := m.pickPair("copy", tag, t)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(pair.PublicPath)
	if err != nil {
		return "", E(KindIO, "copy", "", tag, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Backup takes an explicit snapshot.
func (m *Manager) Backup() (backup.Snapshot, error) {
	snap, err := m.vault.Snapshot()
	if err != nil {
		return backup.Snapshot{}, E(KindIO, "backup", StepSnapshot, m.sshDir, err)
	}
	return snap, nil
}

// Snapshots lists the vault's snapshots, newest first.
func (m *Manager) Snapshots() ([]backup.Snapshot, error) {
	snaps, err := m.vault.List()
	if err != nil {
		return nil, E(KindIO, "backup", "", m.vault.Root(), err)
	}
	return snaps, nil
}

// Restore copies a snapshot's files back into the identity directory.
// Files not present in the snapshot are left alone.
func (m *Manager) Restore(id string) (int, error) {
	n, err := m.vault.Restore(id)
	if err != nil {
		kind := KindIO
		if errors.Is(err, backup.ErrSnapshotNotFound) {
			kind = KindNotFound
		}
		return 0, E(kind, "restore", "", id, err)
	}
	return n, nil
}

// Export writes a snapshot as a compressed tarball.
func (m *Manager) Export(id, outPath string) error {
	if err := m.vault.Export(id, outPath); err != nil {
		kind := KindIO
		if errors.Is(err, backup.ErrSnapshotNotFound) {
			kind = KindNotFound
		}
		return E(kind, "export", "", id, err)
	}
	return nil
}

// copyFile duplicates a key file preserving its mode, via a temp file so a
// partial copy never shadows the destination.
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
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/toeirei/sshm/internal/gitexec"
	"github.com/toeirei/sshm/internal/giturl"
	"github.com/toeirei/sshm/internal/probe"
	"github.com/toeirei/sshm/internal/sshconfig"
)

// BindState is how far a repo binding got. A binding moves from unbound to
// bound once the alias block and the rewritten remote are in place, and to
// verified once a probe through the alias authenticates.
type BindState int

const (
	StateUnbound BindState = iota
	StateBound
	StateVerified
)

func (s BindState) String() string {
	switch s {
	case StateBound:
		return "bound"
	case StateVerified:
		return "verified"
	default:
		return "unbound"
	}
}

// UseRequest binds one repository's remote to a tagged identity.
type UseRequest struct {
	RepoPath string
	Tag      string
	Remote   string // defaults to "origin"
	NoProbe  bool   // skip the verification probe
}

// UseReport describes the binding Use produced. A failed probe does not
// fail Use; the binding stays in place and the report carries the probe
// diagnostics.
type UseReport struct {
	Tag     string
	Alias   string
	Host    string // resolved forge hostname
	OldURL  string
	NewURL  string
	Changed bool // whether the remote URL was rewritten
	State   BindState
	Probed  bool
	Probe   probe.Result
}

// Use points a repository's remote at a tagged identity: it resolves the
// remote's forge host (following an existing alias if the remote already
// uses one), writes the <platform>-<tag> alias block, rewrites the remote
// URL to go through the alias, records the activation in state, then probes
// the alias. Running it twice with the same inputs changes nothing.
func (m *Manager) Use(ctx context.Context, req UseRequest) (UseReport, error) {
	const op = "use"
	if req.Remote == "" {
		req.Remote = defaultRemote
	}
	if !m.git.IsRepo(req.RepoPath) {
		return UseReport{}, E(KindNotFound, op, "", req.RepoPath, fmt.Errorf("not a git repository"))
	}
	rawURL, err := m.git.RemoteURL(ctx, req.RepoPath, req.Remote)
	if err != nil {
		kind := KindExternalTool
		if errors.Is(err, gitexec.ErrNoRemote) {
			kind = KindNotFound
		}
		return UseReport{}, E(kind, op, "", req.Remote, err)
	}
	binding, err := giturl.Parse(rawURL)
	if err != nil {
		return UseReport{}, E(KindParse, op, "", rawURL, err)
	}

	pair, err := m.pickPair(op, req.Tag, "")
	if err != nil {
		return UseReport{}, err
	}

	f, err := m.loadConfig(op)
	if err != nil {
		return UseReport{}, err
	}

	// A remote that already goes through one of our aliases names the alias
	// as its host; resolve the real forge host from the alias block so a
	// second run derives the same alias instead of stacking a new prefix.
	host := binding.Host
	if b, ok := f.Get(host); ok && b.HostName != "" {
		host = b.HostName
	}
	alias := aliasFor(host, req.Tag)
	rep := UseReport{Tag: req.Tag, Alias: alias, Host: host, OldURL: rawURL}

	fields := sshconfig.Fields{
		HostName:     host,
		User:         "git",
		IdentityFile: pair.PrivatePath,
		Extra:        []string{"IdentitiesOnly yes"},
	}
	old, exists := f.Get(alias)
	same := exists && old.HostName == fields.HostName && old.User == fields.User &&
		filepath.Base(old.IdentityFile) == filepath.Base(fields.IdentityFile)
	if exists && !same {
		if !m.confirm(fmt.Sprintf("Alias %q already points at %s. Rebind it?", alias, old.IdentityFile)) {
			return rep, E(KindConflict, op, "", alias, fmt.Errorf("alias already bound to %s", old.IdentityFile))
		}
		if _, err := m.vault.Snapshot(); err != nil {
			return rep, E(KindIO, op, StepSnapshot, req.Tag, err)
		}
	}
	if !same {
		f.Upsert(alias, fields)
		if err := f.Save(); err != nil {
			return rep, E(KindIO, op, StepConfig, alias, err)
		}
	}

	rep.NewURL = giturl.SSHAliasURL(binding, alias)
	if rep.NewURL != rawURL {
		if err := m.git.SetRemoteURL(ctx, req.RepoPath, req.Remote, rep.NewURL); err != nil {
			return rep, E(KindExternalTool, op, "git remote", req.Remote, err)
		}
		rep.Changed = true
	}

	if err := m.store.UpdateActive(host, req.Tag); err != nil {
		return rep, E(KindIO, op, StepState, req.Tag, err)
	}
	rep.State = StateBound

	if !req.NoProbe && m.prober != nil {
		res, err := m.prober.Probe(ctx, alias)
		if err != nil {
			// Binding already committed; surface the probe trouble in the
			// report rather than unwinding it.
			res = probe.Result{Status: probe.StatusUnreachable, Output: err.Error()}
		}
		rep.Probed = true
		rep.Probe = res
		if res.OK() {
			rep.State = StateVerified
		}
	}
	return rep, nil
}

// TestReport is one probe outcome during connectivity testing.
type TestReport struct {
	Tag    string
	Alias  string
	Result probe.Result
}

// TestTag probes the alias bound to a tag.
func (m *Manager) TestTag(ctx context.Context, tag string) (TestReport, error) {
	const op = "test"
	views, _, err := m.List()
	if err != nil {
		return TestReport{}, err
	}
	for _, v := range views {
		if v.Identity.Tag == tag && v.Alias != "" {
			res, err := m.probeAlias(ctx, v.Alias)
			if err != nil {
				return TestReport{}, E(KindExternalTool, op, "", v.Alias, err)
			}
			return TestReport{Tag: tag, Alias: v.Alias, Result: res}, nil
		}
	}
	return TestReport{}, E(KindNotFound, op, "", tag, fmt.Errorf("tag has no config alias to test"))
}

// TestAll probes every alias bound to an identity and reports each outcome.
func (m *Manager) TestAll(ctx context.Context) ([]TestReport, error) {
	views, _, err := m.List()
	if err != nil {
		return nil, err
	}
	var reports []TestReport
	seen := map[string]bool{}
	for _, v := range views {
		for _, alias := range v.Aliases {
			if seen[alias] {
				continue
			}
			seen[alias] = true
			res, err := m.probeAlias(ctx, alias)
			if err != nil {
				res = probe.Result{Status: probe.StatusUnreachable, Output: err.Error()}
			}
			reports = append(reports, TestReport{Tag: v.Identity.Tag, Alias: alias, Result: res})
		}
	}
	return reports, nil
}

func (m *Manager) probeAlias(ctx context.Context, alias string) (probe.Result, error) {
	if m.prober == nil {
		return probe.Result{}, fmt.Errorf("no prober configured")
	}
	return m.prober.Probe(ctx, alias)
}

// RepoInfo describes which identity a repository's remote currently rides.
type RepoInfo struct {
	Remote  string
	URL     string
	Binding giturl.Binding
	Alias   string // set when the remote host is one of our alias blocks
	Host    string // resolved forge hostname
	Tag     string // active tag for the host, from state
}

// Info inspects a repository's remote without changing anything.
func (m *Manager) Info(ctx context.Context, repoPath, remote string) (RepoInfo, error) {
	const op = "info"
	if remote == "" {
		remote = defaultRemote
	}
	if !m.git.IsRepo(repoPath) {
		return RepoInfo{}, E(KindNotFound, op, "", repoPath, fmt.Errorf("not a git repository"))
	}
	rawURL, err := m.git.RemoteURL(ctx, repoPath, remote)
	if err != nil {
		kind := KindExternalTool
		if errors.Is(err, gitexec.ErrNoRemote) {
			kind = KindNotFound
		}
		return RepoInfo{}, E(kind, op, "", remote, err)
	}
	binding, err := giturl.Parse(rawURL)
	if err != nil {
		return RepoInfo{}, E(KindParse, op, "", rawURL, err)
	}

	info := RepoInfo{Remote: remote, URL: rawURL, Binding: binding, Host: binding.Host}
	f, err := m.loadConfig(op)
	if err != nil {
		return RepoInfo{}, err
	}
	if b, ok := f.Get(binding.Host); ok && b.HostName != "" {
		info.Alias = binding.Host
		info.Host = b.HostName
	}
	info.Tag = m.store.Read().Active[info.Host]
	return info, nil
}

// TestRepo probes the host a repository's remote points at, through the
// alias when one is bound.
func (m *Manager) TestRepo(ctx context.Context, repoPath, remote string) (TestReport, error) {
	info, err := m.Info(ctx, repoPath, remote)
	if err != nil {
		return TestReport{}, err
	}
	target := info.Alias
	if target == "" {
		target = info.Host
	}
	res, err := m.probeAlias(ctx, target)
	if err != nil {
		return TestReport{}, E(KindExternalTool, "test", "", target, err)
	}
	return TestReport{Tag: info.Tag, Alias: target, Result: res}, nil
}

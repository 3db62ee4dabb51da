// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package testutil provides in-memory stand-ins for the external tools the
// orchestrator shells out to, so its sequencing can be tested without
// ssh-keygen, ssh or git on the machine.
package testutil

import (
	"context"
	"fmt"
	"os"

	"github.com/toeirei/sshm/internal/gitexec"
	"github.com/toeirei/sshm/internal/keygen"
	"github.com/toeirei/sshm/internal/probe"
)

// FakeGenerator writes plain text files instead of real key material.
type FakeGenerator struct {
	Calls []keygen.Request
	Fail  error // returned instead of generating, when set
}

func (g *FakeGenerator) Generate(_ context.Context, req keygen.Request) error {
	g.Calls = append(g.Calls, req)
	if g.Fail != nil {
		return g.Fail
	}
	priv := fmt.Sprintf("fake %s private key\n", req.Type)
	pub := fmt.Sprintf("ssh-%s AAAAfake %s\n", req.Type, req.Comment)
	if err := os.WriteFile(req.Path, []byte(priv), 0o600); err != nil {
		return err
	}
	return os.WriteFile(req.Path+".pub", []byte(pub), 0o644)
}

// FakeProber returns canned results per target and records what was probed.
type FakeProber struct {
	Results map[string]probe.Result // keyed by alias or host
	Default probe.Result
	Err     error
	Probed  []string
}

func (p *FakeProber) Probe(_ context.Context, target string) (probe.Result, error) {
	p.Probed = append(p.Probed, target)
	if p.Err != nil {
		return probe.Result{}, p.Err
	}
	if r, ok := p.Results[target]; ok {
		return r, nil
	}
	return p.Default, nil
}

// FakeGit is an in-memory git remote store.
type FakeGit struct {
	Repos   map[string]map[string]string // repo path -> remote name -> url
	SetErr  error
	SetLog  [][3]string // repo, remote, url
	GetCall int
}

func NewFakeGit() *FakeGit {
	return &FakeGit{Repos: map[string]map[string]string{}}
}

// AddRepo registers a repository with an origin remote.
func (g *FakeGit) AddRepo(path, originURL string) {
	g.Repos[path] = map[string]string{"origin": originURL}
}

func (g *FakeGit) IsRepo(path string) bool {
	_, ok := g.Repos[path]
	return ok
}

func (g *FakeGit) RemoteURL(_ context.Context, repoPath, remote string) (string, error) {
	g.GetCall++
	remotes, ok := g.Repos[repoPath]
	if !ok {
		return "", fmt.Errorf("not a repository: %s", repoPath)
	}
	url, ok := remotes[remote]
	if !ok {
		return "", fmt.Errorf("get remote %q: %w", remote, gitexec.ErrNoRemote)
	}
	return url, nil
}

func (g *FakeGit) SetRemoteURL(_ context.Context, repoPath, remote, url string) error {
	if g.SetErr != nil {
		return g.SetErr
	}
	remotes, ok := g.Repos[repoPath]
	if !ok {
		return fmt.Errorf("not a repository: %s", repoPath)
	}
	remotes[remote] = url
	g.SetLog = append(g.SetLog, [3]string{repoPath, remote, url})
	return nil
}

// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package gitexec wraps the handful of git invocations sshm needs. The
// remote rewrite itself is delegated to the host git tool; sshm only
// computes the replacement URL string.
package gitexec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrNoRemote is returned when the repository has no remote with the
// requested name.
var ErrNoRemote = errors.New("remote not configured")

// Runner is the git surface the orchestrator depends on.
type Runner interface {
	IsRepo(path string) bool
	RemoteURL(ctx context.Context, repoPath, remote string) (string, error)
	SetRemoteURL(ctx context.Context, repoPath, remote, url string) error
}

// ExecRunner shells out to the system git binary.
type ExecRunner struct {
	Bin string // empty means "git" from PATH
}

func (r *ExecRunner) bin() string {
	if r.Bin != "" {
		return r.Bin
	}
	return "git"
}

// IsRepo reports whether path contains a git repository.
func (r *ExecRunner) IsRepo(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil && info.IsDir()
}

// RemoteURL returns the URL of the named remote.
func (r *ExecRunner) RemoteURL(ctx context.Context, repoPath, remote string) (string, error) {
	out, err := r.run(ctx, repoPath, "remote", "get-url", remote)
	if err != nil {
		if strings.Contains(err.Error(), "No such remote") {
			return "", fmt.Errorf("%q: %w", remote, ErrNoRemote)
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// SetRemoteURL rewrites the named remote to url.
func (r *ExecRunner) SetRemoteURL(ctx context.Context, repoPath, remote, url string) error {
	_, err := r.run(ctx, repoPath, "remote", "set-url", remote, url)
	return err
}

func (r *ExecRunner) run(ctx context.Context, repoPath string, args ...string) (string, error) {
	bin, err := exec.LookPath(r.bin())
	if err != nil {
		return "", errors.New("git binary not found in PATH")
	}
	full := append([]string{"-C", repoPath}, args...)
	var stdout, stderr strings.Builder
	cmd := exec.CommandContext(ctx, bin, full...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package probe tests connectivity for a configured alias by running the
// system SSH client (`ssh -T git@<alias>`) and classifying its exit status
// and stderr. The forges close authenticated test connections with a
// nonzero status, so classification leans on the output text first.
package probe

import (
	"context"
	"errors"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// Status classifies a probe outcome.
type Status int

const (
	StatusOK Status = iota
	StatusAuthRejected
	StatusUnreachable
	StatusTimeout
)

// String returns a short machine-friendly name for the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusAuthRejected:
		return "auth-rejected"
	case StatusUnreachable:
		return "unreachable"
	default:
		return "timeout"
	}
}

// Result is the classified probe outcome. Output carries the tool's
// diagnostic text verbatim so nothing is lost between the forge and the
// user.
type Result struct {
	Status Status
	User   string // authenticated identity name, when the forge reports one
	Output string
}

// OK reports whether the authentication succeeded.
func (r Result) OK() bool { return r.Status == StatusOK }

// Prober runs a connectivity probe against an alias or hostname.
type Prober interface {
	Probe(ctx context.Context, hostOrAlias string) (Result, error)
}

// ExecProber shells out to the system ssh binary.
type ExecProber struct {
	Bin     string        // empty means "ssh" from PATH
	Timeout time.Duration // bound on the probe; zero means 10s
}

func (p *ExecProber) bin() string {
	if p.Bin != "" {
		return p.Bin
	}
	return "ssh"
}

func (p *ExecProber) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return 10 * time.Second
}

// Probe runs `ssh -T git@<host>` bounded by the configured timeout and
// classifies the outcome. A missing ssh binary is an error; every other
// outcome is a classified Result.
func (p *ExecProber) Probe(ctx context.Context, hostOrAlias string) (Result, error) {
	bin, err := exec.LookPath(p.bin())
	if err != nil {
		return Result{}, errors.New("ssh binary not found in PATH")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	var out strings.Builder
	cmd := exec.CommandContext(ctx, bin, "-T", "-o", "BatchMode=yes", "git@"+hostOrAlias)
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return Result{Status: StatusTimeout, Output: strings.TrimSpace(out.String())}, nil
	}
	exitCode := 0
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	} else if runErr != nil {
		return Result{Status: StatusUnreachable, Output: runErr.Error()}, nil
	}
	return Classify(exitCode, out.String()), nil
}

var userPattern = regexp.MustCompile(`Hi ([^!]+)!`)

// Classify maps the ssh client's exit code and combined output to a probe
// result. Kept pure so every classification branch is testable without a
// network.
func Classify(exitCode int, output string) Result {
	res := Result{Output: strings.TrimSpace(output)}
	lower := strings.ToLower(output)

	switch {
	case strings.Contains(lower, "successfully authenticated"):
		res.Status = StatusOK
		if m := userPattern.FindStringSubmatch(output); m != nil {
			res.User = m[1]
		}
	case strings.Contains(lower, "welcome to"):
		res.Status = StatusOK
	case strings.Contains(lower, "permission denied"):
		res.Status = StatusAuthRejected
	case strings.Contains(lower, "connection timed out"):
		res.Status = StatusTimeout
	case strings.Contains(lower, "could not resolve"),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "no route to host"),
		strings.Contains(lower, "network is unreachable"):
		res.Status = StatusUnreachable
	case exitCode == 0 || exitCode == 1:
		// Forges commonly exit 1 after a successful auth handshake because
		// they refuse the shell; without a denial in the output this counts
		// as reachable and authenticated.
		res.Status = StatusOK
	default:
		res.Status = StatusUnreachable
	}
	return res
}

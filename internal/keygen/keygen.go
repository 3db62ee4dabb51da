// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package keygen drives the system key-generation primitive. sshm performs
// no cryptography itself; ssh-keygen produces the key material and this
// package only checks its contract: both halves of the pair exist on
// success, no partial files on failure.
package keygen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/toeirei/sshm/internal/logging"
	"github.com/toeirei/sshm/internal/model"
)

// Request describes one key pair to generate.
type Request struct {
	Type    model.KeyType
	Path    string // private key output path; public half lands at Path+".pub"
	Comment string
}

// Generator produces key pairs. The orchestrator depends on this interface
// so tests can substitute a fake that writes plain files.
type Generator interface {
	Generate(ctx context.Context, req Request) error
}

// ExecGenerator shells out to ssh-keygen.
type ExecGenerator struct {
	// Bin is the ssh-keygen binary; empty means "ssh-keygen" from PATH.
	Bin string
}

func (g *ExecGenerator) bin() string {
	if g.Bin != "" {
		return g.Bin
	}
	return "ssh-keygen"
}

// Generate runs ssh-keygen for the request. The new pair is created without
// a passphrase, matching interactive forge usage.
func (g *ExecGenerator) Generate(ctx context.Context, req Request) error {
	bin, err := exec.LookPath(g.bin())
	if err != nil {
		return fmt.Errorf("ssh-keygen not found: %w", err)
	}

	args := append(req.Type.GenerateArgs(), "-C", req.Comment, "-f", req.Path, "-N", "", "-q")
	logging.Debugf("running %s %s", bin, strings.Join(args, " "))

	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		// The tool promises no partial files on failure; enforce it anyway
		// so an aborted run can't leave half an identity behind.
		os.Remove(req.Path)
		os.Remove(req.Path + ".pub")
		return fmt.Errorf("ssh-keygen failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	// Success must yield exactly the pair.
	if _, err := os.Stat(req.Path); err != nil {
		return fmt.Errorf("ssh-keygen reported success but %s is missing: %w", req.Path, err)
	}
	if _, err := os.Stat(req.Path + ".pub"); err != nil {
		// A private key without its public half is not a valid identity.
		os.Remove(req.Path)
		return fmt.Errorf("ssh-keygen reported success but %s.pub is missing: %w", req.Path, err)
	}
	return nil
}

// CheckAvailable reports a missing ssh-keygen binary without running it.
func (g *ExecGenerator) CheckAvailable() error {
	if _, err := exec.LookPath(g.bin()); err != nil {
		return errors.New("ssh-keygen binary not found in PATH")
	}
	return nil
}

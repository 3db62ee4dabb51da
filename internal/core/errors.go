// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

package core

import (
	"errors"
	"fmt"
)

// Kind classifies orchestrator failures. Leaf packages raise their own typed
// errors; the orchestrator is the translation boundary that folds them into
// this taxonomy before anything reaches the user.
type Kind int

const (
	KindParse Kind = iota
	KindNotFound
	KindConflict
	KindExternalTool
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindExternalTool:
		return "external tool"
	default:
		return "io"
	}
}

// Steps of the fixed mutation sequence. Every failure names the step that
// failed, so "how far did it get" is always answerable; the most recent
// snapshot is the recovery path for anything past StepSnapshot.
const (
	StepSnapshot = "snapshot"
	StepKeyFiles = "key files"
	StepConfig   = "ssh config"
	StepState    = "state"
)

// Error is the orchestrator's error type: the failure kind, the operation
// and sequence step it happened in, and the offending identifier.
type Error struct {
	Kind Kind
	Op   string // orchestrator operation, e.g. "remove"
	Step string // fixed-sequence step, empty for pre-flight failures
	Ref  string // offending tag, alias or snapshot id
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %q", e.Op, e.Ref)
	if e.Step != "" {
		msg += fmt.Sprintf(" (step: %s)", e.Step)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// E builds an orchestrator error.
func E(kind Kind, op, step, ref string, err error) *Error {
	return &Error{Kind: kind, Op: op, Step: step, Ref: ref, Err: err}
}

// KindOf extracts the failure kind from an error chain; unclassified errors
// count as IO.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIO
}

// StepOf extracts the failed step name from an error chain, if any.
func StepOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Step
	}
	return ""
}

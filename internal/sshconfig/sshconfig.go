// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package sshconfig is an ordered, line-preserving store for the SSH client
// configuration. It models the file as a preamble followed by a sequence of
// Host blocks. Directives sshm doesn't manage (Port, ProxyJump, comments,
// interior blank lines) are carried verbatim and re-emitted untouched, so
// user customizations inside a managed block survive a rewrite. Only blocks
// that are created or modified in memory are re-rendered canonically.
package sshconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Modeled directive keys. Everything else in a block is an "extra" line.
const (
	keyHostName     = "hostname"
	keyUser         = "user"
	keyIdentityFile = "identityfile"
)

var (
	// ErrAliasNotFound is returned when an operation targets an alias that
	// has no Host block.
	ErrAliasNotFound = errors.New("alias not found in ssh config")
	// ErrAliasExists is returned when a rename would collide with an
	// existing Host block.
	ErrAliasExists = errors.New("alias already exists in ssh config")
)

// ParseError describes malformed input. It always names the offending line;
// the parser never guesses.
type ParseError struct {
	Path   string
	Line   int // 1-based
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %q", e.Path, e.Line, e.Reason, e.Text)
}

// Fields holds the modeled directives of a Host block.
type Fields struct {
	HostName     string
	User         string
	IdentityFile string
	// Extra carries verbatim directive lines appended after the modeled
	// ones. It is only consulted when a new block is inserted; on update the
	// block's existing extra lines are preserved instead.
	Extra []string
}

// Block is one Host entry of the config file.
type Block struct {
	Alias        string
	HostName     string
	User         string
	IdentityFile string
	Extra        []string // unmodeled lines, verbatim

	// raw holds the block's original lines (Host line included, trailing
	// blank padding stripped). nil means the block is dirty and will be
	// rendered canonically.
	raw  []string
	line int // line number of the Host directive, for diagnostics
}

// File is the parsed configuration. Mutations happen in memory; Save writes
// the whole file atomically via a temp file in the same directory.
type File struct {
	path     string
	preamble []string // verbatim lines before the first Host block
	blocks   []*Block
}

// Load parses the config file at path. A missing file yields an empty store.
func Load(path string) (*File, error) {
	f := &File{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ssh config: %w", err)
	}
	if err := f.parse(string(data)); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) parse(content string) error {
	lines := strings.Split(content, "\n")
	// A trailing newline produces one empty final element; drop it so it
	// isn't mistaken for a blank padding line.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	seen := map[string]int{}
	var cur *Block
	for i, line := range lines {
		no := i + 1
		trimmed := strings.TrimSpace(line)

		if isHostLine(trimmed) {
			alias := strings.TrimSpace(trimmed[len("Host"):])
			if alias == "" {
				return &ParseError{Path: f.path, Line: no, Text: line, Reason: "Host directive without a name"}
			}
			if prev, dup := seen[alias]; dup {
				return &ParseError{Path: f.path, Line: no, Text: line,
					Reason: fmt.Sprintf("duplicate Host alias (first defined on line %d)", prev)}
			}
			seen[alias] = no
			cur = &Block{Alias: alias, line: no, raw: []string{line}}
			f.blocks = append(f.blocks, cur)
			continue
		}

		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			key, val, err := splitDirective(line)
			if err != nil {
				return &ParseError{Path: f.path, Line: no, Text: line, Reason: err.Error()}
			}
			if cur != nil {
				cur.raw = append(cur.raw, line)
				switch strings.ToLower(key) {
				case keyHostName:
					cur.HostName = val
				case keyUser:
					cur.User = val
				case keyIdentityFile:
					cur.IdentityFile = val
				default:
					cur.Extra = append(cur.Extra, line)
				}
				continue
			}
			// Global directive before any Host block; preserved verbatim.
			f.preamble = append(f.preamble, line)
			continue
		}

		// Blank line or comment.
		if cur != nil {
			cur.raw = append(cur.raw, line)
			if trimmed != "" {
				cur.Extra = append(cur.Extra, line)
			}
		} else {
			f.preamble = append(f.preamble, line)
		}
	}

	// Trailing blank lines are padding owned by the block; serialization
	// re-adds exactly one.
	for _, b := range f.blocks {
		b.raw = trimTrailingBlanks(b.raw)
	}
	f.preamble = trimTrailingBlanks(f.preamble)
	return nil
}

func isHostLine(trimmed string) bool {
	if len(trimmed) < 5 {
		return false
	}
	return strings.EqualFold(trimmed[:4], "host") && (trimmed[4] == ' ' || trimmed[4] == '\t')
}

// splitDirective splits a directive line into key and value. A directive
// without a value, or with an unterminated quoted value, is malformed.
func splitDirective(line string) (key, val string, err error) {
	trimmed := strings.TrimSpace(line)
	if strings.Count(trimmed, `"`)%2 != 0 {
		return "", "", errors.New("unterminated quoted value")
	}
	fields := strings.FieldsFunc(trimmed, func(r rune) bool { return r == ' ' || r == '\t' || r == '=' })
	if len(fields) < 2 {
		return "", "", errors.New("directive is missing a value")
	}
	key = fields[0]
	val = strings.TrimSpace(trimmed[len(key):])
	val = strings.TrimLeft(val, " \t=")
	return key, val, nil
}

func trimTrailingBlanks(lines []string) []string {
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Path returns the file path the store was loaded from.
func (f *File) Path() string { return f.path }

// Blocks returns a copy of the block sequence in file order.
func (f *File) Blocks() []Block {
	out := make([]Block, len(f.blocks))
	for i, b := range f.blocks {
		out[i] = *b
	}
	return out
}

// Get returns the block with the given alias.
func (f *File) Get(alias string) (Block, bool) {
	for _, b := range f.blocks {
		if b.Alias == alias {
			return *b, true
		}
	}
	return Block{}, false
}

// Upsert inserts a block for alias or updates the existing one in place,
// keeping its original position. Existing unmodeled lines are preserved;
// Fields.Extra only seeds a newly inserted block. Applying the same fields
// twice renders byte-identical output the second time.
func (f *File) Upsert(alias string, fields Fields) {
	for _, b := range f.blocks {
		if b.Alias == alias {
			b.HostName = fields.HostName
			b.User = fields.User
			b.IdentityFile = fields.IdentityFile
			b.raw = nil
			return
		}
	}
	f.blocks = append(f.blocks, &Block{
		Alias:        alias,
		HostName:     fields.HostName,
		User:         fields.User,
		IdentityFile: fields.IdentityFile,
		Extra:        append([]string(nil), fields.Extra...),
	})
}

// Remove deletes the block with the given alias together with its owned
// blank-line padding. Removing an absent alias is a no-op.
func (f *File) Remove(alias string) bool {
	for i, b := range f.blocks {
		if b.Alias == alias {
			f.blocks = append(f.blocks[:i], f.blocks[i+1:]...)
			return true
		}
	}
	return false
}

// Rename changes the alias of an existing block in place and applies the
// given fields. Combined with Save it is atomic from the caller's view:
// either the whole file carries the rename or it is unchanged.
func (f *File) Rename(oldAlias, newAlias string, fields Fields) error {
	if oldAlias != newAlias {
		if _, exists := f.Get(newAlias); exists {
			return fmt.Errorf("rename %q to %q: %w", oldAlias, newAlias, ErrAliasExists)
		}
	}
	for _, b := range f.blocks {
		if b.Alias == oldAlias {
			b.Alias = newAlias
			b.HostName = fields.HostName
			b.User = fields.User
			b.IdentityFile = fields.IdentityFile
			b.raw = nil
			return nil
		}
	}
	return fmt.Errorf("rename %q: %w", oldAlias, ErrAliasNotFound)
}

// Render serializes the store. Untouched blocks are emitted verbatim; dirty
// blocks canonically. Every block is followed by exactly one blank line.
func (f *File) Render() []byte {
	var lines []string
	if len(f.preamble) > 0 {
		lines = append(lines, f.preamble...)
		lines = append(lines, "")
	}
	for _, b := range f.blocks {
		if b.raw != nil {
			lines = append(lines, b.raw...)
		} else {
			lines = append(lines, "Host "+b.Alias)
			if b.HostName != "" {
				lines = append(lines, "  HostName "+b.HostName)
			}
			if b.User != "" {
				lines = append(lines, "  User "+b.User)
			}
			if b.IdentityFile != "" {
				lines = append(lines, "  IdentityFile "+b.IdentityFile)
			}
			lines = append(lines, b.Extra...)
		}
		lines = append(lines, "")
	}
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

// Save writes the rendered file to a temporary file in the target directory
// and renames it over the config file, so no reader ever sees a partial
// write.
func (f *File) Save() error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create ssh config directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config.sshm.*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(f.Render()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace ssh config: %w", err)
	}
	return nil
}

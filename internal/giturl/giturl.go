// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package giturl parses and rebuilds git remote URLs. It understands the
// SSH scp-like form (user@host:owner/repo.git) and the HTTPS form
// (https://host/owner/repo.git). Parsing is strict: anything it can't fully
// account for is an error, never a best-effort partial result.
package giturl

import (
	"fmt"
	"strings"
)

// Scheme identifies the remote URL form.
type Scheme string

const (
	SchemeSSH   Scheme = "ssh"
	SchemeHTTPS Scheme = "https"
	SchemeHTTP  Scheme = "http"
)

// Binding is the parsed remote URL. Host may be a real platform hostname or
// a configured ssh config alias; the caller decides which by consulting the
// config. DotGit records whether the original URL carried the ".git" suffix
// so rebuilding is an exact inverse of parsing.
type Binding struct {
	Scheme Scheme
	User   string // ssh user, "git" for the common forges; empty for https
	Host   string
	Owner  string
	Repo   string
	DotGit bool
}

// ParseError reports a remote URL sshm cannot handle, with the fragment that
// broke parsing.
type ParseError struct {
	URL    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse remote url %q: %s", e.URL, e.Reason)
}

// Parse dissects a git remote URL into its binding.
func Parse(raw string) (Binding, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Binding{}, &ParseError{URL: raw, Reason: "empty url"}
	}

	if strings.HasPrefix(raw, "https://") || strings.HasPrefix(raw, "http://") {
		return parseHTTP(raw)
	}
	if strings.Contains(raw, "://") {
		scheme, _, _ := strings.Cut(raw, "://")
		return Binding{}, &ParseError{URL: raw, Reason: fmt.Sprintf("unsupported scheme %q", scheme)}
	}
	if strings.Contains(raw, "@") && strings.Contains(raw, ":") {
		return parseSCP(raw)
	}
	return Binding{}, &ParseError{URL: raw, Reason: "neither ssh nor https form"}
}

// parseSCP handles user@host:owner/repo[.git].
func parseSCP(raw string) (Binding, error) {
	user, rest, _ := strings.Cut(raw, "@")
	if user == "" {
		return Binding{}, &ParseError{URL: raw, Reason: "missing user before @"}
	}
	host, path, ok := strings.Cut(rest, ":")
	if !ok || host == "" {
		return Binding{}, &ParseError{URL: raw, Reason: "missing host before :"}
	}
	owner, repo, err := splitPath(raw, path)
	if err != nil {
		return Binding{}, err
	}
	b := Binding{Scheme: SchemeSSH, User: user, Host: host, Owner: owner, Repo: repo}
	b.Repo, b.DotGit = cutDotGit(repo)
	return b, nil
}

// parseHTTP handles http(s)://host/owner/repo[.git].
func parseHTTP(raw string) (Binding, error) {
	scheme := SchemeHTTPS
	rest := strings.TrimPrefix(raw, "https://")
	if rest == raw {
		scheme = SchemeHTTP
		rest = strings.TrimPrefix(raw, "http://")
	}
	host, path, ok := strings.Cut(rest, "/")
	if !ok || host == "" {
		return Binding{}, &ParseError{URL: raw, Reason: "missing host"}
	}
	owner, repo, err := splitPath(raw, path)
	if err != nil {
		return Binding{}, err
	}
	b := Binding{Scheme: scheme, Host: host, Owner: owner, Repo: repo}
	b.Repo, b.DotGit = cutDotGit(repo)
	return b, nil
}

func splitPath(raw, path string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.Trim(path, "/"), "/")
	if !ok || owner == "" || repo == "" {
		return "", "", &ParseError{URL: raw, Reason: "missing owner/repo segment"}
	}
	return owner, repo, nil
}

func cutDotGit(repo string) (string, bool) {
	if trimmed := strings.TrimSuffix(repo, ".git"); trimmed != repo && trimmed != "" {
		return trimmed, true
	}
	return repo, false
}

// String rebuilds the URL in its original form. It is the exact inverse of
// Parse for the supported forms.
func (b Binding) String() string {
	repo := b.Repo
	if b.DotGit {
		repo += ".git"
	}
	switch b.Scheme {
	case SchemeSSH:
		return fmt.Sprintf("%s@%s:%s/%s", b.User, b.Host, b.Owner, repo)
	default:
		return fmt.Sprintf("%s://%s/%s/%s", b.Scheme, b.Host, b.Owner, repo)
	}
}

// BuildAliasURL substitutes only the host component with the given alias,
// preserving scheme-appropriate separators and the rest of the URL.
func BuildAliasURL(b Binding, alias string) string {
	b.Host = alias
	return b.String()
}

// SSHAliasURL forces the binding into SSH form against the given alias. This
// is what `use` writes back as the remote: HTTPS remotes are converted so
// the chosen identity actually applies.
func SSHAliasURL(b Binding, alias string) string {
	b.Host = alias
	if b.Scheme != SchemeSSH {
		b.Scheme = SchemeSSH
		b.User = "git"
		b.DotGit = true
	}
	return b.String()
}

// PlatformName returns the short platform name of a hostname: "github" for
// github.com. Used to derive the config alias for a (host, tag) pair.
func PlatformName(host string) string {
	name, _, _ := strings.Cut(host, ".")
	return name
}

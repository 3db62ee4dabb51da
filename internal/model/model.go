// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package model defines the core domain types shared across sshm: key types,
// identities and the merged identity view produced by reconciliation.
package model

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// KeyType is a closed enumeration of the key algorithms sshm manages.
type KeyType string

const (
	KeyTypeEd25519 KeyType = "ed25519"
	KeyTypeRSA     KeyType = "rsa"
	KeyTypeECDSA   KeyType = "ecdsa"
	KeyTypeDSA     KeyType = "dsa"
)

// DefaultKeyType is used when the user doesn't ask for a specific algorithm.
const DefaultKeyType = KeyTypeEd25519

// DefaultTag is the reserved label for the unlabeled key pair (id_<type>
// without a tag suffix). It lives outside the user tag namespace.
const DefaultTag = "default"

// KeyTypes lists all supported key types in preference order. The order
// matters: type auto-detection for a tag probes them in this order.
var KeyTypes = []KeyType{KeyTypeEd25519, KeyTypeRSA, KeyTypeECDSA, KeyTypeDSA}

// ParseKeyType validates a user-supplied key type string.
func ParseKeyType(s string) (KeyType, error) {
	for _, t := range KeyTypes {
		if string(t) == strings.ToLower(s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unsupported key type %q (supported: %s)", s, KeyTypeList())
}

// KeyTypeList returns the supported types as a comma-separated string for
// error messages and help text.
func KeyTypeList() string {
	names := make([]string, len(KeyTypes))
	for i, t := range KeyTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// GenerateArgs returns the per-variant ssh-keygen parameters for the type.
// RSA and ECDSA carry an explicit bit length; ed25519 and dsa have fixed sizes.
func (t KeyType) GenerateArgs() []string {
	switch t {
	case KeyTypeRSA:
		return []string{"-t", "rsa", "-b", "4096"}
	case KeyTypeECDSA:
		return []string{"-t", "ecdsa", "-b", "521"}
	case KeyTypeDSA:
		return []string{"-t", "dsa"}
	default:
		return []string{"-t", "ed25519"}
	}
}

// Identity is a managed key pair plus its metadata. The private and public
// paths always differ only by the ".pub" suffix; a pair missing either half
// is not a valid identity (the registry reports it as an orphan instead).
type Identity struct {
	Tag         string
	Type        KeyType
	PrivatePath string
	PublicPath  string
	Comment     string
	Fingerprint string
	Size        int64
	ModTime     time.Time
}

// IsDefault reports whether the identity is the unlabeled default pair.
func (id Identity) IsDefault() bool { return id.Tag == DefaultTag }

// FileName returns the private key file name for a (type, tag) pair under
// the identity directory naming convention: id_<type> for the default tag,
// id_<type>.<tag> otherwise.
func FileName(t KeyType, tag string) string {
	if tag == DefaultTag || tag == "" {
		return "id_" + string(t)
	}
	return fmt.Sprintf("id_%s.%s", t, tag)
}

// KeyPaths returns the private and public key paths for a (type, tag) pair
// in the given identity directory.
func KeyPaths(dir string, t KeyType, tag string) (private, public string) {
	private = filepath.Join(dir, FileName(t, tag))
	return private, private + ".pub"
}

// IdentityView is one row of the merged view produced by reconciliation: an
// identity joined with its configured alias and activation state. It is the
// sole source of truth for listing and status output.
type IdentityView struct {
	Identity     Identity
	Alias        string   // primary ssh config alias, empty if none
	Aliases      []string // every alias whose block rides this key file, sorted
	HostName     string   // HostName of the primary alias block
	Active       bool
	ExistsOnDisk bool
}

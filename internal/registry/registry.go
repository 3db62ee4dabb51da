// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package registry scans the identity directory and reconciles what it finds
// against the state file and the SSH client config. The filesystem, the
// state and the config are three independently writable sources of truth, so
// reconciliation treats all of them as untrusted input and reports
// inconsistencies instead of repairing them.
package registry

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/toeirei/sshm/internal/logging"
	"github.com/toeirei/sshm/internal/model"
)

// KeyPair is one candidate identity found on disk: a (type, tag) pair with
// whichever halves of the key pair actually exist.
type KeyPair struct {
	Tag         string
	Type        model.KeyType
	PrivatePath string
	PublicPath  string
	HasPrivate  bool
	HasPublic   bool
	Size        int64
	ModTime     time.Time
	Comment     string
	Fingerprint string
}

// ScanResult classifies the identity directory contents.
type ScanResult struct {
	Pairs         []KeyPair // complete pairs, tagged or default
	OrphanPublic  []KeyPair // .pub present, private half missing
	OrphanPrivate []KeyPair // private present, .pub missing
}

// Scan walks the identity directory and classifies every file that matches
// the id_<type>[.<tag>][.pub] naming convention. Orphans are reported, never
// auto-repaired.
func Scan(sshDir string) (ScanResult, error) {
	var res ScanResult
	entries, err := os.ReadDir(sshDir)
	if os.IsNotExist(err) {
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("read identity directory: %w", err)
	}

	type half struct{ priv, pub bool }
	found := map[string]half{} // key: <type>/<tag>
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".pub")
		isPub := name != e.Name()
		t, tag, ok := parseKeyFileName(name)
		if !ok {
			continue
		}
		k := string(t) + "/" + tag
		h := found[k]
		if isPub {
			h.pub = true
		} else {
			h.priv = true
		}
		found[k] = h
	}

	for k, h := range found {
		typeName, tag, _ := strings.Cut(k, "/")
		t := model.KeyType(typeName)
		pair := KeyPair{Tag: tag, Type: t, HasPrivate: h.priv, HasPublic: h.pub}
		pair.PrivatePath, pair.PublicPath = model.KeyPaths(sshDir, t, tag)

		if h.priv {
			if info, err := os.Stat(pair.PrivatePath); err == nil {
				pair.Size = info.Size()
				pair.ModTime = info.ModTime()
			}
		}
		if h.pub {
			pair.Fingerprint, pair.Comment = readPublicKeyInfo(pair.PublicPath)
		}

		switch {
		case h.priv && h.pub:
			res.Pairs = append(res.Pairs, pair)
		case h.pub:
			res.OrphanPublic = append(res.OrphanPublic, pair)
		default:
			res.OrphanPrivate = append(res.OrphanPrivate, pair)
		}
	}

	sortPairs(res.Pairs)
	sortPairs(res.OrphanPublic)
	sortPairs(res.OrphanPrivate)
	return res, nil
}

// parseKeyFileName splits a private key file name into type and tag.
// "id_ed25519" is the default pair, "id_ed25519.work" the pair tagged work.
func parseKeyFileName(name string) (model.KeyType, string, bool) {
	rest, ok := strings.CutPrefix(name, "id_")
	if !ok {
		return "", "", false
	}
	typeName, tag, tagged := strings.Cut(rest, ".")
	if !tagged {
		tag = model.DefaultTag
	}
	if tag == "" {
		return "", "", false
	}
	for _, t := range model.KeyTypes {
		if string(t) == typeName {
			return t, strings.ToLower(tag), true
		}
	}
	return "", "", false
}

// readPublicKeyInfo extracts the SHA256 fingerprint and comment from a
// public key file. Unparseable keys are logged and reported without a
// fingerprint rather than failing the scan.
func readPublicKeyInfo(path string) (fingerprint, comment string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", ""
	}
	pub, comment, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		logging.Debugf("unparseable public key %s: %v", path, err)
		return "", ""
	}
	return ssh.FingerprintSHA256(pub), comment
}

func sortPairs(pairs []KeyPair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Tag != pairs[j].Tag {
			return pairs[i].Tag < pairs[j].Tag
		}
		return pairs[i].Type < pairs[j].Type
	})
}

// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

package registry

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/toeirei/sshm/internal/model"
	"github.com/toeirei/sshm/internal/sshconfig"
	"github.com/toeirei/sshm/internal/state"
)

// Reconcile joins the filesystem scan, the state file and the config blocks
// into one merged view per identity plus a list of detected inconsistencies.
// It is a pure function: it never touches the filesystem, so every
// cross-source drift case is testable in isolation.
//
// Sort order places active identities first, the remainder in lexical tag
// order; that keeps the identity someone is most likely looking for at the
// top of every listing.
func Reconcile(scan ScanResult, st state.State, blocks []sshconfig.Block) ([]model.IdentityView, []string) {
	var problems []string

	activeTags := map[string]bool{}
	for _, tag := range st.Active {
		activeTags[tag] = true
	}

	// Index config blocks by the base name of their IdentityFile so the
	// association survives ~, relative and absolute path spellings. One key
	// file can back several blocks, one alias per forge.
	blocksByKeyFile := map[string][]sshconfig.Block{}
	for _, b := range blocks {
		if b.IdentityFile == "" {
			continue
		}
		base := filepath.Base(b.IdentityFile)
		blocksByKeyFile[base] = append(blocksByKeyFile[base], b)
	}
	for _, bs := range blocksByKeyFile {
		sort.Slice(bs, func(i, j int) bool { return bs[i].Alias < bs[j].Alias })
	}

	var views []model.IdentityView
	seenTags := map[string]bool{}
	ownedKeyFiles := map[string]bool{}
	for _, pair := range scan.Pairs {
		view := model.IdentityView{
			Identity: model.Identity{
				Tag:         pair.Tag,
				Type:        pair.Type,
				PrivatePath: pair.PrivatePath,
				PublicPath:  pair.PublicPath,
				Comment:     pair.Comment,
				Fingerprint: pair.Fingerprint,
				Size:        pair.Size,
				ModTime:     pair.ModTime,
			},
			Active:       activeTags[pair.Tag],
			ExistsOnDisk: true,
		}
		base := filepath.Base(pair.PrivatePath)
		if bs := blocksByKeyFile[base]; len(bs) > 0 {
			view.Alias = bs[0].Alias
			view.HostName = bs[0].HostName
			for _, b := range bs {
				view.Aliases = append(view.Aliases, b.Alias)
			}
			ownedKeyFiles[base] = true
		}
		views = append(views, view)
		seenTags[pair.Tag] = true
	}

	// Active tags whose key files are gone still deserve a row: the state
	// says they exist, the disk disagrees.
	for pattern, tag := range st.Active {
		if seenTags[tag] {
			continue
		}
		problems = append(problems, fmt.Sprintf("state: active tag %q for %q has no key files on disk", tag, pattern))
		views = append(views, model.IdentityView{
			Identity: model.Identity{Tag: tag},
			Active:   true,
		})
		seenTags[tag] = true
	}

	if st.DefaultTag != "" && !seenTags[st.DefaultTag] {
		problems = append(problems, fmt.Sprintf("state: default marker %q has no key files on disk", st.DefaultTag))
	}

	// Config blocks that point at identity-convention key files nobody owns
	// are orphan aliases: reported, never silently deleted.
	for _, b := range blocks {
		if b.IdentityFile == "" {
			continue
		}
		base := filepath.Base(b.IdentityFile)
		if ownedKeyFiles[base] {
			continue
		}
		if _, _, ok := parseKeyFileName(strings.TrimSuffix(base, ".pub")); ok {
			problems = append(problems, fmt.Sprintf("config: alias %q references %s which has no backing identity", b.Alias, base))
		}
	}

	for _, orphan := range scan.OrphanPublic {
		problems = append(problems, fmt.Sprintf("disk: %s has no private key", filepath.Base(orphan.PublicPath)))
	}
	for _, orphan := range scan.OrphanPrivate {
		problems = append(problems, fmt.Sprintf("disk: %s has no public key", filepath.Base(orphan.PrivatePath)))
	}

	sort.SliceStable(views, func(i, j int) bool {
		if views[i].Active != views[j].Active {
			return views[i].Active
		}
		if views[i].Identity.Tag != views[j].Identity.Tag {
			return views[i].Identity.Tag < views[j].Identity.Tag
		}
		return views[i].Identity.Type < views[j].Identity.Type
	})
	return views, problems
}

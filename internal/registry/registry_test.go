// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/toeirei/sshm/internal/model"
	"github.com/toeirei/sshm/internal/sshconfig"
	"github.com/toeirei/sshm/internal/state"
)

func seed(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
	return dir
}

func TestScanClassifiesPairsAndOrphans(t *testing.T) {
	dir := seed(t,
		"id_ed25519", "id_ed25519.pub", // default pair
		"id_ed25519.work", "id_ed25519.work.pub", // tagged pair
		"id_rsa.lonely",     // private without public
		"id_ecdsa.ghost.pub", // public without private
		"known_hosts",       // not a key file
		"id_foobar.x",       // unknown type
	)

	res, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Pairs) != 2 {
		t.Fatalf("expected 2 complete pairs, got %+v", res.Pairs)
	}
	if res.Pairs[0].Tag != model.DefaultTag || res.Pairs[1].Tag != "work" {
		t.Errorf("unexpected pair tags: %q, %q", res.Pairs[0].Tag, res.Pairs[1].Tag)
	}
	if len(res.OrphanPrivate) != 1 || res.OrphanPrivate[0].Tag != "lonely" {
		t.Errorf("unexpected private orphans: %+v", res.OrphanPrivate)
	}
	if len(res.OrphanPublic) != 1 || res.OrphanPublic[0].Tag != "ghost" {
		t.Errorf("unexpected public orphans: %+v", res.OrphanPublic)
	}
}

func TestScanMissingDirIsEmpty(t *testing.T) {
	res, err := Scan(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(res.Pairs)+len(res.OrphanPublic)+len(res.OrphanPrivate) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func pair(tag string, typ model.KeyType) KeyPair {
	priv, pub := model.KeyPaths("/home/u/.ssh", typ, tag)
	return KeyPair{Tag: tag, Type: typ, PrivatePath: priv, PublicPath: pub, HasPrivate: true, HasPublic: true}
}

func TestReconcileMergesThreeSources(t *testing.T) {
	scan := ScanResult{Pairs: []KeyPair{
		pair("personal", model.KeyTypeEd25519),
		pair("work", model.KeyTypeEd25519),
	}}
	st := state.State{Active: map[string]string{"github.com": "work"}}
	blocks := []sshconfig.Block{
		{Alias: "github-work", HostName: "github.com", IdentityFile: "~/.ssh/id_ed25519.work"},
	}

	views, problems := Reconcile(scan, st, blocks)
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	// Active identity sorts first even though "personal" < "work".
	if views[0].Identity.Tag != "work" || !views[0].Active {
		t.Errorf("active identity not first: %+v", views[0])
	}
	if views[0].Alias != "github-work" || views[0].HostName != "github.com" {
		t.Errorf("alias not joined: %+v", views[0])
	}
	if views[1].Identity.Tag != "personal" || views[1].Active {
		t.Errorf("unexpected second view: %+v", views[1])
	}
	if !views[1].ExistsOnDisk {
		t.Error("scanned identity should exist on disk")
	}
}

func TestReconcileLexicalOrderAmongInactive(t *testing.T) {
	scan := ScanResult{Pairs: []KeyPair{
		pair("zeta", model.KeyTypeEd25519),
		pair("alpha", model.KeyTypeEd25519),
		pair("mid", model.KeyTypeEd25519),
	}}
	views, _ := Reconcile(scan, state.State{}, nil)
	got := []string{views[0].Identity.Tag, views[1].Identity.Tag, views[2].Identity.Tag}
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestReconcileAttachesEveryAliasOfSharedKeyFile(t *testing.T) {
	scan := ScanResult{Pairs: []KeyPair{pair("work", model.KeyTypeEd25519)}}
	// One tag bound against two forges: both blocks ride the same key file.
	blocks := []sshconfig.Block{
		{Alias: "gitlab-work", HostName: "gitlab.com", IdentityFile: "~/.ssh/id_ed25519.work"},
		{Alias: "github-work", HostName: "github.com", IdentityFile: "~/.ssh/id_ed25519.work"},
	}

	views, problems := Reconcile(scan, state.State{}, blocks)
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(views))
	}
	if views[0].Alias != "github-work" || views[0].HostName != "github.com" {
		t.Errorf("primary alias not deterministic: %+v", views[0])
	}
	got := strings.Join(views[0].Aliases, ",")
	if got != "github-work,gitlab-work" {
		t.Errorf("aliases = %q, want both in lexical order", got)
	}
}

func TestReconcileReportsActiveTagWithoutFiles(t *testing.T) {
	st := state.State{Active: map[string]string{"github.com": "gone"}}
	views, problems := Reconcile(ScanResult{}, st, nil)
	if len(problems) != 1 {
		t.Fatalf("expected 1 problem, got %v", problems)
	}
	if len(views) != 1 || views[0].ExistsOnDisk || !views[0].Active {
		t.Fatalf("expected a ghost view for the active tag, got %+v", views)
	}
}

func TestReconcileReportsOrphanAlias(t *testing.T) {
	blocks := []sshconfig.Block{
		{Alias: "github-old", HostName: "github.com", IdentityFile: "~/.ssh/id_ed25519.old"},
		{Alias: "unrelated", HostName: "example.org", IdentityFile: "~/.ssh/corporate_key"},
	}
	_, problems := Reconcile(ScanResult{}, state.State{}, blocks)
	if len(problems) != 1 {
		t.Fatalf("expected exactly 1 problem, got %v", problems)
	}
	// Only the alias pointing at an identity-convention file is an orphan;
	// foreign IdentityFile entries are none of our business.
	if want := "github-old"; !strings.Contains(problems[0], want) {
		t.Errorf("problem %q does not name %q", problems[0], want)
	}
}

func TestReconcileReportsDiskOrphans(t *testing.T) {
	scan := ScanResult{
		OrphanPublic:  []KeyPair{pair("ghost", model.KeyTypeECDSA)},
		OrphanPrivate: []KeyPair{pair("lonely", model.KeyTypeRSA)},
	}
	_, problems := Reconcile(scan, state.State{}, nil)
	if len(problems) != 2 {
		t.Fatalf("expected 2 problems, got %v", problems)
	}
}

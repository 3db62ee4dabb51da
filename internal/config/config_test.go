// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load(nil, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.BackupDir != "key_backups" {
		t.Errorf("backup dir = %q", c.BackupDir)
	}
	if c.KeyType != "ed25519" {
		t.Errorf("key type = %q", c.KeyType)
	}
	if c.ProbeTimeout != 10*time.Second {
		t.Errorf("probe timeout = %v", c.ProbeTimeout)
	}
	if c.Language != "en" {
		t.Errorf("language = %q", c.Language)
	}
}

func TestLoadExplicitFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sshm.yaml")
	content := "ssh_dir: /tmp/keys\nkey_type: rsa\nprobe_timeout: 3s\ndebug: true\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := Load(nil, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.SSHDir != "/tmp/keys" || c.KeyType != "rsa" || !c.Debug {
		t.Errorf("config = %+v", c)
	}
	if c.ProbeTimeout != 3*time.Second {
		t.Errorf("probe timeout = %v", c.ProbeTimeout)
	}
	// Untouched keys keep their defaults.
	if c.BackupDir != "key_backups" {
		t.Errorf("backup dir = %q", c.BackupDir)
	}
}

func TestLoadMalformedFileFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sshm.yaml")
	if err := os.WriteFile(path, []byte("ssh_dir: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(nil, path); err == nil {
		t.Fatal("want error for malformed config")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SSHM_KEY_TYPE", "ecdsa")
	c, err := Load(nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if c.KeyType != "ecdsa" {
		t.Errorf("key type = %q, want env override", c.KeyType)
	}
}

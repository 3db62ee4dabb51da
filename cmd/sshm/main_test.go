// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.
package main

import (
	"testing"
)

func TestRootCmdHasAllSubcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{
		"add", "remove", "rename", "switch", "tag", "list", "copy",
		"use", "info", "test", "backup", "restore", "menu",
	}
	have := map[string]bool{}
	for _, c := range root.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestRootCmdPersistentFlags(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"config", "ssh-dir", "lang", "debug", "yes"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("missing persistent flag --%s", name)
		}
	}
}

func TestBackupCmdHasVaultSubcommands(t *testing.T) {
	b := backupCmd()
	have := map[string]bool{}
	for _, c := range b.Commands() {
		have[c.Name()] = true
	}
	if !have["list"] || !have["export"] {
		t.Errorf("backup subcommands = %v", have)
	}
}

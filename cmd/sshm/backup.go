// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

// backup.go defines the vault subcommands: taking, listing, exporting and
// restoring snapshots of the identity directory.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toeirei/sshm/internal/i18n"
)

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the identity directory into the vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := newManager().Backup()
			if err != nil {
				return err
			}
			fmt.Println(i18n.T("backup.created", snap.ID, snap.FileCount))
			return nil
		},
	}
	cmd.AddCommand(backupListCmd(), backupExportCmd())
	return cmd
}

func backupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snaps, err := newManager().Snapshots()
			if err != nil {
				return err
			}
			if len(snaps) == 0 {
				fmt.Println(i18n.T("backup.none"))
				return nil
			}
			for _, s := range snaps {
				fmt.Println(i18n.T("backup.entry", s.ID, s.FileCount))
			}
			return nil
		},
	}
}

func backupExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <snapshot-id> <output-file>",
		Short: "Export a snapshot as a zstd-compressed tarball",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newManager().Export(args[0], args[1]); err != nil {
				return err
			}
			fmt.Println(i18n.T("backup.exported", args[0], args[1]))
			return nil
		},
	}
}

func restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <snapshot-id>",
		Short: "Copy a snapshot's files back into the identity directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := newManager().Restore(args[0])
			if err != nil {
				return err
			}
			fmt.Println(i18n.T("restore.done", n, args[0]))
			return nil
		},
	}
}

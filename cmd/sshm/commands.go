// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

// commands.go defines the identity-level subcommands: creating, removing,
// renaming, switching, tagging, listing and copying key pairs.

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
	"github.com/toeirei/sshm/internal/core"
	"github.com/toeirei/sshm/internal/i18n"
	"github.com/toeirei/sshm/internal/model"
	"github.com/toeirei/sshm/internal/tui"
)

// parseTypeFlag turns the --type flag into a key type, empty meaning
// "decide for me".
func parseTypeFlag(s string) (model.KeyType, error) {
	if s == "" {
		return "", nil
	}
	return model.ParseKeyType(s)
}

func addCmd() *cobra.Command {
	var keyType, host, comment string
	cmd := &cobra.Command{
		Use:   "add <tag>",
		Short: "Generate a new key pair and bind it to a config alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTypeFlag(keyType)
			if err != nil {
				return err
			}
			if t == "" && cfg.KeyType != "" {
				if t, err = model.ParseKeyType(cfg.KeyType); err != nil {
					return err
				}
			}
			res, err := newManager().Add(cmd.Context(), core.AddRequest{
				Tag: args[0], Type: t, Host: host, Comment: comment,
			})
			if err != nil {
				return err
			}
			fmt.Println(i18n.T("add.created", res.PrivatePath))
			fmt.Println(i18n.T("add.alias", res.Alias, res.Host))
			fmt.Println(i18n.T("add.public_key"))
			fmt.Println(res.PublicKey)
			return nil
		},
	}
	cmd.Flags().StringVarP(&keyType, "type", "t", "", fmt.Sprintf("key type (%s)", model.KeyTypeList()))
	cmd.Flags().StringVar(&host, "host", "", "forge hostname (inferred from the tag when omitted)")
	cmd.Flags().StringVarP(&comment, "comment", "C", "", "key comment")
	return cmd
}

func removeCmd() *cobra.Command {
	var keyType string
	cmd := &cobra.Command{
		Use:   "remove <tag>",
		Short: "Delete a key pair, its config alias and its state entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTypeFlag(keyType)
			if err != nil {
				return err
			}
			res, err := newManager().Remove(cmd.Context(), args[0], t)
			if err != nil {
				return err
			}
			for _, f := range res.RemovedFiles {
				fmt.Println(i18n.T("remove.file", f))
			}
			for _, a := range res.RemovedAliases {
				fmt.Println(i18n.T("remove.alias", a))
			}
			fmt.Println(i18n.T("remove.snapshot", res.Snapshot.ID))
			return nil
		},
	}
	cmd.Flags().StringVarP(&keyType, "type", "t", "", "key type to remove when the tag is ambiguous")
	return cmd
}

func renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old-tag> <new-tag>",
		Short: "Relabel an identity across key files, config and state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := newManager().Rename(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(i18n.T("rename.done", args[0], args[1]))
			for _, a := range res.RenamedAliases {
				fmt.Println(i18n.T("rename.alias", a[0], a[1]))
			}
			fmt.Println(i18n.T("rename.snapshot", res.Snapshot.ID))
			return nil
		},
	}
}

func switchCmd() *cobra.Command {
	var keyType string
	cmd := &cobra.Command{
		Use:   "switch <tag>",
		Short: "Install a tagged key pair as the default identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTypeFlag(keyType)
			if err != nil {
				return err
			}
			res, err := newManager().Switch(cmd.Context(), args[0], t)
			if err != nil {
				return err
			}
			if res.Preserved != "" {
				fmt.Println(i18n.T("switch.preserved", res.Preserved))
			}
			fmt.Println(i18n.T("switch.done", res.Tag, res.Type))
			return nil
		},
	}
	cmd.Flags().StringVarP(&keyType, "type", "t", "", "key type to switch when the tag is ambiguous")
	return cmd
}

func tagCmd() *cobra.Command {
	var keyType string
	var andSwitch bool
	cmd := &cobra.Command{
		Use:   "tag <new-tag>",
		Short: "Copy the current default key pair to a tagged identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTypeFlag(keyType)
			if err != nil {
				return err
			}
			m := newManager()
			path, err := m.Tag(cmd.Context(), t, args[0])
			if err != nil {
				return err
			}
			fmt.Println(i18n.T("tag.done", path))
			if andSwitch {
				res, err := m.Switch(cmd.Context(), args[0], t)
				if err != nil {
					return err
				}
				fmt.Println(i18n.T("switch.done", res.Tag, res.Type))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&keyType, "type", "t", "", "key type of the default pair to copy")
	cmd.Flags().BoolVar(&andSwitch, "switch", false, "make the new tag the default identity")
	return cmd
}

func listCmd() *cobra.Command {
	var showKey bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List identities with their aliases and activation state",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			views, problems, err := newManager().List()
			if err != nil {
				return err
			}
			if len(views) == 0 {
				fmt.Println(i18n.T("list.empty"))
			}
			for _, v := range views {
				mark := " "
				if v.Active {
					mark = "*"
				}
				line := fmt.Sprintf("%s %-16s %-8s", mark, v.Identity.Tag, v.Identity.Type)
				if len(v.Aliases) > 0 {
					line += fmt.Sprintf(" %-24s", strings.Join(v.Aliases, ","))
				}
				if !v.Identity.ModTime.IsZero() {
					line += " " + v.Identity.ModTime.Format("2006-01-02")
				}
				if v.Identity.Fingerprint != "" {
					line += " " + v.Identity.Fingerprint
				}
				if !v.ExistsOnDisk {
					line += " " + i18n.T("list.missing_files")
				}
				fmt.Println(strings.TrimRight(line, " "))
				if showKey && v.ExistsOnDisk {
					if data, err := os.ReadFile(v.Identity.PublicPath); err == nil {
						fmt.Println("  " + strings.TrimSpace(string(data)))
					}
				}
			}
			for _, p := range problems {
				fmt.Println(i18n.T("list.problem", p))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showKey, "show-key", false, "include public key content")
	return cmd
}

func copyCmd() *cobra.Command {
	var keyType string
	cmd := &cobra.Command{
		Use:   "copy <tag>",
		Short: "Copy an identity's public key to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTypeFlag(keyType)
			if err != nil {
				return err
			}
			key, err := newManager().PublicKey(args[0], t)
			if err != nil {
				return err
			}
			if err := clipboard.WriteAll(key); err != nil {
				// No clipboard available; print the key so it is still usable.
				fmt.Println(key)
				return errors.New(i18n.T("copy.clipboard_error", err))
			}
			fmt.Println(i18n.T("copy.done", args[0]))
			return nil
		},
	}
	cmd.Flags().StringVarP(&keyType, "type", "t", "", "key type when the tag is ambiguous")
	return cmd
}

func menuCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Open the interactive identity picker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(newManager())
		},
	}
}

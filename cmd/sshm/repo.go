// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

// repo.go defines the repository-facing subcommands: binding a repo's
// remote to an identity, inspecting the binding, and probing connectivity.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/toeirei/sshm/internal/core"
	"github.com/toeirei/sshm/internal/i18n"
	"github.com/toeirei/sshm/internal/probe"
)

func useCmd() *cobra.Command {
	var remote, repoPath string
	var noProbe bool
	cmd := &cobra.Command{
		Use:   "use <tag>",
		Short: "Point the repository's remote at an identity alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := newManager().Use(cmd.Context(), core.UseRequest{
				RepoPath: repoPath, Tag: args[0], Remote: remote, NoProbe: noProbe,
			})
			if err != nil {
				return err
			}
			if rep.Changed {
				fmt.Println(i18n.T("use.rebound", rep.OldURL, rep.NewURL))
			} else {
				fmt.Println(i18n.T("use.unchanged", rep.NewURL))
			}
			if rep.Probed {
				printProbe(rep.Alias, rep.Probe)
			}
			fmt.Println(i18n.T("use.state", rep.Tag, rep.State))
			return nil
		},
	}
	cmd.Flags().StringVar(&remote, "remote", "origin", "remote to rewrite")
	cmd.Flags().StringVar(&repoPath, "repo", ".", "repository path")
	cmd.Flags().BoolVar(&noProbe, "no-probe", false, "skip the verification probe")
	return cmd
}

func infoCmd() *cobra.Command {
	var remote, repoPath string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show which identity the repository's remote rides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := newManager().Info(cmd.Context(), repoPath, remote)
			if err != nil {
				return err
			}
			fmt.Println(i18n.T("info.remote", info.Remote, info.URL))
			fmt.Println(i18n.T("info.host", info.Host))
			if info.Alias != "" {
				fmt.Println(i18n.T("info.alias", info.Alias))
			}
			if info.Tag != "" {
				fmt.Println(i18n.T("info.tag", info.Tag))
			} else {
				fmt.Println(i18n.T("info.unbound"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&remote, "remote", "origin", "remote to inspect")
	cmd.Flags().StringVar(&repoPath, "repo", ".", "repository path")
	return cmd
}

func testCmd() *cobra.Command {
	var repoPath string
	var all bool
	cmd := &cobra.Command{
		Use:   "test [tag]",
		Short: "Probe forge authentication through the configured aliases",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := newManager()
			if repoPath != "" {
				rep, err := m.TestRepo(cmd.Context(), repoPath, "")
				if err != nil {
					return err
				}
				printProbe(rep.Alias, rep.Result)
				return nil
			}
			if len(args) == 1 && !all {
				rep, err := m.TestTag(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printProbe(rep.Alias, rep.Result)
				return nil
			}
			reports, err := m.TestAll(cmd.Context())
			if err != nil {
				return err
			}
			if len(reports) == 0 {
				fmt.Println(i18n.T("test.nothing"))
			}
			for _, rep := range reports {
				printProbe(rep.Alias, rep.Result)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&repoPath, "repo", "", "probe the host this repository's remote points at")
	cmd.Flags().BoolVar(&all, "all", false, "probe every configured alias")
	return cmd
}

// printProbe renders one probe outcome.
func printProbe(target string, res probe.Result) {
	switch res.Status {
	case probe.StatusOK:
		if res.User != "" {
			fmt.Println(i18n.T("test.ok_user", target, res.User))
		} else {
			fmt.Println(i18n.T("test.ok", target))
		}
	case probe.StatusAuthRejected:
		fmt.Println(i18n.T("test.auth_rejected", target))
	case probe.StatusTimeout:
		fmt.Println(i18n.T("test.timeout", target))
	default:
		fmt.Println(i18n.T("test.unreachable", target))
	}
}

// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the command-line interface for sshm using the Cobra
// library. It defines the root command, the persistent flags shared by all
// subcommands, and the main entry point for execution.

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/toeirei/sshm/internal/config"
	"github.com/toeirei/sshm/internal/core"
	"github.com/toeirei/sshm/internal/gitexec"
	"github.com/toeirei/sshm/internal/i18n"
	"github.com/toeirei/sshm/internal/keygen"
	"github.com/toeirei/sshm/internal/logging"
	"github.com/toeirei/sshm/internal/probe"
	"github.com/toeirei/sshm/internal/tui"
	"golang.org/x/term"
)

var version = "dev" // set by the linker

var (
	cfgFile    string
	flagYes    bool
	cfg        config.Config
	flagSSHDir string
)

// main is the entry point of the application.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		// Cobra already printed the error.
		os.Exit(1)
	}
}

// newRootCmd creates and configures a new root cobra command. Fresh
// instances are also used for isolated testing.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sshm",
		Short: "sshm juggles SSH identities without breaking your config.",
		Long: `sshm manages multiple SSH key pairs as named identities: it keeps the
key files, the matching ~/.ssh/config Host blocks and the activation
state consistent, and rewrites git remotes to ride per-identity aliases.
Every destructive step is preceded by a snapshot in the backup vault.

Running without a subcommand launches the interactive picker.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile == "" {
				if err := config.EnsureDefaultFile(); err != nil {
					logging.Debugf("could not write default config: %v", err)
				}
			}
			var err error
			cfg, err = config.Load(cmd, cfgFile)
			if err != nil {
				return errors.New(i18n.T("config.error_load", err))
			}
			if flagSSHDir != "" {
				cfg.SSHDir = flagSSHDir
			}
			// The flag is spelled --lang but the config key is "language".
			if lang, _ := cmd.Flags().GetString("lang"); lang != "" {
				cfg.Language = lang
			}
			i18n.Init(cfg.Language)
			logging.SetDebug(cfg.Debug)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(newManager())
		},
	}

	cmd.AddCommand(addCmd())
	cmd.AddCommand(removeCmd())
	cmd.AddCommand(renameCmd())
	cmd.AddCommand(switchCmd())
	cmd.AddCommand(tagCmd())
	cmd.AddCommand(listCmd())
	cmd.AddCommand(copyCmd())
	cmd.AddCommand(useCmd())
	cmd.AddCommand(infoCmd())
	cmd.AddCommand(testCmd())
	cmd.AddCommand(backupCmd())
	cmd.AddCommand(restoreCmd())
	cmd.AddCommand(menuCmd())

	cmd.Version = version

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is sshm.yaml in the user config directory)")
	cmd.PersistentFlags().StringVar(&flagSSHDir, "ssh-dir", "", "identity directory (default ~/.ssh)")
	cmd.PersistentFlags().String("lang", "", `output language ("en")`)
	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagYes, "yes", "y", false, "assume yes on confirmation prompts")

	return cmd
}

// newManager wires a Manager against the real external tools.
func newManager() *core.Manager {
	return core.New(core.Options{
		SSHDir:    cfg.SSHDir,
		BackupDir: cfg.BackupDir,
		Generator: &keygen.ExecGenerator{},
		Prober:    &probe.ExecProber{Timeout: cfg.ProbeTimeout},
		Git:       &gitexec.ExecRunner{},
		Confirm:   confirm,
	})
}

// confirm asks the user before a destructive step. --yes short-circuits;
// without a terminal the answer is always no, so scripts fail safe.
func confirm(prompt string) bool {
	if flagYes {
		return true
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		logging.Warnf("%s", i18n.T("prompt.no_tty"))
		return false
	}
	fmt.Fprintf(os.Stderr, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

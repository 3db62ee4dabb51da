// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

// package tui provides the interactive identity picker for sshm.
// This file defines the shared lipgloss styles used across the views.
package tui // import "github.com/toeirei/sshm/internal/tui"

import "github.com/charmbracelet/lipgloss"

// colorPalette defines the core colors used in the TUI.
const (
	colorSubtle    = lipgloss.Color("240") // Muted gray
	colorHighlight = lipgloss.Color("81")  // A nice teal/cyan
	colorSpecial   = lipgloss.Color("208") // An orange for special attention
	colorError     = lipgloss.Color("196") // A bright red
	colorSuccess   = lipgloss.Color("40")  // A nice green
)

var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	titleStyle = lipgloss.NewStyle().
			Foreground(colorHighlight).
			Bold(true).
			Padding(1, 2)

	helpStyle = lipgloss.NewStyle().Foreground(colorSubtle)

	itemStyle         = lipgloss.NewStyle()
	selectedItemStyle = lipgloss.NewStyle().Foreground(colorHighlight)

	// Identities the state file references but that have no key files.
	ghostItemStyle = lipgloss.NewStyle().
			Strikethrough(true).
			Foreground(colorSubtle)

	activeMarkStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	errorStyle      = lipgloss.NewStyle().Foreground(colorError)
	successStyle    = lipgloss.NewStyle().Foreground(colorSuccess)
	problemStyle    = lipgloss.NewStyle().Foreground(colorSpecial)
)

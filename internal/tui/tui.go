// Copyright (c) 2025 ToeiRei
// sshm - SSH identity and config manager
// This source code is licensed under the MIT license found in the LICENSE file.

// package tui provides the interactive identity picker for sshm. It lists
// the merged identity view and lets the user switch, test and copy
// identities without remembering tags.
package tui // import "github.com/toeirei/sshm/internal/tui"

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/toeirei/sshm/internal/core"
	"github.com/toeirei/sshm/internal/i18n"
	"github.com/toeirei/sshm/internal/model"
)

// identitiesMsg delivers a fresh merged view after a reload.
type identitiesMsg struct {
	views    []model.IdentityView
	problems []string
	err      error
}

// actionDoneMsg reports the outcome of a switch, test or copy.
type actionDoneMsg struct {
	status string
	ok     bool
	reload bool
}

// pickerModel is the top-level model: the identity list plus a status line.
type pickerModel struct {
	mgr      *core.Manager
	views    []model.IdentityView
	problems []string
	cursor   int
	status   string
	statusOK bool
	busy     bool
	spin     spinner.Model
	err      error
}

func newPicker(mgr *core.Manager) pickerModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedItemStyle
	return pickerModel{mgr: mgr, spin: sp}
}

// Run starts the interactive picker and blocks until the user quits.
func Run(mgr *core.Manager) error {
	p := tea.NewProgram(newPicker(mgr), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m pickerModel) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.spin.Tick)
}

func (m pickerModel) loadCmd() tea.Cmd {
	mgr := m.mgr
	return func() tea.Msg {
		views, problems, err := mgr.List()
		return identitiesMsg{views: views, problems: problems, err: err}
	}
}

func (m pickerModel) switchCmd(tag string) tea.Cmd {
	mgr := m.mgr
	return func() tea.Msg {
		if _, err := mgr.Switch(context.Background(), tag, ""); err != nil {
			return actionDoneMsg{status: err.Error()}
		}
		return actionDoneMsg{status: i18n.T("menu.status.switched", tag), ok: true, reload: true}
	}
}

func (m pickerModel) testCmd(tag string) tea.Cmd {
	mgr := m.mgr
	return func() tea.Msg {
		rep, err := mgr.TestTag(context.Background(), tag)
		if err != nil {
			return actionDoneMsg{status: err.Error()}
		}
		if rep.Result.OK() {
			return actionDoneMsg{status: i18n.T("menu.status.test_ok", rep.Alias, rep.Result.User), ok: true}
		}
		return actionDoneMsg{status: i18n.T("menu.status.test_failed", rep.Alias, rep.Result.Status)}
	}
}

func (m pickerModel) copyCmd(tag string, kt model.KeyType) tea.Cmd {
	mgr := m.mgr
	return func() tea.Msg {
		key, err := mgr.PublicKey(tag, kt)
		if err != nil {
			return actionDoneMsg{status: err.Error()}
		}
		if err := clipboard.WriteAll(key); err != nil {
			return actionDoneMsg{status: i18n.T("menu.status.clipboard_error", err)}
		}
		return actionDoneMsg{status: i18n.T("menu.status.copied", tag), ok: true}
	}
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case identitiesMsg:
		m.busy = false
		m.err = msg.err
		m.views = msg.views
		m.problems = msg.problems
		if m.cursor >= len(m.views) {
			m.cursor = max(0, len(m.views)-1)
		}
		return m, nil

	case actionDoneMsg:
		m.busy = false
		m.status = msg.status
		m.statusOK = msg.ok
		if msg.reload {
			return m, m.loadCmd()
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.views)-1 {
				m.cursor++
			}
		case "r":
			m.busy = true
			return m, tea.Batch(m.loadCmd(), m.spin.Tick)
		case "enter":
			if v, ok := m.selected(); ok && !v.Identity.IsDefault() {
				m.busy = true
				return m, tea.Batch(m.switchCmd(v.Identity.Tag), m.spin.Tick)
			}
		case "t":
			if v, ok := m.selected(); ok {
				m.busy = true
				return m, tea.Batch(m.testCmd(v.Identity.Tag), m.spin.Tick)
			}
		case "c":
			if v, ok := m.selected(); ok && v.ExistsOnDisk {
				m.busy = true
				return m, tea.Batch(m.copyCmd(v.Identity.Tag, v.Identity.Type), m.spin.Tick)
			}
		}
	}
	return m, nil
}

func (m pickerModel) selected() (model.IdentityView, bool) {
	if m.cursor < 0 || m.cursor >= len(m.views) {
		return model.IdentityView{}, false
	}
	return m.views[m.cursor], true
}

func (m pickerModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(i18n.T("menu.title")))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}

	if len(m.views) == 0 {
		b.WriteString(helpStyle.Render(i18n.T("menu.empty")))
		b.WriteString("\n")
	}
	for i, v := range m.views {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}
		mark := "  "
		if v.Active {
			mark = activeMarkStyle.Render("* ")
		}
		line := fmt.Sprintf("%s (%s)", v.Identity.Tag, v.Identity.Type)
		if v.Alias != "" {
			line += "  " + v.Alias
		}
		style := itemStyle
		switch {
		case !v.ExistsOnDisk:
			style = ghostItemStyle
		case i == m.cursor:
			style = selectedItemStyle
		}
		b.WriteString(cursor + mark + style.Render(line) + "\n")
	}

	for _, p := range m.problems {
		b.WriteString(problemStyle.Render("! "+p) + "\n")
	}

	b.WriteString("\n")
	if m.busy {
		b.WriteString(m.spin.View() + " " + i18n.T("menu.working") + "\n")
	} else if m.status != "" {
		style := errorStyle
		if m.statusOK {
			style = successStyle
		}
		b.WriteString(style.Render(m.status) + "\n")
	}
	b.WriteString(helpStyle.Render(i18n.T("menu.help")))
	return docStyle.Render(b.String())
}

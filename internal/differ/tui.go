// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package differ

import (
	"errors"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// ErrNotInteractive means the picker needs a terminal on stdin and stdout.
var ErrNotInteractive = errors.New("interactive selection needs a terminal")

// Item is one selectable row.
type Item struct {
	Name   string
	Detail string
}

// Select lets the operator toggle items and returns the chosen indexes in
// list order. An aborted selection returns nil.
func Select(title string, items []Item) ([]int, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return nil, ErrNotInteractive
	}
	m, err := tea.NewProgram(newModel(title, items)).Run()
	if err != nil {
		return nil, err
	}
	return m.(model).chosen(), nil
}

type model struct {
	title    string
	items    []Item
	cursor   int
	selected map[int]bool
	aborted  bool
}

func newModel(title string, items []Item) model {
	return model{title: title, items: items, selected: map[int]bool{}}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "q", "esc", "ctrl+c":
			m.aborted = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case " ":
			if m.selected[m.cursor] {
				delete(m.selected, m.cursor)
			} else {
				m.selected[m.cursor] = true
			}
		case "a":
			if len(m.selected) == len(m.items) {
				m.selected = map[int]bool{}
			} else {
				for i := range m.items {
					m.selected[i] = true
				}
			}
		case "enter":
			if len(m.selected) > 0 {
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", m.title)
	for i, it := range m.items {
		cursor := " "
		if m.cursor == i {
			cursor = ">"
		}
		mark := " "
		if m.selected[i] {
			mark = "x"
		}
		fmt.Fprintf(&b, "%s [%s] %-28s %s\n", cursor, mark, it.Name, it.Detail)
	}
	b.WriteString("\nSPACE: toggle, A: all, ENTER: go, Q/ESCAPE: quit\n")
	return b.String()
}

func (m model) chosen() []int {
	if m.aborted {
		return nil
	}
	var out []int
	for i := range m.items {
		if m.selected[i] {
			out = append(out, i)
		}
	}
	return out
}

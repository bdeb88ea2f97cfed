package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const displayWidth = 24

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	liveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	offlineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	displayStyle = lipgloss.NewStyle().
			Bold(true).
			Width(displayWidth).
			Align(lipgloss.Right).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39"))

	toastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("124")).
			Padding(0, 1)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Shared Calculator"))
	b.WriteString("  ")
	b.WriteString(m.statusLine())
	b.WriteString("\n")

	// 대기 중인 연산 (예: "12 ÷")
	pending := ""
	if m.state.PreviousValue != nil && m.state.Operation != nil {
		pending = fmt.Sprintf("%s %s", *m.state.PreviousValue, m.state.Operation.String())
	}
	b.WriteString(displayStyle.Render(mutedStyle.Render(pending) + "\n" + m.state.Display))
	b.WriteString("\n")

	if m.toast != "" {
		b.WriteString(toastStyle.Render(m.toast))
		b.WriteString("\n")
	}

	b.WriteString(renderHelp())
	return b.String()
}

func (m Model) statusLine() string {
	status := offlineStyle.Render("● Offline")
	if m.connected {
		status = liveStyle.Render("● Live")
	}
	return status + mutedStyle.Render(fmt.Sprintf("  %d online", m.peers))
}

func renderHelp() string {
	keys := []struct{ key, desc string }{
		{"0-9 .", "input"},
		{"+ - * / %", "operator"},
		{"enter", "equals"},
		{"n", "±"},
		{"c", "clear"},
		{"q", "quit"},
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, helpKeyStyle.Render(k.key)+" "+helpDescStyle.Render(k.desc))
	}
	return strings.Join(parts, mutedStyle.Render(" • "))
}

package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Modal is the interface for modal dialogs.
// The Update method returns the updated modal, a command, and a bool indicating if the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

// noticeModal blocks the UI until the user acknowledges a message.
type noticeModal struct {
	title   string
	message string
	danger  bool
}

func newNotice(title, message string) noticeModal {
	return noticeModal{title: title, message: message}
}

func newErrorNotice(title, message string) noticeModal {
	return noticeModal{title: title, message: message, danger: true}
}

func (n noticeModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if key.Matches(msg, keys.Confirm, keys.Escape) {
			return n, nil, true
		}
	}
	return n, nil, false
}

func (n noticeModal) View(theme Theme, width, height int) string {
	return renderDialog(theme, width, height, n.title, n.message, "enter/esc to close", n.danger)
}

// confirmModal asks a yes/no question and runs onYes when accepted.
type confirmModal struct {
	title   string
	message string
	onYes   tea.Cmd
}

func newConfirm(title, message string, onYes tea.Cmd) confirmModal {
	return confirmModal{title: title, message: message, onYes: onYes}
}

func (c confirmModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	msgKey, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil, false
	}
	switch {
	case key.Matches(msgKey, keys.Confirm), msgKey.String() == "y":
		return c, c.onYes, true
	case key.Matches(msgKey, keys.Escape), msgKey.String() == "n":
		return c, nil, true
	}
	return c, nil, false
}

func (c confirmModal) View(theme Theme, width, height int) string {
	return renderDialog(theme, width, height, c.title, c.message, "y/enter confirm · n/esc cancel", true)
}

// renderDialog draws a centered, bordered box with a title, body and hint.
func renderDialog(theme Theme, width, height int, title, body, hint string, danger bool) string {
	styles := theme.Styles()
	border := theme.Accent
	titleStyle := styles.AccentText.Bold(true)
	if danger {
		border = theme.Danger
		titleStyle = styles.DangerText
	}

	boxWidth := 50
	if width > 0 && width-4 < boxWidth {
		boxWidth = maxInt(width-4, 20)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Width(boxWidth - 6).Render(body))
	b.WriteString("\n\n")
	b.WriteString(styles.FaintText.Render(hint))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(border)).
		Padding(1, 2).
		Width(boxWidth).
		Render(b.String())

	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		box,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)),
	)
}

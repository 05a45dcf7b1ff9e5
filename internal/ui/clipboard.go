package ui

import (
	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

// writeClipboard is swapped in tests; the real clipboard needs a display
// or a clipboard utility on PATH.
var writeClipboard = clipboard.WriteAll

type clipboardMsg struct {
	text string
	err  error
}

// copyCmd copies text to the system clipboard.
func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return clipboardMsg{text: text, err: writeClipboard(text)}
	}
}

func (m *Model) handleClipboard(msg clipboardMsg) {
	if msg.err != nil {
		m.logger.WithError(msg.err).Warn("copy to clipboard")
		m.setFlash("Copy failed: "+msg.err.Error(), true)
		return
	}
	m.setFlash("Copied "+truncate(msg.text, 30), false)
}

package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	log "github.com/sirupsen/logrus"

	"github.com/todopad/todopad/internal/logtail"
)

// logLevels is the cycle order of the minimum level filter.
var logLevels = []log.Level{log.DebugLevel, log.InfoLevel, log.WarnLevel, log.ErrorLevel}

// logState holds the client log pane.
type logState struct {
	viewport viewport.Model
	lines    []string
	minLevel log.Level
	path     string
	err      error
}

func newLogState() logState {
	return logState{
		viewport: viewport.New(0, 0),
		minLevel: log.InfoLevel,
	}
}

func (l logState) levelLabel() string {
	return "≥" + strings.ToUpper(l.minLevel.String())
}

func (l *logState) cycleLevel() {
	for i, lvl := range logLevels {
		if lvl == l.minLevel {
			l.minLevel = logLevels[(i+1)%len(logLevels)]
			return
		}
	}
	l.minLevel = log.InfoLevel
}

type logLinesMsg struct {
	path  string
	lines []string
	err   error
}

// loadLogCmd reads the tail of the client log file.
func (m Model) loadLogCmd() tea.Cmd {
	path := ""
	if m.config != nil {
		path = m.config.LogFile
	}
	return func() tea.Msg {
		if path == "" {
			return logLinesMsg{}
		}
		lines, err := logtail.Read(path, LogTailLines)
		return logLinesMsg{path: path, lines: lines, err: err}
	}
}

func (m *Model) handleLogLines(msg logLinesMsg) {
	m.logPane.path = msg.path
	m.logPane.lines = msg.lines
	m.logPane.err = msg.err
	m.updateLogViewport(true)
}

func (m *Model) resizeLogViewport() {
	m.logPane.viewport.Width = maxInt(m.width-2, 0)
	m.logPane.viewport.Height = maxInt(m.height-4, 0)
	m.updateLogViewport(false)
}

// updateLogViewport re-renders the filtered lines. Reloads jump to the end
// so the newest entries are visible.
func (m *Model) updateLogViewport(gotoBottom bool) {
	m.logPane.viewport.SetContent(m.renderLogContent())
	if gotoBottom {
		m.logPane.viewport.GotoBottom()
	}
}

// handleLogKey processes keyboard input for the log pane.
func (m Model) handleLogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.ViewLog):
		m.view = ViewList
		return m, nil
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadLogCmd()
	case msg.String() == "f":
		m.logPane.cycleLevel()
		m.updateLogViewport(true)
		return m, nil
	case key.Matches(msg, m.keys.Top):
		m.logPane.viewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.logPane.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.logPane.viewport, cmd = m.logPane.viewport.Update(msg)
	return m, cmd
}

// renderLog renders the log pane.
func (m Model) renderLog() string {
	title := "Client log"
	if m.logPane.path != "" {
		title += " " + truncateMiddle(m.logPane.path, maxInt(m.width/2, 20))
	}
	return m.renderTitledBox(title, m.logPane.viewport.View(), m.width, maxInt(m.height-2, 3), true)
}

func (m *Model) renderLogContent() string {
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	if m.logPane.err != nil {
		return styles.DangerText.Render(m.logPane.err.Error())
	}
	if m.config == nil || m.config.LogFile == "" {
		return styles.MutedText.Render("Logging to a file is disabled")
	}

	entries := logtail.Filter(m.logPane.lines, m.logPane.minLevel)
	if len(entries) == 0 {
		return styles.MutedText.Render("No log entries at this level")
	}

	bg := newCanvas(m.theme.FocusBg)
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.HasLevel() {
			lines = append(lines, bg.text(e.Raw, styles.FaintText))
			continue
		}
		parts := []string{}
		if !e.Time.IsZero() {
			parts = append(parts, bg.text(e.Time.Format("15:04:05"), styles.FaintText))
		}
		parts = append(parts,
			bg.text(padRight(strings.ToUpper(e.Level.String()), 7), m.levelStyle(e.Level, styles)),
			bg.text(e.Message, styles.Text))
		if fields := e.FieldString(); fields != "" {
			parts = append(parts, bg.text(fields, styles.MutedText))
		}
		lines = append(lines, strings.Join(parts, bg.gap(1)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) levelStyle(level log.Level, styles Styles) lipgloss.Style {
	switch level {
	case log.PanicLevel, log.FatalLevel, log.ErrorLevel:
		return styles.DangerText
	case log.WarnLevel:
		return styles.WarningText
	case log.DebugLevel, log.TraceLevel:
		return styles.FaintText
	default:
		return styles.InfoText
	}
}

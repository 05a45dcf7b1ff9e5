package ui

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/todopad/todopad/internal/todoapi"
)

// renderHeader renders the status bar with all information.
func (m Model) renderHeader() string {
	// Header uses Surface background
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := newCanvas(m.theme.Surface)

	content := m.buildStatusContent(styles, bg)

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Foreground(lipgloss.Color(m.theme.Text)).
		Width(m.width).
		Render(content)
}

// buildStatusContent builds the status bar content string.
func (m Model) buildStatusContent(styles Styles, bg canvas) string {
	compact := m.width < LayoutCompactWidth
	sep := bg.gap(2)

	var parts []string

	// Logo
	parts = append(parts, bg.text("todopad", styles.Logo))

	// Session indicator
	parts = append(parts, m.formatSession(compact, bg))

	if !m.loggedOut() {
		// Page position
		parts = append(parts,
			bg.text("Page", styles.MutedText)+bg.gap(1)+
				bg.text(fmt.Sprintf("%d/%d", maxInt(m.snapshot.Query.Page, 1), m.snapshot.Pages()), styles.Text))

		// Active filter
		if filter := m.filterSummary(); filter != "" {
			parts = append(parts, bg.text(truncate(filter, 30), styles.AccentText))
		}

		// Backend health
		if warning := m.formatHealthWarning(compact, styles, bg); warning != "" {
			parts = append(parts, warning)
		}
	}

	// Requests in flight
	if m.busy > 0 {
		parts = append(parts, bg.text(m.spinner.View(), styles.InfoText))
	}

	// Flash message
	if m.flash != "" {
		style := styles.SuccessText
		if m.flashErr {
			style = styles.DangerText
		}
		parts = append(parts, bg.text(truncate(m.flash, maxInt(m.width/2, 20)), style))
	} else if !compact {
		if ts := m.formatTimestamp(); ts != "" {
			parts = append(parts, bg.text(ts, styles.FaintText))
		}
	}

	return strings.Join(parts, sep)
}

// formatSession shows whether the user is signed in and, when the token
// carries an expiry, how long the server will honour it.
func (m Model) formatSession(compact bool, bg canvas) string {
	if m.loggedOut() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.StatusColor("expired")))
		return bg.text("● SIGNED OUT", style)
	}

	style := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.StatusColor("active")))
	label := "● SIGNED IN"
	if compact {
		label = "● ON"
	}
	out := bg.text(label, style)
	if m.tokenExpiry != nil && !compact {
		remaining := m.tokenExpiry.Sub(m.now)
		muted := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.Muted))
		out += bg.gap(1) + bg.text(formatRemaining(remaining), muted)
	}
	return out
}

// filterSummary renders the active query as "/milk #home".
func (m Model) filterSummary() string {
	q := m.snapshot.Query
	var parts []string
	if q.Text != "" {
		parts = append(parts, "/"+q.Text)
	}
	if q.Tag != "" {
		parts = append(parts, "#"+q.Tag)
	}
	return strings.Join(parts, " ")
}

// formatTimestamp shows when the list was last fetched.
func (m Model) formatTimestamp() string {
	if m.snapshot.LastUpdated.IsZero() {
		return ""
	}
	return "Updated " + m.snapshot.LastUpdated.Local().Format("15:04:05")
}

// formatHealthWarning reports fetch failures.
func (m Model) formatHealthWarning(compact bool, styles Styles, bg canvas) string {
	snap := m.snapshot
	if snap.LastError == nil {
		return ""
	}
	if snap.IsOffline() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.StatusColor("offline"))).Bold(true)
		if compact {
			return bg.text("OFFLINE", style)
		}
		return bg.text("OFFLINE", style) + bg.gap(1) +
			bg.text(fmt.Sprintf("(%d failures)", snap.ConsecutiveFailures), styles.MutedText)
	}
	return bg.text("! "+classifyConnectionError(snap.LastError), styles.WarningText)
}

// classifyConnectionError turns a fetch error into a short label.
func classifyConnectionError(err error) string {
	var statusErr *todoapi.StatusError
	var netErr net.Error
	switch {
	case err == nil:
		return ""
	case errors.Is(err, todoapi.ErrSessionExpired):
		return "SESSION EXPIRED"
	case errors.As(err, &statusErr):
		return fmt.Sprintf("HTTP %d", statusErr.Status)
	case errors.As(err, &netErr) && netErr.Timeout():
		return "TIMEOUT"
	case strings.Contains(strings.ToLower(err.Error()), "connection refused"):
		return "UNREACHABLE"
	default:
		return "ERROR"
	}
}

// renderCommandBar renders the command hints bar.
func (m Model) renderCommandBar() string {
	// Command bar uses Surface background
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := newCanvas(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch m.view {
	case ViewForm:
		commands = []cmd{
			{"tab", "Next field"},
			{"enter", "Next/Save"},
			{"ctrl+s", "Save"},
			{"esc", "Cancel"},
		}
	case ViewFilters:
		commands = []cmd{
			{"tab", "Switch field"},
			{"enter", "Done"},
			{"esc", "Back"},
		}
	case ViewLogin:
		commands = []cmd{
			{"tab", "Switch field"},
			{"enter", "Sign in"},
			{"ctrl+c", "Quit"},
		}
	case ViewLog:
		commands = []cmd{
			{"j/k", "Scroll"},
			{"f", m.logPane.levelLabel()},
			{"r", "Reload"},
			{"esc", "Back"},
		}
	default: // ViewList
		commands = []cmd{
			{"a", "Add"},
			{"e", "Edit"},
			{"d", "Delete"},
			{"space", "Done"},
			{"/", "Search"},
			{"t", "Tag"},
			{"[/]", "Page"},
			{"L", "Logout"},
			{"?", "More"},
		}
	}

	colon := bg.glyph(":")
	sep := bg.gap(2)

	segments := make([]string, 0, len(commands)+1)
	for _, c := range commands {
		segments = append(segments,
			bg.text(c.key, styles.AccentText)+colon+bg.text(c.desc, styles.MutedText))
	}

	// Add theme indicator
	segments = append(segments,
		bg.text("T", styles.AccentText)+colon+bg.text(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).Render(strings.Join(segments, sep))
}

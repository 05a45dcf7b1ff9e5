package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	filterFieldSearch = iota
	filterFieldTag
)

// filterState holds the search and tag inputs. Every edit re-queries the
// backend; the list controller drops results that arrive out of order.
type filterState struct {
	search textinput.Model
	tag    textinput.Model
	focus  int
}

func newFilterState(theme Theme) filterState {
	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search text"
	search.CharLimit = 200

	tag := textinput.New()
	tag.Prompt = "# "
	tag.Placeholder = "tag"
	tag.CharLimit = 100

	f := filterState{search: search, tag: tag}
	f.applyTheme(theme)
	return f
}

func (f *filterState) applyTheme(theme Theme) {
	styles := theme.Styles()
	for _, in := range []*textinput.Model{&f.search, &f.tag} {
		in.PromptStyle = styles.AccentText
		in.TextStyle = styles.Text
		in.PlaceholderStyle = styles.FaintText
	}
}

func (f *filterState) setFocus(field int) tea.Cmd {
	f.focus = field
	if field == filterFieldTag {
		f.search.Blur()
		return f.tag.Focus()
	}
	f.tag.Blur()
	return f.search.Focus()
}

func (f *filterState) reset() {
	f.search.SetValue("")
	f.tag.SetValue("")
}

// openFilters shows the filter inputs prefilled from the current query.
func (m *Model) openFilters(field int) tea.Cmd {
	q := m.snapshot.Query
	m.filters.search.SetValue(q.Text)
	m.filters.tag.SetValue(q.Tag)
	m.filters.search.CursorEnd()
	m.filters.tag.CursorEnd()
	m.view = ViewFilters
	return m.filters.setFocus(field)
}

// handleFiltersKey processes keyboard input for the filter inputs.
func (m Model) handleFiltersKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Confirm):
		m.filters.search.Blur()
		m.filters.tag.Blur()
		m.view = ViewList
		return m, nil

	case msg.String() == "tab", msg.String() == "shift+tab":
		next := filterFieldTag
		if m.filters.focus == filterFieldTag {
			next = filterFieldSearch
		}
		cmd := m.filters.setFocus(next)
		return m, cmd
	}

	var cmd tea.Cmd
	if m.filters.focus == filterFieldTag {
		before := m.filters.tag.Value()
		m.filters.tag, cmd = m.filters.tag.Update(msg)
		if value := m.filters.tag.Value(); value != before {
			tag := strings.TrimSpace(value)
			list := m.list
			search := m.runAction(actionFilter, func(ctx context.Context) (string, error) {
				return "", list.SetTag(ctx, tag)
			})
			return m, tea.Batch(cmd, search)
		}
		return m, cmd
	}

	before := m.filters.search.Value()
	m.filters.search, cmd = m.filters.search.Update(msg)
	if value := m.filters.search.Value(); value != before {
		text := strings.TrimSpace(value)
		list := m.list
		search := m.runAction(actionFilter, func(ctx context.Context) (string, error) {
			return "", list.SetQuery(ctx, text)
		})
		return m, tea.Batch(cmd, search)
	}
	return m, cmd
}

// renderFilters renders the filter inputs above the live result list.
func (m Model) renderFilters() string {
	styles := m.theme.Styles()

	label := func(name string, focused bool) string {
		if focused {
			return styles.Text.Bold(true).Width(8).Render(name)
		}
		return styles.MutedText.Width(8).Render(name)
	}

	search := m.filters.search
	search.Width = maxInt(m.width/2-12, 10)
	tag := m.filters.tag
	tag.Width = maxInt(m.width/4-6, 8)

	inputs := lipgloss.JoinHorizontal(lipgloss.Top,
		label("Search", m.filters.focus == filterFieldSearch)+search.View(),
		"    ",
		label("Tag", m.filters.focus == filterFieldTag)+tag.View(),
	)
	bar := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.BorderFocus)).
		Width(maxInt(m.width-2, 10)).
		Render(inputs)

	// The list below keeps updating while typing.
	preview := m
	preview.height = maxInt(m.height-lipgloss.Height(bar), 6)
	return bar + "\n" + preview.renderList()
}

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/todopad/todopad/internal/todoapi"
)

// listTop is the screen row of the first list item: header, command bar
// and the top border of the list box come before it.
const listTop = 3

// syncSelection keeps the selection on the same item across refreshes,
// clamping when the item is gone.
func (m *Model) syncSelection(selectedID string) {
	items := m.snapshot.Items
	if len(items) == 0 {
		m.selected = 0
		return
	}

	if selectedID != "" {
		for i, item := range items {
			if item.ID == selectedID {
				m.selected = i
				return
			}
		}
	}

	if m.selected >= len(items) {
		m.selected = len(items) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

// selectedItem returns the highlighted item, if any.
func (m Model) selectedItem() (todoapi.Item, bool) {
	if m.selected < 0 || m.selected >= len(m.snapshot.Items) {
		return todoapi.Item{}, false
	}
	return m.snapshot.Items[m.selected], true
}

// rowAt maps a mouse position to an item index in the list pane.
func (m Model) rowAt(x, y int) (int, bool) {
	listWidth, _ := m.paneWidths()
	if x <= 0 || x >= listWidth-1 {
		return 0, false
	}
	row := y - listTop + m.listOffset(m.listHeight()-2)
	if y < listTop || row < 0 || row >= len(m.snapshot.Items) {
		return 0, false
	}
	return row, true
}

// paneWidths splits the screen between the list and the detail pane.
// The detail pane is hidden on narrow terminals.
func (m Model) paneWidths() (list, detail int) {
	switch {
	case m.width >= LayoutExtraWideWidth:
		list = m.width * 55 / 100
	case m.width >= LayoutSplitWidth:
		list = m.width * 60 / 100
	default:
		return m.width, 0
	}
	return list, m.width - list
}

// listHeight is the height of the list box, leaving room for the header,
// command bar and pagination bar.
func (m Model) listHeight() int {
	return maxInt(m.height-3, 3)
}

// listOffset scrolls the rows so the selection stays visible.
func (m Model) listOffset(rows int) int {
	if rows <= 0 || m.selected < rows {
		return 0
	}
	return m.selected - rows + 1
}

// renderList renders the list view with split layout (items + detail).
func (m Model) renderList() string {
	styles := m.theme.Styles()
	height := m.listHeight()
	listWidth, detailWidth := m.paneWidths()

	var body string
	if len(m.snapshot.Items) == 0 {
		msg := "No items yet, press a to add one"
		switch {
		case m.snapshot.Query.Filtered():
			msg = "No items match the current filter"
		case m.snapshot.LastUpdated.IsZero():
			msg = "Loading..."
		}
		body = lipgloss.Place(listWidth, height, lipgloss.Center, lipgloss.Center,
			styles.MutedText.Render(msg))
	} else {
		rows := m.renderRows(listWidth-2, height-2, m.theme.FocusBg)
		body = m.renderTitledBox(m.listTitle(), rows, listWidth, height, true)
	}

	if detailWidth > 0 {
		var detail string
		if item, ok := m.selectedItem(); ok {
			detail = m.renderDetailContent(item, detailWidth-4, m.theme.SurfaceAlt)
		} else {
			detail = lipgloss.NewStyle().
				Foreground(lipgloss.Color(m.theme.Muted)).
				Background(lipgloss.Color(m.theme.SurfaceAlt)).
				Render("Select an item")
		}
		detailPane := m.renderTitledBox("Details", detail, detailWidth, height, false)
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, detailPane)
	}

	return body + "\n" + m.renderPagination()
}

// renderRows renders the visible items as styled rows.
func (m Model) renderRows(width, rows int, bgColor string) string {
	items := m.snapshot.Items
	offset := m.listOffset(rows)

	var lines []string
	for i := offset; i < len(items) && i < offset+rows; i++ {
		selected := i == m.selected
		bg := bgColor
		if selected {
			bg = m.theme.SelectionBg
		}
		content := m.formatRow(items[i], width, bg, selected)
		lines = append(lines, lipgloss.NewStyle().
			Background(lipgloss.Color(bg)).
			Width(width).
			Render(content))
	}
	return strings.Join(lines, "\n")
}

// formatRow formats one item with inline colors.
// Format: "[x] Text  #tag #tag 🖼 📎"
// When selected is true, uses SelectionText color for all text to ensure contrast.
func (m Model) formatRow(item todoapi.Item, width int, bgColor string, selected bool) string {
	bg := newCanvas(bgColor)

	box := "[ ]"
	state := "pending"
	if item.Completed {
		box = "[x]"
		state = "completed"
	}

	var markers []string
	if item.HasThumbnail() {
		markers = append(markers, "🖼")
	}
	if item.HasFile() {
		markers = append(markers, "📎")
	}
	markerStr := strings.Join(markers, " ")
	tags := formatTags(item.Tags)

	textWidth := maxInt(width-lipgloss.Width(box)-lipgloss.Width(tags)-lipgloss.Width(markerStr)-4, 10)
	text := truncate(item.Text, textWidth)
	if text == "" {
		text = "(no text)"
	}

	var boxStyle, textStyle, tagStyle, markerStyle lipgloss.Style
	if selected {
		selText := lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.SelectionText))
		boxStyle, textStyle, tagStyle, markerStyle = selText, selText, selText, selText
	} else {
		styles := m.theme.Styles()
		boxStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.StatusColor(state)))
		textStyle = styles.Text
		if item.Completed {
			textStyle = styles.MutedText.Strikethrough(true)
		}
		tagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(m.theme.StatusColor("tag")))
		markerStyle = styles.FaintText
	}

	parts := bg.text(box, boxStyle) + bg.gap(1) + bg.text(text, textStyle)
	if tags != "" {
		parts += bg.gap(2) + bg.text(tags, tagStyle)
	}
	if markerStr != "" {
		parts += bg.gap(1) + bg.text(markerStr, markerStyle)
	}
	return parts
}

// renderDetailContent renders the full record of the selected item.
func (m Model) renderDetailContent(item todoapi.Item, width int, bgColor string) string {
	styles := m.theme.Styles().WithBackground(bgColor)
	bg := newCanvas(bgColor)

	label := func(name string) string {
		return bg.text(padRight(name, 10), styles.MutedText)
	}

	lines := []string{
		lipgloss.NewStyle().
			Width(width).
			Background(lipgloss.Color(bgColor)).
			Foreground(lipgloss.Color(m.theme.Text)).
			Bold(true).
			Render(item.Text),
		"",
	}

	badge := m.theme.Styles().StatusStyle("pending").Render("OPEN")
	if item.Completed {
		badge = m.theme.Styles().StatusStyle("completed").Render("DONE")
	}
	lines = append(lines, label("Status")+badge)

	if tags := formatTags(item.Tags); tags != "" {
		lines = append(lines, label("Tags")+bg.text(truncate(tags, width-10), styles.AccentText))
	}
	if created := item.ParsedCreatedAt(); !created.IsZero() {
		lines = append(lines, label("Created")+bg.text(created.Local().Format("2006-01-02 15:04"), styles.Text))
	}
	if updated := item.ParsedUpdatedAt(); !updated.IsZero() {
		lines = append(lines, label("Updated")+bg.text(updated.Local().Format("2006-01-02 15:04"), styles.Text))
	}
	if item.HasThumbnail() {
		ref := item.Thumbnail
		if m.client != nil {
			ref = m.client.ThumbnailURL(item.Thumbnail)
		}
		lines = append(lines, label("Thumbnail")+bg.text(truncateMiddle(ref, width-10), styles.InfoText))
	}
	if item.HasFile() {
		name := todoapi.FilenameFromPath(item.File)
		lines = append(lines,
			label("File")+bg.text(truncateMiddle(name, width-10), styles.InfoText),
			label("")+bg.text("D to download, y copies the text", styles.FaintText))
	}
	return strings.Join(lines, "\n")
}

// renderPagination renders the "Page p/N" bar below the list.
func (m Model) renderPagination() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := newCanvas(m.theme.Surface)

	page := maxInt(m.snapshot.Query.Page, 1)
	pages := m.snapshot.Pages()

	prev := bg.text("‹ [", styles.FaintText)
	if page > 1 {
		prev = bg.text("‹ [", styles.AccentText)
	}
	next := bg.text("] ›", styles.FaintText)
	if page < pages {
		next = bg.text("] ›", styles.AccentText)
	}

	label := bg.text(fmt.Sprintf("Page %d/%d", page, pages), styles.Text.Bold(true))
	bar := prev + bg.gap(1) + label + bg.gap(1) + next
	count := bg.text(fmt.Sprintf("%d on this page", len(m.snapshot.Items)), styles.MutedText)

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Width(m.width).
		Render(bar + bg.gap(2) + count)
}

// listTitle names the list box after the active filter.
func (m Model) listTitle() string {
	q := m.snapshot.Query
	if !q.Filtered() {
		return "To-dos"
	}
	var parts []string
	if q.Text != "" {
		parts = append(parts, fmt.Sprintf("%q", truncate(q.Text, 20)))
	}
	if q.Tag != "" {
		parts = append(parts, "#"+truncate(q.Tag, 16))
	}
	return "Search " + strings.Join(parts, " ")
}

// renderTitledBox renders content in a box with the title embedded in the top border.
// Style: ┌─── Title ───┐
// When focused is true, uses BorderFocus color and FocusBg background.
func (m Model) renderTitledBox(title, content string, width, height int, focused bool) string {
	var borderColorStr, bgColorStr string
	if focused {
		borderColorStr = m.theme.BorderFocus
		bgColorStr = m.theme.FocusBg
	} else {
		borderColorStr = m.theme.Border
		bgColorStr = m.theme.SurfaceAlt
	}
	bg := newCanvas(bgColorStr)
	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(borderColorStr))
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.Text))

	innerWidth := maxInt(width-2, 0)
	title = truncate(title, maxInt(innerWidth-4, 0))
	titleLen := lipgloss.Width(title)
	leftPad := maxInt((innerWidth-titleLen-2)/2, 0)
	rightPad := maxInt(innerWidth-titleLen-2-leftPad, 0)

	topBorder := bg.text("┌", borderStyle) +
		bg.text(strings.Repeat("─", leftPad), borderStyle) +
		bg.text(" "+title+" ", titleStyle) +
		bg.text(strings.Repeat("─", rightPad), borderStyle) +
		bg.text("┐", borderStyle)

	bottomBorder := bg.text("└", borderStyle) +
		bg.text(strings.Repeat("─", innerWidth), borderStyle) +
		bg.text("┘", borderStyle)

	contentStyle := lipgloss.NewStyle().Width(innerWidth).Background(lipgloss.Color(bgColorStr))

	contentLines := strings.Split(content, "\n")
	boxHeight := maxInt(height-2, 0)

	paddedLines := make([]string, 0, boxHeight)
	for i := 0; i < boxHeight; i++ {
		var line string
		if i < len(contentLines) {
			line = contentLines[i]
		}
		paddedLines = append(paddedLines,
			bg.text("│", borderStyle)+
				contentStyle.Render(line)+
				bg.text("│", borderStyle))
	}

	return topBorder + "\n" + strings.Join(paddedLines, "\n") + "\n" + bottomBorder
}

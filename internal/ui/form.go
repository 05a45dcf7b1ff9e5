package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/todopad/todopad/internal/attach"
	"github.com/todopad/todopad/internal/todoapi"
)

// Form fields in focus order.
const (
	fieldText = iota
	fieldTags
	fieldThumbnail
	fieldFile
	fieldCount
)

var fieldLabels = [fieldCount]string{"Text", "Tags", "Thumbnail", "File"}

// formState holds the add/edit form.
type formState struct {
	inputs   [fieldCount]textinput.Model
	focus    int
	editing  bool
	existing todoapi.Draft

	// preview lines for the thumbnail and file fields
	thumbPreview string
	thumbErr     bool
	filePreview  string
	fileErr      bool
}

func newFormState(theme Theme, draft todoapi.Draft, editing bool) formState {
	styles := theme.Styles()
	placeholders := [fieldCount]string{
		"What needs doing?",
		"comma,separated,tags",
		"path to an image (optional)",
		"path to a document (optional)",
	}
	values := [fieldCount]string{draft.Text, draft.Tags, draft.Thumbnail, draft.File}

	f := formState{editing: editing, existing: draft}
	for i := range f.inputs {
		ti := textinput.New()
		ti.Prompt = "› "
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 512
		ti.PromptStyle = styles.AccentText
		ti.TextStyle = styles.Text
		ti.PlaceholderStyle = styles.FaintText
		ti.SetValue(values[i])
		f.inputs[i] = ti
	}
	f.inputs[fieldText].CharLimit = 1000
	f.refreshPreviews()
	return f
}

// draft collects the typed values. Existing attachment references come from
// the controller's pending edit.
func (f formState) draft() todoapi.Draft {
	return todoapi.Draft{
		Text:      strings.TrimSpace(f.inputs[fieldText].Value()),
		Tags:      strings.TrimSpace(f.inputs[fieldTags].Value()),
		Thumbnail: strings.TrimSpace(f.inputs[fieldThumbnail].Value()),
		File:      strings.TrimSpace(f.inputs[fieldFile].Value()),
	}
}

func (f *formState) setFocus(i int) tea.Cmd {
	f.focus = (i + fieldCount) % fieldCount
	for j := range f.inputs {
		if j != f.focus {
			f.inputs[j].Blur()
		}
	}
	return f.inputs[f.focus].Focus()
}

// refreshPreviews validates the attachment paths as they are typed.
func (f *formState) refreshPreviews() {
	f.thumbPreview, f.thumbErr = previewLine(f.inputs[fieldThumbnail].Value(), attach.ValidateThumbnail)
	f.filePreview, f.fileErr = previewLine(f.inputs[fieldFile].Value(), attach.ValidateFile)
}

func previewLine(path string, validate func(string) (attach.Preview, error)) (string, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", false
	}
	p, err := validate(path)
	if err != nil {
		return attach.Notice(err), true
	}
	return p.String(), false
}

// openForm switches to the form, prefilled from draft.
func (m *Model) openForm(draft todoapi.Draft, editing bool) tea.Cmd {
	m.form = newFormState(m.theme, draft, editing)
	m.view = ViewForm
	return m.form.setFocus(fieldText)
}

// handleFormKey processes keyboard input for the add/edit form.
func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.list.CancelEdit()
		m.form = formState{}
		m.view = ViewList
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		cmd := m.submitForm()
		return m, cmd

	case key.Matches(msg, m.keys.Confirm):
		if m.form.focus == fieldCount-1 {
			cmd := m.submitForm()
			return m, cmd
		}
		cmd := m.form.setFocus(m.form.focus + 1)
		return m, cmd

	case key.Matches(msg, m.keys.NextField):
		cmd := m.form.setFocus(m.form.focus + 1)
		return m, cmd

	case key.Matches(msg, m.keys.PrevField):
		cmd := m.form.setFocus(m.form.focus - 1)
		return m, cmd
	}

	var cmd tea.Cmd
	m.form.inputs[m.form.focus], cmd = m.form.inputs[m.form.focus].Update(msg)
	if m.form.focus == fieldThumbnail || m.form.focus == fieldFile {
		m.form.refreshPreviews()
	}
	return m, cmd
}

// submitForm validates locally and sends the draft.
func (m *Model) submitForm() tea.Cmd {
	draft := m.form.draft()
	if m.form.thumbErr {
		m.modal = newErrorNotice("Invalid attachment", m.form.thumbPreview)
		return nil
	}
	if m.form.fileErr {
		m.modal = newErrorNotice("Invalid attachment", m.form.filePreview)
		return nil
	}
	list, editing := m.list, m.form.editing
	return m.runAction(actionSubmit, func(ctx context.Context) (string, error) {
		if err := list.Submit(ctx, draft); err != nil {
			return "", err
		}
		if editing {
			return "Item updated", nil
		}
		return "Item added", nil
	})
}

// renderForm renders the add/edit form.
func (m Model) renderForm() string {
	styles := m.theme.Styles()
	f := m.form

	title := "Add item"
	if f.editing {
		title = "Update item"
	}

	width := minInt(maxInt(m.width-4, 30), 80)
	inputWidth := width - 16

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render(title))
	b.WriteString("\n\n")

	for i := range f.inputs {
		label := styles.MutedText.Width(12).Render(fieldLabels[i])
		if i == f.focus {
			label = styles.Text.Bold(true).Width(12).Render(fieldLabels[i])
		}
		in := f.inputs[i]
		in.Width = inputWidth
		b.WriteString(label)
		b.WriteString(in.View())
		b.WriteString("\n")

		switch i {
		case fieldThumbnail:
			b.WriteString(m.renderAttachmentHint(f.thumbPreview, f.thumbErr, f.existing.ExistingThumbnail))
		case fieldFile:
			b.WriteString(m.renderAttachmentHint(f.filePreview, f.fileErr, f.existing.ExistingFile))
		}
	}

	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("Tags are separated by commas. Leave a path empty to keep the current attachment."))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.BorderFocus)).
		Padding(1, 2).
		Width(width).
		Render(b.String())

	return lipgloss.Place(m.width, maxInt(m.height-2, 0), lipgloss.Center, lipgloss.Center, box)
}

// renderAttachmentHint shows the preview or validation error for a path
// field, or the attachment the item already has.
func (m Model) renderAttachmentHint(preview string, isErr bool, existing string) string {
	styles := m.theme.Styles()
	indent := strings.Repeat(" ", 12)
	switch {
	case preview != "" && isErr:
		return indent + styles.DangerText.Render(preview) + "\n"
	case preview != "":
		return indent + styles.SuccessText.Render(preview) + "\n"
	case existing != "":
		return indent + styles.FaintText.Render("current: "+todoapi.FilenameFromPath(existing)) + "\n"
	default:
		return ""
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/todopad/todopad/internal/todoapi"
)

// loginState holds the sign-in form.
type loginState struct {
	email    textinput.Model
	password textinput.Model
	onEmail  bool
	pending  bool
	err      string
}

func newLoginState(theme Theme) loginState {
	email := textinput.New()
	email.Prompt = "› "
	email.Placeholder = "you@example.com"
	email.CharLimit = 254

	password := textinput.New()
	password.Prompt = "› "
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128

	l := loginState{email: email, password: password, onEmail: true}
	l.applyTheme(theme)
	return l
}

func (l *loginState) applyTheme(theme Theme) {
	styles := theme.Styles()
	for _, in := range []*textinput.Model{&l.email, &l.password} {
		in.PromptStyle = styles.AccentText
		in.TextStyle = styles.Text
		in.PlaceholderStyle = styles.FaintText
	}
}

func (l *loginState) focusEmail() tea.Cmd {
	l.onEmail = true
	l.password.Blur()
	return l.email.Focus()
}

func (l *loginState) focusPassword() tea.Cmd {
	l.onEmail = false
	l.email.Blur()
	return l.password.Focus()
}

// reset clears the password and any error, keeping the email for convenience.
func (l *loginState) reset() {
	l.password.SetValue("")
	l.pending = false
	l.err = ""
}

type loginMsg struct{ err error }

// handleLoginKey processes keyboard input for the login view.
func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.login.pending {
		return m, nil
	}

	switch {
	case msg.String() == "tab", msg.String() == "shift+tab",
		msg.String() == "up", msg.String() == "down":
		if m.login.onEmail {
			cmd := m.login.focusPassword()
			return m, cmd
		}
		cmd := m.login.focusEmail()
		return m, cmd

	case key.Matches(msg, m.keys.Confirm):
		if m.login.onEmail {
			cmd := m.login.focusPassword()
			return m, cmd
		}
		cmd := m.submitLogin()
		return m, cmd
	}

	var cmd tea.Cmd
	if m.login.onEmail {
		m.login.email, cmd = m.login.email.Update(msg)
	} else {
		m.login.password, cmd = m.login.password.Update(msg)
	}
	m.login.err = ""
	return m, cmd
}

// submitLogin posts the credentials.
func (m *Model) submitLogin() tea.Cmd {
	email := strings.TrimSpace(m.login.email.Value())
	password := m.login.password.Value()
	if email == "" || password == "" {
		m.login.err = "Enter your email and password"
		return nil
	}
	if m.client == nil {
		m.login.err = "No backend configured"
		return nil
	}

	m.login.pending = true
	client, parent := m.client, m.ctx
	return tea.Batch(m.startBusy(), func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, ActionTimeout)
		defer cancel()
		return loginMsg{err: client.Login(ctx, email, password)}
	})
}

// handleLoginResult returns to the list after a successful login.
func (m Model) handleLoginResult(msg loginMsg) (tea.Model, tea.Cmd) {
	m.stopBusy()
	m.login.pending = false

	if msg.err != nil {
		m.logger.WithError(msg.err).Warn("login failed")
		m.login.err = loginError(msg.err)
		m.login.password.SetValue("")
		cmd := m.login.focusPassword()
		return m, cmd
	}

	m.login.reset()
	m.login.email.Blur()
	m.login.password.Blur()
	m.view = ViewList
	m.refreshTokenExpiry()
	if m.onLogin != nil {
		m.onLogin()
	}
	m.setFlash("Signed in", false)

	list := m.list
	cmd := m.runAction(actionRefresh, func(ctx context.Context) (string, error) {
		return "", list.Refresh(ctx)
	})
	return m, cmd
}

func loginError(err error) string {
	var statusErr *todoapi.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Message != "" {
			return statusErr.Message
		}
		return fmt.Sprintf("Sign in failed (HTTP %d)", statusErr.Status)
	}
	return "Sign in failed: " + err.Error()
}

// renderLogin renders the sign-in form.
func (m Model) renderLogin() string {
	styles := m.theme.Styles()
	width := minInt(maxInt(m.width-4, 30), 56)

	email := m.login.email
	email.Width = width - 18
	password := m.login.password
	password.Width = width - 18

	label := func(name string, focused bool) string {
		if focused {
			return styles.Text.Bold(true).Width(10).Render(name)
		}
		return styles.MutedText.Width(10).Render(name)
	}

	var b strings.Builder
	b.WriteString(styles.Logo.Render("todopad"))
	b.WriteString(styles.MutedText.Render("  sign in"))
	b.WriteString("\n\n")
	b.WriteString(label("Email", m.login.onEmail) + email.View())
	b.WriteString("\n")
	b.WriteString(label("Password", !m.login.onEmail) + password.View())
	b.WriteString("\n\n")

	switch {
	case m.login.pending:
		b.WriteString(styles.InfoText.Render(m.spinner.View() + " Signing in..."))
	case m.login.err != "":
		b.WriteString(styles.DangerText.Render(m.login.err))
	default:
		b.WriteString(styles.FaintText.Render("enter to continue"))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.BorderFocus)).
		Padding(1, 2).
		Width(width).
		Render(b.String())

	return lipgloss.Place(m.width, maxInt(m.height-2, 0), lipgloss.Center, lipgloss.Center, box)
}

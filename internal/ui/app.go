package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"

	"github.com/todopad/todopad/internal/attach"
	"github.com/todopad/todopad/internal/config"
	"github.com/todopad/todopad/internal/prefs"
	"github.com/todopad/todopad/internal/session"
	"github.com/todopad/todopad/internal/todoapi"
	"github.com/todopad/todopad/internal/todolist"
	"github.com/todopad/todopad/internal/tokenstore"
)

// View represents the current active view.
type View int

const (
	ViewList View = iota
	ViewForm
	ViewFilters
	ViewLogin
	ViewLog
)

// Options configures the UI.
type Options struct {
	Context   context.Context
	List      *todolist.Controller
	Client    *todoapi.Client
	Session   *session.State
	Config    *config.Config
	Prefs     prefs.Prefs
	PrefsPath string
	PollTick  time.Duration
	Logger    log.FieldLogger

	// Touch reports user activity to the idle keeper.
	Touch func(session.Activity)
	// OnLogin runs after a successful login, before the list reloads.
	OnLogin func()
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	list      *todolist.Controller
	client    *todoapi.Client
	session   *session.State
	config    *config.Config
	prefs     prefs.Prefs
	prefsPath string
	pollTick  time.Duration
	logger    log.FieldLogger
	touch     func(session.Activity)
	onLogin   func()

	// UI state
	keys   keyMap
	theme  Theme
	view   View
	width  int
	height int
	ready  bool
	now    time.Time

	// Data state
	snapshot    todolist.Snapshot
	selected    int
	tokenExpiry *time.Time

	// Sub-views
	form    formState
	filters filterState
	login   loginState
	logPane logState

	// Background work indicator
	spinner spinner.Model
	busy    int

	// Transient status line
	flash    string
	flashErr bool
	flashAt  time.Time

	// Overlays
	showHelp bool
	modal    Modal
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = DefaultUIInterval
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	theme := GetTheme(opts.Prefs.Theme)
	m := Model{
		ctx:       ctx,
		list:      opts.List,
		client:    opts.Client,
		session:   opts.Session,
		config:    opts.Config,
		prefs:     opts.Prefs,
		prefsPath: prefsPath,
		pollTick:  pollTick,
		logger:    logger.WithField("component", "ui"),
		touch:     opts.Touch,
		onLogin:   opts.OnLogin,
		keys:      DefaultKeyMap(),
		theme:     theme,
		view:      ViewList,
		now:       time.Now(),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		filters:   newFilterState(theme),
		login:     newLoginState(theme),
		logPane:   newLogState(),
	}
	if m.list != nil {
		m.snapshot = m.list.Snapshot()
	}
	if m.loggedOut() {
		m.view = ViewLogin
		m.login.focusEmail()
	}
	m.refreshTokenExpiry()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnterAltScreen,
		tickCmd(m.pollTick),
	}
	if m.list != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.list))
	}
	if m.session != nil {
		cmds = append(cmds, waitForNotice(m.session.Notices()))
	}
	if m.view == ViewLogin {
		cmds = append(cmds, m.login.email.Focus())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.recordActivity(session.KeyPress)
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resizeLogViewport()
		return m, nil

	case tickMsg:
		return m.handleTick(time.Time(msg))

	case snapshotMsg:
		m.applySnapshot(todolist.Snapshot(msg))
		return m, nil

	case actionMsg:
		return m.handleAction(msg)

	case deleteConfirmedMsg:
		cmd := m.removeItem(msg.id, msg.text)
		return m, cmd

	case loginMsg:
		return m.handleLoginResult(msg)

	case noticeMsg:
		return m.handleNotice(session.Notice(msg))

	case clipboardMsg:
		m.handleClipboard(msg)
		return m, nil

	case logLinesMsg:
		m.handleLogLines(msg)
		return m, nil

	case spinner.TickMsg:
		if m.busy == 0 {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}

	if m.showHelp {
		return m.renderHelp()
	}

	return m.renderMain()
}

// handleKey routes keyboard input to overlays first, then the active view.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.modal != nil {
		modal, cmd, done := m.modal.Update(msg, m.keys)
		if done {
			m.modal = nil
		} else {
			m.modal = modal
		}
		return m, cmd
	}

	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	switch m.view {
	case ViewForm:
		return m.handleFormKey(msg)
	case ViewFilters:
		return m.handleFiltersKey(msg)
	case ViewLogin:
		return m.handleLoginKey(msg)
	case ViewLog:
		return m.handleLogKey(msg)
	}
	return m.handleListKey(msg)
}

// handleListKey processes keyboard input for the list view.
func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.cycleTheme()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.snapshot.Items)-1 {
			m.selected++
		}
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.selected = 0
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.selected = maxInt(len(m.snapshot.Items)-1, 0)
		return m, nil

	case key.Matches(msg, m.keys.PrevPage):
		if m.snapshot.Query.Page <= 1 {
			return m, nil
		}
		cmd := m.runAction(actionPage, func(ctx context.Context) (string, error) {
			return "", m.list.PrevPage(ctx)
		})
		return m, cmd

	case key.Matches(msg, m.keys.NextPage):
		if m.snapshot.Query.Page >= m.snapshot.Pages() {
			return m, nil
		}
		cmd := m.runAction(actionPage, func(ctx context.Context) (string, error) {
			return "", m.list.NextPage(ctx)
		})
		return m, cmd

	case key.Matches(msg, m.keys.Refresh):
		cmd := m.runAction(actionRefresh, func(ctx context.Context) (string, error) {
			return "", m.list.Refresh(ctx)
		})
		return m, cmd

	case key.Matches(msg, m.keys.Add):
		m.list.CancelEdit()
		cmd := m.openForm(todoapi.Draft{}, false)
		return m, cmd

	case key.Matches(msg, m.keys.Edit):
		item, ok := m.selectedItem()
		if !ok {
			return m, nil
		}
		draft, err := m.list.Edit(item.ID)
		if err != nil {
			m.setFlash(err.Error(), true)
			return m, nil
		}
		cmd := m.openForm(draft, true)
		return m, cmd

	case key.Matches(msg, m.keys.Delete):
		item, ok := m.selectedItem()
		if !ok {
			return m, nil
		}
		if m.prefs.ConfirmDelete {
			id, text := item.ID, item.Text
			m.modal = newConfirm("Delete item?", truncate(text, 120), func() tea.Msg {
				return deleteConfirmedMsg{id: id, text: text}
			})
			return m, nil
		}
		cmd := m.removeItem(item.ID, item.Text)
		return m, cmd

	case key.Matches(msg, m.keys.Toggle):
		item, ok := m.selectedItem()
		if !ok {
			return m, nil
		}
		cmd := m.runAction(actionToggle, func(ctx context.Context) (string, error) {
			return "", m.list.Toggle(ctx, item.ID)
		})
		return m, cmd

	case key.Matches(msg, m.keys.Download):
		item, ok := m.selectedItem()
		if !ok {
			return m, nil
		}
		if !item.HasFile() {
			m.setFlash("No attachment on this item", true)
			return m, nil
		}
		dir := m.downloadDir()
		cmd := m.runAction(actionDownload, func(ctx context.Context) (string, error) {
			path, err := m.list.Download(ctx, item, dir)
			if err != nil {
				return "", err
			}
			return "Saved " + truncateMiddle(path, 60), nil
		})
		return m, cmd

	case key.Matches(msg, m.keys.Copy):
		item, ok := m.selectedItem()
		if !ok {
			return m, nil
		}
		return m, copyCmd(item.Text)

	case key.Matches(msg, m.keys.Search):
		cmd := m.openFilters(filterFieldSearch)
		return m, cmd

	case key.Matches(msg, m.keys.TagFilter):
		cmd := m.openFilters(filterFieldTag)
		return m, cmd

	case key.Matches(msg, m.keys.ClearAll):
		if !m.snapshot.Query.Filtered() {
			return m, nil
		}
		m.filters.reset()
		cmd := m.runAction(actionFilter, func(ctx context.Context) (string, error) {
			if err := m.list.SetQuery(ctx, ""); err != nil {
				return "", err
			}
			return "", m.list.SetTag(ctx, "")
		})
		return m, cmd

	case key.Matches(msg, m.keys.ViewLog):
		m.view = ViewLog
		return m, m.loadLogCmd()

	case key.Matches(msg, m.keys.Logout):
		if m.session != nil {
			m.session.Logout()
		}
		return m, nil
	}

	return m, nil
}

// handleMouse reports wheel and click activity and moves the selection.
func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress {
		return m, nil
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp, tea.MouseButtonWheelDown:
		m.recordActivity(session.Scroll)
		up := msg.Button == tea.MouseButtonWheelUp
		switch m.view {
		case ViewLog:
			if up {
				m.logPane.viewport.ScrollUp(3)
			} else {
				m.logPane.viewport.ScrollDown(3)
			}
		case ViewList:
			if up && m.selected > 0 {
				m.selected--
			} else if !up && m.selected < len(m.snapshot.Items)-1 {
				m.selected++
			}
		}

	case tea.MouseButtonLeft:
		m.recordActivity(session.Click)
		if m.view == ViewList && m.modal == nil && !m.showHelp {
			if row, ok := m.rowAt(msg.X, msg.Y); ok {
				m.selected = row
			}
		}
	}
	return m, nil
}

// handleTick re-reads shared state and schedules the next tick.
func (m Model) handleTick(now time.Time) (tea.Model, tea.Cmd) {
	m.now = now
	m.refreshTokenExpiry()
	if m.flash != "" && now.Sub(m.flashAt) > FlashDuration {
		m.flash = ""
	}

	cmds := []tea.Cmd{tickCmd(m.pollTick)}
	if m.list != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.list))
	}
	return m, tea.Batch(cmds...)
}

// handleAction applies the outcome of a backend call.
func (m Model) handleAction(msg actionMsg) (tea.Model, tea.Cmd) {
	m.stopBusy()
	if m.list != nil {
		m.applySnapshot(m.list.Snapshot())
	}

	if msg.err == nil {
		if msg.info != "" {
			m.setFlash(msg.info, false)
		}
		if msg.action == actionSubmit {
			m.form = formState{}
			m.view = ViewList
		}
		return m, nil
	}

	m.logger.WithError(msg.err).WithField("action", msg.action).Debug("action failed")

	switch {
	case errors.Is(msg.err, todoapi.ErrSessionExpired):
		// The session notice moves the UI to the login view.
	case errors.Is(msg.err, attach.ErrNotImage), errors.Is(msg.err, attach.ErrNotDocument):
		m.modal = newErrorNotice("Invalid attachment", attach.Notice(msg.err))
	case errors.Is(msg.err, todolist.ErrEmptyDraft):
		m.modal = newNotice("Nothing to save", "Enter a text, some tags or an attachment first.")
	case msg.action == actionSubmit:
		m.modal = newErrorNotice("Could not save", describeError(msg.err))
	default:
		m.setFlash(msg.action+" failed: "+describeError(msg.err), true)
	}
	return m, nil
}

// handleNotice switches to the login view when the session ends.
func (m Model) handleNotice(n session.Notice) (tea.Model, tea.Cmd) {
	m.logger.WithFields(log.Fields{"reason": n.Reason.String()}).Info("session ended")

	if m.list != nil {
		m.list.CancelEdit()
	}
	m.form = formState{}
	m.showHelp = false
	m.view = ViewLogin
	m.login.reset()
	m.tokenExpiry = nil

	if n.Reason == session.ReasonServer {
		m.modal = newErrorNotice("Session expired", n.Message)
	} else {
		m.modal = newNotice("Signed out", n.Message)
	}

	cmds := []tea.Cmd{m.login.focusEmail()}
	if m.session != nil {
		cmds = append(cmds, waitForNotice(m.session.Notices()))
	}
	return m, tea.Batch(cmds...)
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder

	// Header line 1: logo + status
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	// Header line 2: command bar
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")

	// Main content
	b.WriteString(m.renderContent())

	return b.String()
}

// renderContent renders the main content area based on current view.
func (m Model) renderContent() string {
	switch m.view {
	case ViewForm:
		return m.renderForm()
	case ViewFilters:
		return m.renderFilters()
	case ViewLogin:
		return m.renderLogin()
	case ViewLog:
		return m.renderLog()
	default:
		return m.renderList()
	}
}

func (m *Model) applySnapshot(snap todolist.Snapshot) {
	var selectedID string
	if item, ok := m.selectedItem(); ok {
		selectedID = item.ID
	}
	m.snapshot = snap
	m.syncSelection(selectedID)
}

func (m *Model) cycleTheme() {
	m.theme = GetTheme(NextTheme(m.theme.Name))
	m.filters.applyTheme(m.theme)
	m.login.applyTheme(m.theme)
	m.prefs.Theme = m.theme.Name
	if m.prefsPath != "" {
		if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
			m.logger.WithError(err).Warn("save preferences")
		}
	}
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = text
	m.flashErr = isErr
	m.flashAt = m.now
}

func (m *Model) recordActivity(a session.Activity) {
	if m.touch == nil || m.loggedOut() {
		return
	}
	m.touch(a)
}

func (m Model) loggedOut() bool {
	return m.session != nil && m.session.Expired()
}

func (m *Model) refreshTokenExpiry() {
	if m.session == nil {
		return
	}
	m.tokenExpiry = tokenstore.ExpiresAt(m.session.Token())
}

func (m Model) downloadDir() string {
	if m.config != nil && m.config.DownloadDir != "" {
		return m.config.DownloadDir
	}
	return config.Default().DownloadDir
}

// startBusy counts one more request in flight and starts the spinner when
// it was idle.
func (m *Model) startBusy() tea.Cmd {
	m.busy++
	if m.busy == 1 {
		return m.spinner.Tick
	}
	return nil
}

func (m *Model) stopBusy() {
	if m.busy > 0 {
		m.busy--
	}
}

// runAction runs fn against the backend off the UI loop.
func (m *Model) runAction(action string, fn func(ctx context.Context) (string, error)) tea.Cmd {
	parent := m.ctx
	return tea.Batch(m.startBusy(), func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, ActionTimeout)
		defer cancel()
		info, err := fn(ctx)
		return actionMsg{action: action, info: info, err: err}
	})
}

func (m *Model) removeItem(id, text string) tea.Cmd {
	return m.runAction(actionDelete, func(ctx context.Context) (string, error) {
		if err := m.list.Remove(ctx, id); err != nil {
			return "", err
		}
		return "Deleted " + truncate(text, 40), nil
	})
}

// describeError prefers the backend's own message for HTTP failures.
func describeError(err error) string {
	var statusErr *todoapi.StatusError
	if errors.As(err, &statusErr) && statusErr.Message != "" {
		return statusErr.Message
	}
	return err.Error()
}

// Actions reported in actionMsg.
const (
	actionRefresh  = "refresh"
	actionPage     = "page"
	actionFilter   = "filter"
	actionSubmit   = "save"
	actionDelete   = "delete"
	actionToggle   = "toggle"
	actionDownload = "download"
)

// Messages

type tickMsg time.Time

type snapshotMsg todolist.Snapshot

type actionMsg struct {
	action string
	info   string
	err    error
}

type deleteConfirmedMsg struct {
	id   string
	text string
}

type noticeMsg session.Notice

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(list *todolist.Controller) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(list.Snapshot())
	}
}

// waitForNotice blocks until the session publishes a notice.
func waitForNotice(ch <-chan session.Notice) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return noticeMsg(n)
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(m.ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}

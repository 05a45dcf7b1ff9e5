package ui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/todopad/todopad/internal/config"
	"github.com/todopad/todopad/internal/logging"
	"github.com/todopad/todopad/internal/prefs"
	"github.com/todopad/todopad/internal/session"
	"github.com/todopad/todopad/internal/todoapi"
	"github.com/todopad/todopad/internal/todoapi/todoapitest"
	"github.com/todopad/todopad/internal/todolist"
	"github.com/todopad/todopad/internal/tokenstore"
)

type harness struct {
	srv       *todoapitest.Server
	state     *session.State
	list      *todolist.Controller
	activity  []session.Activity
	logins    int
	prefsPath string
	logFile   string
}

// newHarness wires a model to the fake backend. With signedIn false the
// token store starts empty.
func newHarness(t *testing.T, signedIn bool) (*harness, Model) {
	t.Helper()
	h := &harness{srv: todoapitest.New(t)}

	store := &tokenstore.Store{}
	if signedIn {
		if err := store.Save(h.srv.IssueToken()); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	h.state = session.NewState(store, logging.Discard())

	client, err := todoapi.NewClient(h.srv.URL, h.state, todoapi.Options{Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	h.list = todolist.New(client, logging.Discard())

	dir := t.TempDir()
	h.prefsPath = filepath.Join(dir, "prefs.toml")
	h.logFile = filepath.Join(dir, "todopad.log")
	cfg := config.Default()
	cfg.LogFile = h.logFile
	cfg.DownloadDir = filepath.Join(dir, "downloads")

	m := New(Options{
		Context:   context.Background(),
		List:      h.list,
		Client:    client,
		Session:   h.state,
		Config:    &cfg,
		Prefs:     prefs.Defaults(),
		PrefsPath: h.prefsPath,
		Logger:    logging.Discard(),
		Touch:     func(a session.Activity) { h.activity = append(h.activity, a) },
		OnLogin:   func() { h.logins++ },
	})
	m = step(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
	return h, m
}

// load fetches the first page and hands the snapshot to the model.
func (h *harness) load(t *testing.T, m Model) Model {
	t.Helper()
	if err := h.list.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	return step(t, m, snapshotMsg(h.list.Snapshot()))
}

func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

// press sends a key and returns the model with the command it produced.
func press(t *testing.T, m Model, k string) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(keyMsg(k))
	return next.(Model), cmd
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	for _, r := range text {
		m, _ = press(t, m, string(r))
	}
	return m
}

// settle runs cmd and feeds back the results of backend work, returning the
// final model. Timers and cursor blinks are never part of the commands it
// is given.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for _, msg := range run(cmd) {
		switch msg.(type) {
		case actionMsg, loginMsg, clipboardMsg, deleteConfirmedMsg, logLinesMsg:
			var next tea.Cmd
			m, next = stepCmd(m, msg)
			m = settle(t, m, next)
		}
	}
	return m
}

func stepCmd(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, run(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func TestNew_StartsAtLoginWithoutToken(t *testing.T) {
	_, m := newHarness(t, false)
	if m.view != ViewLogin {
		t.Fatalf("view = %v, want login", m.view)
	}
	if !m.login.email.Focused() {
		t.Fatalf("email input should have focus")
	}
}

func TestActivity_KeysWheelAndClicksReachKeeper(t *testing.T) {
	h, m := newHarness(t, true)

	m, _ = press(t, m, "j")
	m = step(t, m, tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonWheelDown})
	m = step(t, m, tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonLeft, X: 5, Y: 5})
	m = step(t, m, tea.MouseMsg{Action: tea.MouseActionMotion, Button: tea.MouseButtonNone, X: 6, Y: 6})
	_ = step(t, m, tea.MouseMsg{Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft})

	want := []session.Activity{session.KeyPress, session.Scroll, session.Click}
	if len(h.activity) != len(want) {
		t.Fatalf("activity = %v, want %v", h.activity, want)
	}
	for i := range want {
		if h.activity[i] != want[i] {
			t.Fatalf("activity[%d] = %v, want %v", i, h.activity[i], want[i])
		}
	}
}

func TestActivity_IgnoredWhileSignedOut(t *testing.T) {
	h, m := newHarness(t, false)
	_, _ = press(t, m, "x")
	if len(h.activity) != 0 {
		t.Fatalf("activity while signed out = %v, want none", h.activity)
	}
}

func TestClickSelectsRow(t *testing.T) {
	h, m := newHarness(t, true)
	h.srv.Seed(todoapi.Item{Text: "one"}, todoapi.Item{Text: "two"}, todoapi.Item{Text: "three"})
	m = h.load(t, m)

	m = step(t, m, tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonLeft, X: 4, Y: listTop + 2})
	if m.selected != 2 {
		t.Fatalf("selected = %d, want 2", m.selected)
	}
	m = step(t, m, tea.MouseMsg{Action: tea.MouseActionPress, Button: tea.MouseButtonWheelUp})
	if m.selected != 1 {
		t.Fatalf("selected after wheel up = %d, want 1", m.selected)
	}
}

func TestToggleKey_FlipsCompletion(t *testing.T) {
	h, m := newHarness(t, true)
	seeded := h.srv.Seed(todoapi.Item{Text: "water plants"})
	m = h.load(t, m)

	m, cmd := press(t, m, " ")
	if m.busy != 1 {
		t.Fatalf("busy = %d, want 1 while the request runs", m.busy)
	}
	m = settle(t, m, cmd)

	if m.busy != 0 {
		t.Fatalf("busy = %d after completion, want 0", m.busy)
	}
	if len(m.snapshot.Items) != 1 || !m.snapshot.Items[0].Completed {
		t.Fatalf("snapshot items = %#v, want completed", m.snapshot.Items)
	}
	if got := h.srv.Items()[0]; got.ID != seeded[0].ID || !got.Completed {
		t.Fatalf("backend item = %#v, want completed", got)
	}
}

func TestAddForm_SubmitCreatesItem(t *testing.T) {
	h, m := newHarness(t, true)
	m = h.load(t, m)

	m, _ = press(t, m, "a")
	if m.view != ViewForm || m.form.editing {
		t.Fatalf("view = %v editing = %v, want add form", m.view, m.form.editing)
	}
	m = typeText(t, m, "buy milk")
	m, _ = press(t, m, "tab")
	m = typeText(t, m, "home, errands")

	m, cmd := press(t, m, "ctrl+s")
	m = settle(t, m, cmd)

	if m.view != ViewList {
		t.Fatalf("view after save = %v, want list", m.view)
	}
	items := h.srv.Items()
	if len(items) != 1 || items[0].Text != "buy milk" {
		t.Fatalf("backend items = %#v", items)
	}
	if strings.Join(items[0].Tags, "|") != "home|errands" {
		t.Fatalf("tags = %q, want home|errands", items[0].Tags)
	}
	if m.flash != "Item added" {
		t.Fatalf("flash = %q, want Item added", m.flash)
	}
}

func TestEditForm_PrefillsAndEscCancels(t *testing.T) {
	h, m := newHarness(t, true)
	h.srv.Seed(todoapi.Item{Text: "call mom", Tags: []string{"family", "weekly"}})
	m = h.load(t, m)

	m, _ = press(t, m, "e")
	if m.view != ViewForm || !m.form.editing {
		t.Fatalf("view = %v editing = %v, want update form", m.view, m.form.editing)
	}
	if got := m.form.inputs[fieldTags].Value(); got != "family,weekly" {
		t.Fatalf("tags input = %q, want family,weekly", got)
	}
	if _, editing := h.list.Editing(); !editing {
		t.Fatalf("controller should be in update mode")
	}

	m, _ = press(t, m, "esc")
	if m.view != ViewList {
		t.Fatalf("view = %v, want list", m.view)
	}
	if _, editing := h.list.Editing(); editing {
		t.Fatalf("esc should cancel the pending edit")
	}
}

func TestForm_RejectsNonImageThumbnail(t *testing.T) {
	h, m := newHarness(t, true)
	m = h.load(t, m)

	notImage := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(notImage, []byte("plain text, not pixels"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	m, _ = press(t, m, "a")
	m = typeText(t, m, "with picture")
	m, _ = press(t, m, "tab")
	m, _ = press(t, m, "tab")
	m = typeText(t, m, notImage)
	if !m.form.thumbErr {
		t.Fatalf("preview should flag the thumbnail, got %q", m.form.thumbPreview)
	}

	m, cmd := press(t, m, "ctrl+s")
	if cmd != nil {
		t.Fatalf("submit with invalid thumbnail should not start a request")
	}
	notice, ok := m.modal.(noticeModal)
	if !ok || notice.message != "Please select an image file" {
		t.Fatalf("modal = %#v, want image notice", m.modal)
	}
	if len(h.srv.RequestsTo("/api/todos/save")) != 0 {
		t.Fatalf("request sent for an invalid thumbnail")
	}

	// Enter dismisses the notice and keeps the form.
	m, _ = press(t, m, "enter")
	if m.modal != nil || m.view != ViewForm {
		t.Fatalf("modal = %v view = %v, want form without modal", m.modal, m.view)
	}
}

func TestNotice_SwitchesToLoginUntilDismissed(t *testing.T) {
	h, m := newHarness(t, true)
	m = h.load(t, m)
	m, _ = press(t, m, "a")

	if !h.state.Expire(session.ReasonServer, "Token expired") {
		t.Fatalf("Expire returned false")
	}
	n := <-h.state.Notices()
	m = step(t, m, noticeMsg(n))

	if m.view != ViewLogin {
		t.Fatalf("view = %v, want login", m.view)
	}
	if _, editing := h.list.Editing(); editing {
		t.Fatalf("pending edit should be dropped")
	}
	notice, ok := m.modal.(noticeModal)
	if !ok || notice.message != "Token expired" {
		t.Fatalf("modal = %#v, want session notice", m.modal)
	}
	if !strings.Contains(m.View(), "Token expired") {
		t.Fatalf("view should show the notice message")
	}

	// Other keys do not get past the modal.
	m, _ = press(t, m, "a")
	if m.modal == nil || m.login.email.Value() != "" {
		t.Fatalf("modal should swallow keys")
	}
	m, _ = press(t, m, "esc")
	if m.modal != nil {
		t.Fatalf("esc should dismiss the notice")
	}
}

func TestLogin_SuccessRestartsKeeperAndLoads(t *testing.T) {
	h, m := newHarness(t, false)
	h.srv.AddUser("ada@example.com", "s3cret")
	h.srv.Seed(todoapi.Item{Text: "first"})

	m = typeText(t, m, "ada@example.com")
	m, _ = press(t, m, "enter")
	m = typeText(t, m, "s3cret")
	m, cmd := press(t, m, "enter")
	if !m.login.pending {
		t.Fatalf("login should be pending")
	}
	m = settle(t, m, cmd)

	if h.state.Expired() {
		t.Fatalf("session should be active after login")
	}
	if h.logins != 1 {
		t.Fatalf("OnLogin calls = %d, want 1", h.logins)
	}
	if m.view != ViewList {
		t.Fatalf("view = %v, want list", m.view)
	}
	if len(m.snapshot.Items) != 1 || m.snapshot.Items[0].Text != "first" {
		t.Fatalf("snapshot = %#v, want the seeded item", m.snapshot.Items)
	}
}

func TestLogin_FailureShowsBackendMessage(t *testing.T) {
	h, m := newHarness(t, false)
	h.srv.AddUser("ada@example.com", "s3cret")

	m = typeText(t, m, "ada@example.com")
	m, _ = press(t, m, "enter")
	m = typeText(t, m, "wrong")
	m, cmd := press(t, m, "enter")
	m = settle(t, m, cmd)

	if m.view != ViewLogin {
		t.Fatalf("view = %v, want login", m.view)
	}
	if m.login.err != "Invalid credentials" {
		t.Fatalf("login error = %q, want Invalid credentials", m.login.err)
	}
	if m.login.password.Value() != "" {
		t.Fatalf("password should be cleared after a failure")
	}
	if h.logins != 0 {
		t.Fatalf("OnLogin called on failure")
	}
}

func TestLogin_RequiresBothFields(t *testing.T) {
	_, m := newHarness(t, false)
	m, _ = press(t, m, "enter")
	m, cmd := press(t, m, "enter")
	if cmd != nil || m.login.err == "" {
		t.Fatalf("empty credentials should be rejected locally, err = %q", m.login.err)
	}
}

func TestDelete_AsksForConfirmation(t *testing.T) {
	h, m := newHarness(t, true)
	h.srv.Seed(todoapi.Item{Text: "keep"}, todoapi.Item{Text: "drop"})
	m = h.load(t, m)

	// Newest first: "drop" is selected.
	m, _ = press(t, m, "d")
	if _, ok := m.modal.(confirmModal); !ok {
		t.Fatalf("modal = %#v, want confirmation", m.modal)
	}

	m, cmd := press(t, m, "y")
	if m.modal != nil {
		t.Fatalf("confirm should close the modal")
	}
	m = settle(t, m, cmd)

	items := h.srv.Items()
	if len(items) != 1 || items[0].Text != "keep" {
		t.Fatalf("backend items = %#v, want only keep", items)
	}
	if len(m.snapshot.Items) != 1 {
		t.Fatalf("snapshot has %d items, want 1", len(m.snapshot.Items))
	}
}

func TestDelete_CancelKeepsItem(t *testing.T) {
	h, m := newHarness(t, true)
	h.srv.Seed(todoapi.Item{Text: "keep"})
	m = h.load(t, m)

	m, _ = press(t, m, "d")
	m, cmd := press(t, m, "n")
	if m.modal != nil || cmd != nil {
		t.Fatalf("cancel should close the modal without a command")
	}
	if len(h.srv.Items()) != 1 {
		t.Fatalf("item deleted despite cancel")
	}
}

func TestPageKeys_MoveBetweenPages(t *testing.T) {
	h, m := newHarness(t, true)
	h.srv.SetPageSize(2)
	h.srv.Seed(todoapi.Item{Text: "a"}, todoapi.Item{Text: "b"}, todoapi.Item{Text: "c"})
	m = h.load(t, m)

	if m.snapshot.Pages() != 2 {
		t.Fatalf("pages = %d, want 2", m.snapshot.Pages())
	}
	m, cmd := press(t, m, "]")
	m = settle(t, m, cmd)
	if m.snapshot.Query.Page != 2 || len(m.snapshot.Items) != 1 {
		t.Fatalf("after ] page = %d items = %d, want page 2 with 1 item", m.snapshot.Query.Page, len(m.snapshot.Items))
	}
	if !strings.Contains(m.View(), "Page 2/2") {
		t.Fatalf("pagination bar missing from view")
	}

	// Already on the last page: no request.
	if _, cmd := press(t, m, "l"); cmd != nil {
		t.Fatalf("next page past the end should be a no-op")
	}

	m, cmd = press(t, m, "[")
	m = settle(t, m, cmd)
	if m.snapshot.Query.Page != 1 {
		t.Fatalf("after [ page = %d, want 1", m.snapshot.Query.Page)
	}
}

func TestFilters_TypingSearchesFromFirstPage(t *testing.T) {
	h, m := newHarness(t, true)
	h.srv.Seed(todoapi.Item{Text: "milk"}, todoapi.Item{Text: "bread"})
	m = h.load(t, m)

	m, _ = press(t, m, "/")
	if m.view != ViewFilters {
		t.Fatalf("view = %v, want filters", m.view)
	}
	m, cmd := press(t, m, "m")
	m = settle(t, m, cmd)

	reqs := h.srv.RequestsTo("/api/todos/search")
	if len(reqs) == 0 {
		t.Fatalf("typing did not search")
	}
	if got := reqs[len(reqs)-1].RawQuery; got != "query=m&tag=&page=1" {
		t.Fatalf("search query = %q, want query=m&tag=&page=1", got)
	}
	if len(m.snapshot.Items) != 1 || m.snapshot.Items[0].Text != "milk" {
		t.Fatalf("filtered items = %#v, want milk", m.snapshot.Items)
	}

	m, _ = press(t, m, "enter")
	if m.view != ViewList {
		t.Fatalf("enter should return to the list")
	}
}

func TestSelectionFollowsItemAcrossRefresh(t *testing.T) {
	_, m := newHarness(t, true)
	m.applySnapshot(todolist.Snapshot{Items: []todoapi.Item{{ID: "a"}, {ID: "b"}, {ID: "c"}}})
	m.selected = 1

	m.applySnapshot(todolist.Snapshot{Items: []todoapi.Item{{ID: "new"}, {ID: "a"}, {ID: "b"}, {ID: "c"}}})
	if m.selected != 2 {
		t.Fatalf("selected = %d, want 2 (item b)", m.selected)
	}

	m.applySnapshot(todolist.Snapshot{Items: []todoapi.Item{{ID: "x"}}})
	if m.selected != 0 {
		t.Fatalf("selected = %d, want clamped to 0", m.selected)
	}
}

func TestThemeCycleSavesPrefs(t *testing.T) {
	h, m := newHarness(t, true)
	m, _ = press(t, m, "T")
	if m.theme.Name != "Kanagawa" {
		t.Fatalf("theme = %q, want Kanagawa", m.theme.Name)
	}
	saved, err := prefs.Load(h.prefsPath)
	if err != nil {
		t.Fatalf("prefs.Load: %v", err)
	}
	if saved.Theme != "Kanagawa" || !saved.ConfirmDelete {
		t.Fatalf("saved prefs = %#v", saved)
	}
}

func TestCopy_WritesItemText(t *testing.T) {
	h, m := newHarness(t, true)
	h.srv.Seed(todoapi.Item{Text: "copy me"})
	m = h.load(t, m)

	var copied string
	orig := writeClipboard
	writeClipboard = func(s string) error { copied = s; return nil }
	t.Cleanup(func() { writeClipboard = orig })

	m, cmd := press(t, m, "y")
	m = settle(t, m, cmd)
	if copied != "copy me" {
		t.Fatalf("clipboard = %q, want copy me", copied)
	}
	if m.flash != "Copied copy me" || m.flashErr {
		t.Fatalf("flash = %q err = %v", m.flash, m.flashErr)
	}
}

func TestDownload_WithoutAttachmentFlashes(t *testing.T) {
	h, m := newHarness(t, true)
	h.srv.Seed(todoapi.Item{Text: "no file"})
	m = h.load(t, m)

	m, cmd := press(t, m, "D")
	if cmd != nil {
		t.Fatalf("download without attachment should not start a request")
	}
	if !m.flashErr {
		t.Fatalf("expected an error flash, got %q", m.flash)
	}
}

func TestDownload_SavesIntoDownloadDir(t *testing.T) {
	h, m := newHarness(t, true)
	h.srv.PutFile("report.pdf", []byte("%PDF-1.4"))
	h.srv.Seed(todoapi.Item{Text: "with file", File: "uploads/report.pdf"})
	m = h.load(t, m)

	m, cmd := press(t, m, "D")
	m = settle(t, m, cmd)

	data, err := os.ReadFile(filepath.Join(m.config.DownloadDir, "report.pdf"))
	if err != nil {
		t.Fatalf("downloaded file: %v", err)
	}
	if string(data) != "%PDF-1.4" {
		t.Fatalf("downloaded content = %q", data)
	}
	if m.flashErr || !strings.HasPrefix(m.flash, "Saved ") {
		t.Fatalf("flash = %q", m.flash)
	}
}

func TestLogout_EndsSession(t *testing.T) {
	h, m := newHarness(t, true)
	_, _ = press(t, m, "L")
	if !h.state.Expired() {
		t.Fatalf("L should log out")
	}
	n := <-h.state.Notices()
	if n.Reason != session.ReasonLogout {
		t.Fatalf("notice reason = %v, want logout", n.Reason)
	}
}

func TestLogPane_ShowsFilteredTail(t *testing.T) {
	h, m := newHarness(t, true)
	lines := strings.Join([]string{
		`time="2026-10-17 09:41:05" level=debug msg="renewal started" component=keeper`,
		`time="2026-10-17 09:41:07" level=info msg="item created" component=list`,
	}, "\n") + "\n"
	if err := os.WriteFile(h.logFile, []byte(lines), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	m, cmd := press(t, m, "v")
	if m.view != ViewLog {
		t.Fatalf("view = %v, want log", m.view)
	}
	m = settle(t, m, cmd)

	content := m.renderLogContent()
	if !strings.Contains(content, "item created") {
		t.Fatalf("log pane missing info line")
	}
	if strings.Contains(content, "renewal started") {
		t.Fatalf("debug line shown at info level")
	}

	m, _ = press(t, m, "f") // info -> warn
	m, _ = press(t, m, "f") // warn -> error
	m, _ = press(t, m, "f") // error -> debug
	if !strings.Contains(m.renderLogContent(), "renewal started") {
		t.Fatalf("debug line hidden at debug level")
	}

	m, _ = press(t, m, "esc")
	if m.view != ViewList {
		t.Fatalf("esc should leave the log pane")
	}
}

func TestHelpOverlay_AnyKeyCloses(t *testing.T) {
	_, m := newHarness(t, true)
	m, _ = press(t, m, "?")
	if !m.showHelp || !strings.Contains(m.View(), "Keyboard Shortcuts") {
		t.Fatalf("help overlay not shown")
	}
	m, _ = press(t, m, "j")
	if m.showHelp {
		t.Fatalf("help should close on any key")
	}
}

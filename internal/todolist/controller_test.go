package todolist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/todopad/todopad/internal/attach"
	"github.com/todopad/todopad/internal/logging"
	"github.com/todopad/todopad/internal/session"
	"github.com/todopad/todopad/internal/todoapi"
	"github.com/todopad/todopad/internal/todoapi/todoapitest"
	"github.com/todopad/todopad/internal/tokenstore"
)

func newFakeController(t *testing.T) (*Controller, *todoapitest.Server) {
	t.Helper()
	srv := todoapitest.New(t)
	store := &tokenstore.Store{}
	if err := store.Save(srv.IssueToken()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	state := session.NewState(store, logging.Discard())
	client, err := todoapi.NewClient(srv.URL, state, todoapi.Options{Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return New(client, logging.Discard()), srv
}

func TestController_RefreshUsesSearchWhenFiltered(t *testing.T) {
	c, srv := newFakeController(t)
	srv.Seed(todoapi.Item{Text: "milk"}, todoapi.Item{Text: "bread"})
	ctx := context.Background()

	if err := c.SetQuery(ctx, "milk"); err != nil {
		t.Fatalf("SetQuery returned error: %v", err)
	}
	reqs := srv.RequestsTo("/api/todos/search")
	if len(reqs) != 1 || reqs[0].RawQuery != "query=milk&tag=&page=1" {
		t.Fatalf("search requests = %#v, want query=milk&tag=&page=1", reqs)
	}
	snap := c.Snapshot()
	if len(snap.Items) != 1 || snap.Items[0].Text != "milk" {
		t.Fatalf("items = %#v, want only milk", snap.Items)
	}

	if err := c.SetQuery(ctx, ""); err != nil {
		t.Fatalf("SetQuery returned error: %v", err)
	}
	if n := len(srv.RequestsTo("/api/todos/")); n != 1 {
		t.Fatalf("list requests = %d, want 1 after clearing the filter", n)
	}
	if n := len(c.Snapshot().Items); n != 2 {
		t.Fatalf("items = %d, want 2", n)
	}
}

func TestController_FilterChangesResetPage(t *testing.T) {
	c, srv := newFakeController(t)
	srv.SetPageSize(1)
	srv.Seed(todoapi.Item{Text: "a", Tags: []string{"x"}}, todoapi.Item{Text: "b", Tags: []string{"x"}}, todoapi.Item{Text: "c"})
	ctx := context.Background()

	if err := c.SetPage(ctx, 3); err != nil {
		t.Fatalf("SetPage returned error: %v", err)
	}
	if c.Query().Page != 3 {
		t.Fatalf("page = %d, want 3", c.Query().Page)
	}
	if err := c.SetTag(ctx, "x"); err != nil {
		t.Fatalf("SetTag returned error: %v", err)
	}
	q := c.Query()
	if q.Page != 1 || q.Tag != "x" {
		t.Fatalf("query = %#v, want page 1 tag x", q)
	}
	reqs := srv.RequestsTo("/api/todos/search")
	if len(reqs) != 1 || reqs[0].RawQuery != "query=&tag=x&page=1" {
		t.Fatalf("search requests = %#v", reqs)
	}

	if err := c.NextPage(ctx); err != nil {
		t.Fatalf("NextPage returned error: %v", err)
	}
	if c.Query().Page != 2 {
		t.Fatalf("page after NextPage = %d, want 2", c.Query().Page)
	}
	if err := c.NextPage(ctx); err != nil {
		t.Fatalf("NextPage returned error: %v", err)
	}
	if c.Query().Page != 2 {
		t.Fatalf("NextPage went past the last page: %d", c.Query().Page)
	}
	if err := c.PrevPage(ctx); err != nil {
		t.Fatalf("PrevPage returned error: %v", err)
	}
	if err := c.PrevPage(ctx); err != nil {
		t.Fatalf("PrevPage returned error: %v", err)
	}
	if c.Query().Page != 1 {
		t.Fatalf("page after PrevPage twice = %d, want 1", c.Query().Page)
	}
}

func TestController_RefreshIsIdempotent(t *testing.T) {
	c, srv := newFakeController(t)
	srv.Seed(todoapi.Item{Text: "a"}, todoapi.Item{Text: "b"})
	ctx := context.Background()

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	first := c.Snapshot()
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	second := c.Snapshot()
	if len(first.Items) != len(second.Items) || first.TotalPages != second.TotalPages || first.Query != second.Query {
		t.Fatalf("refresh changed state: %#v vs %#v", first, second)
	}
	for i := range first.Items {
		if first.Items[i].ID != second.Items[i].ID {
			t.Fatalf("item %d changed: %q vs %q", i, first.Items[i].ID, second.Items[i].ID)
		}
	}
}

func TestController_CreateResetsPageAndUpdateKeepsCount(t *testing.T) {
	c, srv := newFakeController(t)
	srv.SetPageSize(2)
	srv.Seed(todoapi.Item{Text: "a"}, todoapi.Item{Text: "b"}, todoapi.Item{Text: "c"})
	ctx := context.Background()

	if err := c.SetPage(ctx, 2); err != nil {
		t.Fatalf("SetPage returned error: %v", err)
	}
	if err := c.Submit(ctx, todoapi.Draft{Text: "d", Tags: "x,y"}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if n := len(srv.Items()); n != 4 {
		t.Fatalf("items after create = %d, want 4", n)
	}
	if c.Query().Page != 1 {
		t.Fatalf("page after create = %d, want 1", c.Query().Page)
	}

	target := c.Snapshot().Items[1]
	draft, err := c.Edit(target.ID)
	if err != nil {
		t.Fatalf("Edit returned error: %v", err)
	}
	if draft.Text != target.Text || draft.ID != target.ID {
		t.Fatalf("prefilled draft = %#v, want %q", draft, target.Text)
	}
	if err := c.SetPage(ctx, 2); err != nil {
		t.Fatalf("SetPage returned error: %v", err)
	}
	draft.Text = "edited"
	if err := c.Submit(ctx, draft); err != nil {
		t.Fatalf("Submit update returned error: %v", err)
	}
	if n := len(srv.Items()); n != 4 {
		t.Fatalf("items after update = %d, want 4", n)
	}
	if c.Query().Page != 2 {
		t.Fatalf("update changed page to %d, want 2", c.Query().Page)
	}
	if _, editing := c.Editing(); editing {
		t.Fatalf("edit still pending after successful update")
	}
	reqs := srv.RequestsTo("/api/todos/update")
	if len(reqs) != 1 || reqs[0].Form["_id"] != target.ID || reqs[0].Form["text"] != "edited" {
		t.Fatalf("update requests = %#v", reqs)
	}
}

func TestController_EditPrefillsTagsJoined(t *testing.T) {
	c, srv := newFakeController(t)
	seeded := srv.Seed(todoapi.Item{Text: "t", Tags: []string{"home", "food"}, Thumbnail: "/uploads/cat.png", File: "/uploads/a.pdf"})
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}

	draft, err := c.Edit(seeded[0].ID)
	if err != nil {
		t.Fatalf("Edit returned error: %v", err)
	}
	if draft.Tags != "home,food" || draft.ExistingThumbnail != "/uploads/cat.png" || draft.ExistingFile != "/uploads/a.pdf" {
		t.Fatalf("draft = %#v, want joined tags and existing references", draft)
	}
	if snap := c.Snapshot(); snap.Editing == nil || snap.Editing.ID != seeded[0].ID {
		t.Fatalf("snapshot editing = %#v", snap.Editing)
	}

	c.CancelEdit()
	if _, editing := c.Editing(); editing {
		t.Fatalf("CancelEdit left edit pending")
	}
	if _, err := c.Edit("missing"); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("Edit(missing) error = %v, want ErrUnknownItem", err)
	}
}

func TestController_FailedSubmitKeepsEdit(t *testing.T) {
	c, srv := newFakeController(t)
	seeded := srv.Seed(todoapi.Item{Text: "t"})
	ctx := context.Background()
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if _, err := c.Edit(seeded[0].ID); err != nil {
		t.Fatalf("Edit returned error: %v", err)
	}

	srv.Fail("/api/todos/update", 500)
	if err := c.Submit(ctx, todoapi.Draft{Text: "new"}); err == nil {
		t.Fatalf("Submit returned nil error, want failure")
	}
	if edit, editing := c.Editing(); !editing || edit.ID != seeded[0].ID {
		t.Fatalf("edit lost after failed submit")
	}
}

func TestController_SubmitValidatesBeforeNetwork(t *testing.T) {
	c, srv := newFakeController(t)
	dir := t.TempDir()
	notImage := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(notImage, []byte("plain text"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	err := c.Submit(context.Background(), todoapi.Draft{Text: "x", Thumbnail: notImage})
	if !errors.Is(err, attach.ErrNotImage) {
		t.Fatalf("Submit error = %v, want ErrNotImage", err)
	}
	err = c.Submit(context.Background(), todoapi.Draft{Text: "x", File: notImage})
	if !errors.Is(err, attach.ErrNotDocument) {
		t.Fatalf("Submit error = %v, want ErrNotDocument", err)
	}
	if err := c.Submit(context.Background(), todoapi.Draft{Text: "  "}); !errors.Is(err, ErrEmptyDraft) {
		t.Fatalf("Submit empty error = %v, want ErrEmptyDraft", err)
	}
	if n := len(srv.Requests()); n != 0 {
		t.Fatalf("requests sent = %d, want 0", n)
	}
}

func TestController_RemoveCancelsEditAndStepsBack(t *testing.T) {
	c, srv := newFakeController(t)
	srv.SetPageSize(1)
	seeded := srv.Seed(todoapi.Item{Text: "a"}, todoapi.Item{Text: "b"})
	ctx := context.Background()

	// Newest first: page 2 holds "a".
	if err := c.SetPage(ctx, 2); err != nil {
		t.Fatalf("SetPage returned error: %v", err)
	}
	if _, err := c.Edit(seeded[0].ID); err != nil {
		t.Fatalf("Edit returned error: %v", err)
	}
	if err := c.Remove(ctx, seeded[0].ID); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if _, editing := c.Editing(); editing {
		t.Fatalf("edit still pending for a deleted item")
	}
	snap := c.Snapshot()
	if snap.Query.Page != 1 || len(snap.Items) != 1 || snap.Items[0].Text != "b" {
		t.Fatalf("snapshot after remove = %#v, want page 1 with b", snap)
	}
}

func TestController_ToggleRefreshesWithFilter(t *testing.T) {
	c, srv := newFakeController(t)
	seeded := srv.Seed(todoapi.Item{Text: "milk"}, todoapi.Item{Text: "bread"})
	ctx := context.Background()
	if err := c.SetQuery(ctx, "milk"); err != nil {
		t.Fatalf("SetQuery returned error: %v", err)
	}
	if err := c.Toggle(ctx, seeded[0].ID); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}
	snap := c.Snapshot()
	if len(snap.Items) != 1 || !snap.Items[0].Completed {
		t.Fatalf("items after toggle = %#v, want milk completed", snap.Items)
	}
	if n := len(srv.RequestsTo("/api/todos/search")); n != 2 {
		t.Fatalf("search requests = %d, want 2", n)
	}
}

func TestController_RefreshErrorKeepsItems(t *testing.T) {
	c, srv := newFakeController(t)
	srv.Seed(todoapi.Item{Text: "a"})
	ctx := context.Background()
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	srv.Fail("/api/todos/", 500)
	if err := c.Refresh(ctx); err == nil {
		t.Fatalf("Refresh returned nil error, want failure")
	}
	snap := c.Snapshot()
	if len(snap.Items) != 1 || snap.LastError == nil || snap.ConsecutiveFailures != 1 {
		t.Fatalf("snapshot = %#v, want stale item and recorded error", snap)
	}
}

func TestController_Download(t *testing.T) {
	c, srv := newFakeController(t)
	srv.PutFile("report.pdf", []byte("report"))
	dir := filepath.Join(t.TempDir(), "dl")

	path, err := c.Download(context.Background(), todoapi.Item{File: "/uploads/report.pdf"}, dir)
	if err != nil {
		t.Fatalf("Download returned error: %v", err)
	}
	if path != filepath.Join(dir, "report.pdf") {
		t.Fatalf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "report" {
		t.Fatalf("downloaded %q (%v), want report", data, err)
	}

	if _, err := c.Download(context.Background(), todoapi.Item{}, dir); !errors.Is(err, ErrNoAttachment) {
		t.Fatalf("Download without file error = %v, want ErrNoAttachment", err)
	}

	_, err = c.Download(context.Background(), todoapi.Item{File: "/uploads/missing.pdf"}, dir)
	if err == nil {
		t.Fatalf("Download of missing file returned nil error")
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".part") {
			t.Fatalf("partial file left behind: %s", e.Name())
		}
	}
}

// orderedService answers fetches in the order the test releases them.
type orderedService struct {
	todoapi.Service

	mu      sync.Mutex
	release map[int]chan todoapi.Page
}

func (s *orderedService) gate(page int) chan todoapi.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.release == nil {
		s.release = make(map[int]chan todoapi.Page)
	}
	ch, ok := s.release[page]
	if !ok {
		ch = make(chan todoapi.Page, 1)
		s.release[page] = ch
	}
	return ch
}

func (s *orderedService) List(ctx context.Context, page int) (todoapi.Page, error) {
	select {
	case p := <-s.gate(page):
		return p, nil
	case <-ctx.Done():
		return todoapi.Page{}, ctx.Err()
	}
}

func TestController_DropsOutOfOrderResponses(t *testing.T) {
	svc := &orderedService{}
	c := New(svc, logging.Discard())
	ctx := context.Background()

	done1 := make(chan error, 1)
	go func() { done1 <- c.SetPage(ctx, 1) }()
	waitForSeq(t, c, 1)

	done2 := make(chan error, 1)
	go func() { done2 <- c.SetPage(ctx, 2) }()
	waitForSeq(t, c, 2)

	// The newer fetch answers first.
	svc.gate(2) <- todoapi.Page{Items: []todoapi.Item{{ID: "page2"}}, TotalPages: 2}
	if err := <-done2; err != nil {
		t.Fatalf("SetPage(2) returned error: %v", err)
	}
	svc.gate(1) <- todoapi.Page{Items: []todoapi.Item{{ID: "page1"}}, TotalPages: 2}
	if err := <-done1; err != nil {
		t.Fatalf("SetPage(1) returned error: %v", err)
	}

	snap := c.Snapshot()
	if len(snap.Items) != 1 || snap.Items[0].ID != "page2" {
		t.Fatalf("items = %#v, want the newer page2 result", snap.Items)
	}
}

func waitForSeq(t *testing.T, c *Controller, want uint64) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		c.mu.Lock()
		seq := c.seq
		c.mu.Unlock()
		if seq >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("fetch %d never started", want)
}

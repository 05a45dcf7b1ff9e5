package todolist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/todopad/todopad/internal/attach"
	"github.com/todopad/todopad/internal/todoapi"
)

var (
	// ErrNoAttachment is returned when downloading an item without a file.
	ErrNoAttachment = errors.New("item has no attachment")
	// ErrUnknownItem is returned for ids not in the current page.
	ErrUnknownItem = errors.New("item not in current page")
	// ErrEmptyDraft is returned when submitting a draft with nothing in it.
	ErrEmptyDraft = errors.New("nothing to save")
)

// Edit is the pending update: the item being edited and its prefilled draft.
type Edit struct {
	ID    string
	Draft todoapi.Draft
}

// Controller owns the list view state and turns user intents into API calls.
// All methods are safe for concurrent use.
type Controller struct {
	api    todoapi.Service
	logger log.FieldLogger
	store  Store

	mu    sync.Mutex
	query Query
	edit  *Edit
	seq   uint64
}

// New builds a Controller on the first page with no filter.
func New(api todoapi.Service, logger log.FieldLogger) *Controller {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Controller{
		api:    api,
		logger: logger.WithField("component", "list"),
		query:  Query{Page: 1},
	}
}

// Query returns the current query.
func (c *Controller) Query() Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// Snapshot returns a deep copy of the controller state.
func (c *Controller) Snapshot() Snapshot {
	snap := c.store.Snapshot()

	c.mu.Lock()
	defer c.mu.Unlock()
	snap.Query = c.query
	if c.edit != nil {
		e := *c.edit
		snap.Editing = &e
	}
	return snap
}

// Refresh fetches the current page through search when a filter is set,
// otherwise through the plain listing. On error the stale items are kept.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.seq++
	seq, q := c.seq, c.query
	c.mu.Unlock()

	var (
		page todoapi.Page
		err  error
	)
	if q.Filtered() {
		page, err = c.api.Search(ctx, q.Text, q.Tag, q.Page)
	} else {
		page, err = c.api.List(ctx, q.Page)
	}

	if !c.store.Update(seq, &page, err) {
		c.logger.WithFields(log.Fields{"seq": seq, "page": q.Page}).Debug("dropped stale fetch result")
		return nil
	}
	if err != nil {
		c.logger.WithError(err).WithField("page", q.Page).Warn("fetch failed")
		return err
	}
	return nil
}

// SetQuery changes the search text, returns to page 1 and refreshes.
func (c *Controller) SetQuery(ctx context.Context, text string) error {
	c.mu.Lock()
	c.query = c.query.WithText(text)
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// SetTag changes the tag filter, returns to page 1 and refreshes.
func (c *Controller) SetTag(ctx context.Context, tag string) error {
	c.mu.Lock()
	c.query = c.query.WithTag(tag)
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// SetPage moves to page, clamped to 1, keeping the current filter.
func (c *Controller) SetPage(ctx context.Context, page int) error {
	c.mu.Lock()
	c.query = c.query.WithPage(page)
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// NextPage advances one page unless already on the last one.
func (c *Controller) NextPage(ctx context.Context) error {
	pages := c.store.Snapshot().Pages()
	cur := c.Query().Page
	if cur >= pages {
		return nil
	}
	return c.SetPage(ctx, cur+1)
}

// PrevPage goes back one page unless already on the first one.
func (c *Controller) PrevPage(ctx context.Context) error {
	cur := c.Query().Page
	if cur <= 1 {
		return nil
	}
	return c.SetPage(ctx, cur-1)
}

// Edit enters update mode for id and returns the prefilled draft.
func (c *Controller) Edit(id string) (todoapi.Draft, error) {
	item, ok := c.store.Snapshot().Item(id)
	if !ok {
		return todoapi.Draft{}, ErrUnknownItem
	}
	draft := todoapi.Draft{
		ID:                item.ID,
		Text:              item.Text,
		Tags:              item.TagList(),
		ExistingThumbnail: item.Thumbnail,
		ExistingFile:      item.File,
	}

	c.mu.Lock()
	c.edit = &Edit{ID: item.ID, Draft: draft}
	c.mu.Unlock()
	return draft, nil
}

// CancelEdit leaves update mode.
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	c.edit = nil
	c.mu.Unlock()
}

// Editing returns the pending edit, if any.
func (c *Controller) Editing() (Edit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.edit == nil {
		return Edit{}, false
	}
	return *c.edit, true
}

// Submit updates the item in update mode, or creates a new one and returns
// to page 1. Attachments are validated before anything is sent. On failure
// the edit state is kept so the user can retry.
func (c *Controller) Submit(ctx context.Context, draft todoapi.Draft) error {
	if draft.Empty() {
		return ErrEmptyDraft
	}
	if draft.Thumbnail != "" {
		p, err := attach.ValidateThumbnail(draft.Thumbnail)
		if err != nil {
			return err
		}
		draft.Thumbnail = p.Path
	}
	if draft.File != "" {
		p, err := attach.ValidateFile(draft.File)
		if err != nil {
			return err
		}
		draft.File = p.Path
	}

	edit, editing := c.Editing()
	if editing {
		draft.ID = edit.ID
		if draft.ExistingThumbnail == "" {
			draft.ExistingThumbnail = edit.Draft.ExistingThumbnail
		}
		if draft.ExistingFile == "" {
			draft.ExistingFile = edit.Draft.ExistingFile
		}
		if _, err := c.api.Update(ctx, draft); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		c.mu.Lock()
		if c.edit != nil && c.edit.ID == edit.ID {
			c.edit = nil
		}
		c.mu.Unlock()
		c.logger.WithField("id", edit.ID).Info("item updated")
	} else {
		created, err := c.api.Create(ctx, draft)
		if err != nil {
			return fmt.Errorf("create item: %w", err)
		}
		c.mu.Lock()
		c.query = c.query.WithPage(1)
		c.mu.Unlock()
		c.logger.WithField("id", created.ID).Info("item created")
	}

	// The write succeeded; a failed refresh only shows up in the snapshot.
	_ = c.Refresh(ctx)
	return nil
}

// Remove deletes id and refreshes. Deleting the item being edited cancels
// the edit. When the current page empties it steps back to the last page.
func (c *Controller) Remove(ctx context.Context, id string) error {
	if err := c.api.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	c.mu.Lock()
	if c.edit != nil && c.edit.ID == id {
		c.edit = nil
	}
	c.mu.Unlock()
	c.logger.WithField("id", id).Info("item deleted")

	_ = c.Refresh(ctx)

	snap := c.Snapshot()
	if len(snap.Items) == 0 && snap.Query.Page > snap.Pages() && snap.LastError == nil {
		_ = c.SetPage(ctx, snap.Pages())
	}
	return nil
}

// Toggle flips the completion flag of id and refreshes.
func (c *Controller) Toggle(ctx context.Context, id string) error {
	if err := c.api.ToggleComplete(ctx, id); err != nil {
		return fmt.Errorf("toggle item: %w", err)
	}
	_ = c.Refresh(ctx)
	return nil
}

// Download saves the attachment of item into dir and returns the written path.
func (c *Controller) Download(ctx context.Context, item todoapi.Item, dir string) (string, error) {
	name := todoapi.FilenameFromPath(item.File)
	if name == "" || name == "." || name == ".." {
		return "", ErrNoAttachment
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*.part")
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}
	tmpName := tmp.Name()

	n, err := c.api.Download(ctx, name, tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("write download: %w", cerr)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return "", err
	}

	dest := filepath.Join(dir, name)
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("save download: %w", err)
	}
	c.logger.WithFields(log.Fields{"file": dest, "bytes": n}).Info("attachment downloaded")
	return dest, nil
}

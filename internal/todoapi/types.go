package todoapi

import (
	"fmt"
	"strings"
	"time"
)

// Item mirrors a to-do document returned by the backend.
type Item struct {
	ID        string   `json:"_id"`
	Text      string   `json:"text"`
	Tags      []string `json:"tags"`
	Thumbnail string   `json:"thumbnail,omitempty"`
	File      string   `json:"file,omitempty"`
	Completed bool     `json:"completed"`
	CreatedAt string   `json:"createdAt,omitempty"`
	UpdatedAt string   `json:"updatedAt,omitempty"`
}

// HasThumbnail reports whether the item references a stored image.
func (i Item) HasThumbnail() bool {
	return strings.TrimSpace(i.Thumbnail) != ""
}

// HasFile reports whether the item references a stored attachment.
func (i Item) HasFile() bool {
	return strings.TrimSpace(i.File) != ""
}

// TagList joins tags the way the edit form expects them.
func (i Item) TagList() string {
	return strings.Join(i.Tags, ",")
}

// ParsedUpdatedAt returns the parsed UpdatedAt timestamp.
func (i Item) ParsedUpdatedAt() time.Time {
	return parseTime(i.UpdatedAt)
}

// ParsedCreatedAt returns the parsed CreatedAt timestamp.
func (i Item) ParsedCreatedAt() time.Time {
	return parseTime(i.CreatedAt)
}

// Page is the payload of the list and search endpoints.
type Page struct {
	Items      []Item `json:"toDos"`
	TotalPages int    `json:"totalPages"`
}

// Draft is an item being created or updated.
//
// Thumbnail and File are local paths uploaded with the request. On update,
// ExistingThumbnail and ExistingFile carry the references the item already
// has so the backend keeps them when no new upload is chosen.
type Draft struct {
	ID                string
	Text              string
	Tags              string // comma separated, as typed
	Thumbnail         string
	File              string
	ExistingThumbnail string
	ExistingFile      string
}

// Empty reports whether the draft has nothing to submit.
func (d Draft) Empty() bool {
	return strings.TrimSpace(d.Text) == "" &&
		strings.TrimSpace(d.Tags) == "" &&
		d.Thumbnail == "" && d.File == ""
}

// SplitTags returns the draft tags trimmed, without empties.
func (d Draft) SplitTags() []string {
	var out []string
	for _, tag := range strings.Split(d.Tags, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// Credentials are sent to the login endpoint.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token   string `json:"token"`
	Data    string `json:"data"`
	Message string `json:"message"`
}

func (t tokenResponse) value() string {
	if v := strings.TrimSpace(t.Token); v != "" {
		return v
	}
	return strings.TrimSpace(t.Data)
}

type idPayload struct {
	ID string `json:"_id"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// StatusError is returned for any non-expiry HTTP error.
type StatusError struct {
	Status  int
	Path    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %s returned status %d: %s", e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("api %s returned status %d", e.Path, e.Status)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Package todoapitest runs an in-memory to-do backend for tests.
package todoapitest

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/todopad/todopad/internal/todoapi"
)

// DefaultPageSize matches the page size of the real backend.
const DefaultPageSize = 5

// ExpiredMessage is the body message sent when a token is rejected.
const ExpiredMessage = "Token expired, please log in again"

// Request records one call the server received.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Token    string
	Form     map[string]string
	Uploads  map[string]string // form field -> uploaded file name
}

// Server is a fake backend. All methods are safe for concurrent use.
type Server struct {
	URL string

	mu            sync.Mutex
	pageSize      int
	expiredStatus int
	items         []todoapi.Item // newest first
	files         map[string][]byte
	tokens        map[string]bool
	users         map[string]string
	failures      map[string]int
	requests      []Request
	renewals      int
}

// New starts a server and stops it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		pageSize:      DefaultPageSize,
		expiredStatus: http.StatusBadRequest,
		files:         make(map[string][]byte),
		tokens:        make(map[string]bool),
		users:         make(map[string]string),
		failures:      make(map[string]int),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	s.register(e)

	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)
	s.URL = ts.URL
	return s
}

// SetPageSize changes how many items a page holds.
func (s *Server) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.pageSize = n
	}
}

// AddUser registers credentials accepted by the login endpoint.
func (s *Server) AddUser(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = password
}

// IssueToken returns a fresh valid token.
func (s *Server) IssueToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked()
}

// ExpireSessions invalidates every token issued so far.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]bool)
}

// Fail makes every following request to p answer with status until cleared
// with status 0.
func (s *Server) Fail(p string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, p)
		return
	}
	s.failures[p] = status
}

// Seed stores items as if they had been created in order and returns them
// with ids assigned.
func (s *Server) Seed(items ...todoapi.Item) []todoapi.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]todoapi.Item, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		s.items = append([]todoapi.Item{item}, s.items...)
		out = append(out, item)
	}
	return out
}

// PutFile stores an attachment blob under name.
func (s *Server) PutFile(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = append([]byte(nil), data...)
}

// File returns a stored attachment blob.
func (s *Server) File(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	return data, ok
}

// Items returns all stored items, newest first.
func (s *Server) Items() []todoapi.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]todoapi.Item(nil), s.items...)
}

// Requests returns every recorded request.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns the recorded requests whose path equals p.
func (s *Server) RequestsTo(p string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Path == p {
			out = append(out, r)
		}
	}
	return out
}

// Renewals counts successful extend-session calls.
func (s *Server) Renewals() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renewals
}

func (s *Server) issueLocked() string {
	token := "tok-" + uuid.NewString()
	s.tokens[token] = true
	return token
}

func (s *Server) register(e *echo.Echo) {
	e.Use(s.record)

	todos := e.Group("/api/todos", s.requireToken(func() int { return s.expiredStatus }))
	todos.GET("/", s.list)
	todos.GET("/search", s.search)
	todos.POST("/save", s.save)
	todos.POST("/update", s.update)
	todos.POST("/delete", s.remove)
	todos.POST("/toggle-complete", s.toggle)
	todos.GET("/download/:filename", s.download)

	e.POST("/api/auth", s.login)
	e.POST("/api/auth/extend-session", s.extend, s.requireToken(func() int { return http.StatusUnauthorized }))
}

func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		rec := Request{
			Method:   req.Method,
			Path:     req.URL.Path,
			RawQuery: req.URL.RawQuery,
			Token:    req.Header.Get(todoapi.TokenHeader),
		}
		if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
			rec.Form, rec.Uploads = readMultipart(c)
		}

		s.mu.Lock()
		s.requests = append(s.requests, rec)
		status, failing := s.failures[req.URL.Path]
		s.mu.Unlock()

		if failing {
			return c.JSON(status, map[string]string{"message": "forced failure"})
		}
		return next(c)
	}
}

func readMultipart(c echo.Context) (map[string]string, map[string]string) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil
	}
	fields := make(map[string]string)
	for k, v := range form.Value {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	uploads := make(map[string]string)
	for k, v := range form.File {
		if len(v) > 0 {
			uploads[k] = v[0].Filename
		}
	}
	return fields, uploads
}

func (s *Server) requireToken(status func() int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.Request().Header.Get(todoapi.TokenHeader)
			s.mu.Lock()
			ok := token != "" && s.tokens[token]
			s.mu.Unlock()
			if !ok {
				return c.JSON(status(), map[string]string{"message": ExpiredMessage})
			}
			return next(c)
		}
	}
}

type pageResponse struct {
	ToDos      []todoapi.Item `json:"toDos"`
	TotalPages int            `json:"totalPages"`
}

func (s *Server) list(c echo.Context) error {
	return s.page(c, func(todoapi.Item) bool { return true })
}

func (s *Server) search(c echo.Context) error {
	query := strings.ToLower(c.QueryParam("query"))
	tag := strings.ToLower(c.QueryParam("tag"))
	return s.page(c, func(item todoapi.Item) bool {
		if query != "" && !strings.Contains(strings.ToLower(item.Text), query) {
			return false
		}
		if tag == "" {
			return true
		}
		for _, t := range item.Tags {
			if strings.ToLower(t) == tag {
				return true
			}
		}
		return false
	})
}

func (s *Server) page(c echo.Context, match func(todoapi.Item) bool) error {
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		page = 1
	}

	s.mu.Lock()
	var matched []todoapi.Item
	for _, item := range s.items {
		if match(item) {
			matched = append(matched, item)
		}
	}
	size := s.pageSize
	s.mu.Unlock()

	resp := pageResponse{ToDos: []todoapi.Item{}, TotalPages: (len(matched) + size - 1) / size}
	start := (page - 1) * size
	if start < len(matched) {
		end := min(start+size, len(matched))
		resp.ToDos = matched[start:end]
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) save(c echo.Context) error {
	item := todoapi.Item{
		ID:   uuid.NewString(),
		Text: c.FormValue("text"),
		Tags: splitTags(c.FormValue("tags")),
	}
	var err error
	if item.Thumbnail, err = s.storeUpload(c, "thumbnail"); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": err.Error()})
	}
	if item.File, err = s.storeUpload(c, "file"); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": err.Error()})
	}

	s.mu.Lock()
	s.items = append([]todoapi.Item{item}, s.items...)
	s.mu.Unlock()
	return c.JSON(http.StatusCreated, item)
}

func (s *Server) update(c echo.Context) error {
	id := c.FormValue("_id")
	thumb, err := s.storeUpload(c, "thumbnail")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": err.Error()})
	}
	file, err := s.storeUpload(c, "file")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"message": err.Error()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		s.items[i].Text = c.FormValue("text")
		s.items[i].Tags = splitTags(c.FormValue("tags"))
		s.items[i].Thumbnail = thumb
		s.items[i].File = file
		return c.JSON(http.StatusOK, s.items[i])
	}
	return c.JSON(http.StatusNotFound, map[string]string{"message": "to-do not found"})
}

// storeUpload saves an uploaded part, or echoes back a plain reference the
// client sent to keep the current one.
func (s *Server) storeUpload(c echo.Context, field string) (string, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return c.FormValue(field), nil
	}
	if err != nil {
		return "", err
	}
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return "", err
	}
	name := uuid.NewString()[:8] + "-" + path.Base(fh.Filename)

	s.mu.Lock()
	s.files[name] = data
	s.mu.Unlock()
	return "uploads/" + name, nil
}

type idBody struct {
	ID string `json:"_id"`
}

func (s *Server) remove(c echo.Context) error {
	var body idBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid body"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == body.ID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return c.JSON(http.StatusOK, map[string]string{"message": "deleted"})
		}
	}
	return c.JSON(http.StatusNotFound, map[string]string{"message": "to-do not found"})
}

func (s *Server) toggle(c echo.Context) error {
	var body idBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid body"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID == body.ID {
			s.items[i].Completed = !s.items[i].Completed
			return c.JSON(http.StatusOK, s.items[i])
		}
	}
	return c.JSON(http.StatusNotFound, map[string]string{"message": "to-do not found"})
}

func (s *Server) download(c echo.Context) error {
	name := c.Param("filename")
	data, ok := s.File(name)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"message": "file not found"})
	}
	return c.Stream(http.StatusOK, echo.MIMEOctetStream, bytes.NewReader(data))
}

func (s *Server) login(c echo.Context) error {
	var creds todoapi.Credentials
	if err := c.Bind(&creds); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "invalid body"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	want, ok := s.users[creds.Email]
	if !ok || want != creds.Password {
		return c.JSON(http.StatusBadRequest, map[string]string{"message": "Invalid credentials"})
	}
	return c.JSON(http.StatusOK, map[string]string{"data": s.issueLocked()})
}

func (s *Server) extend(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renewals++
	return c.JSON(http.StatusOK, map[string]string{"token": s.issueLocked()})
}

func splitTags(raw string) []string {
	tags := []string{}
	for _, tag := range strings.Split(raw, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

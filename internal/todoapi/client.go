package todoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/todopad/todopad/internal/session"
)

// ErrSessionExpired is returned when the backend rejected the session token.
var ErrSessionExpired = errors.New("session expired")

// Service defines the to-do operations the list controller needs.
// This interface is implemented by *Client and can be used for testing.
type Service interface {
	List(ctx context.Context, page int) (Page, error)
	Search(ctx context.Context, query, tag string, page int) (Page, error)
	Create(ctx context.Context, draft Draft) (Item, error)
	Update(ctx context.Context, draft Draft) (Item, error)
	Delete(ctx context.Context, id string) error
	ToggleComplete(ctx context.Context, id string) error
	Download(ctx context.Context, filename string, w io.Writer) (int64, error)
}

// Ensure Client implements Service and session.Renewer at compile time.
var (
	_ Service         = (*Client)(nil)
	_ session.Renewer = (*Client)(nil)
)

// Client talks to the to-do backend.
type Client struct {
	baseURL       *url.URL
	http          *http.Client
	userAgent     string
	session       *session.State
	expiredStatus int
	logger        log.FieldLogger
}

// Options tune a Client. Zero values use defaults.
type Options struct {
	Timeout       time.Duration
	ExpiredStatus int
	Logger        log.FieldLogger
	HTTPClient    *http.Client
}

const (
	defaultAPIURL        = "localhost:5000"
	defaultUserAgent     = "todopad/0.1"
	defaultExpiredStatus = http.StatusBadRequest
	requestTimeout       = 10 * time.Second

	// TokenHeader carries the session token on every request.
	TokenHeader     = "x-auth-token"
	requestIDHeader = "X-Request-ID"

	todosPath = "/api/todos"
	authPath  = "/api/auth"
)

// NewClient builds a Client for apiURL. sess supplies the token and is told
// when the backend reports the session expired.
func NewClient(apiURL string, sess *session.State, opts Options) (*Client, error) {
	if sess == nil {
		return nil, fmt.Errorf("client requires a session")
	}
	base, err := parseBaseURL(apiURL)
	if err != nil {
		return nil, err
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = requestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	expired := opts.ExpiredStatus
	if expired == 0 {
		expired = defaultExpiredStatus
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Client{
		baseURL:       base,
		http:          httpClient,
		userAgent:     defaultUserAgent,
		session:       sess,
		expiredStatus: expired,
		logger:        logger.WithField("component", "api"),
	}, nil
}

// List fetches one page of all items.
func (c *Client) List(ctx context.Context, page int) (Page, error) {
	if c == nil {
		return Page{}, fmt.Errorf("client is nil")
	}
	rel := &url.URL{Path: todosPath + "/", RawQuery: "page=" + strconv.Itoa(normalizePage(page))}
	var payload Page
	if err := c.doJSON(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return Page{}, err
	}
	return payload, nil
}

// Search fetches one page of items matching query and tag. Both parameters
// are always sent, empty or not.
func (c *Client) Search(ctx context.Context, query, tag string, page int) (Page, error) {
	if c == nil {
		return Page{}, fmt.Errorf("client is nil")
	}
	raw := "query=" + url.QueryEscape(query) +
		"&tag=" + url.QueryEscape(tag) +
		"&page=" + strconv.Itoa(normalizePage(page))
	rel := &url.URL{Path: todosPath + "/search", RawQuery: raw}
	var payload Page
	if err := c.doJSON(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return Page{}, err
	}
	return payload, nil
}

// Create saves a new item, uploading any selected thumbnail and file.
func (c *Client) Create(ctx context.Context, draft Draft) (Item, error) {
	if c == nil {
		return Item{}, fmt.Errorf("client is nil")
	}
	draft.ID = ""
	return c.submit(ctx, todosPath+"/save", draft)
}

// Update replaces an existing item's fields.
func (c *Client) Update(ctx context.Context, draft Draft) (Item, error) {
	if c == nil {
		return Item{}, fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(draft.ID) == "" {
		return Item{}, fmt.Errorf("item id required")
	}
	return c.submit(ctx, todosPath+"/update", draft)
}

// Delete removes an item.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.postID(ctx, todosPath+"/delete", id)
}

// ToggleComplete flips an item's completed flag.
func (c *Client) ToggleComplete(ctx context.Context, id string) error {
	return c.postID(ctx, todosPath+"/toggle-complete", id)
}

// Download streams the stored attachment named filename into w.
func (c *Client) Download(ctx context.Context, filename string, w io.Writer) (int64, error) {
	if c == nil {
		return 0, fmt.Errorf("client is nil")
	}
	filename = strings.TrimSpace(filename)
	if filename == "" || filename == "." || filename == ".." {
		return 0, fmt.Errorf("filename required")
	}
	rel := &url.URL{Path: todosPath + "/download/" + filename}
	resp, err := c.send(ctx, http.MethodGet, rel, nil, "")
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("read download: %w", err)
	}
	return n, nil
}

// RenewSession extends the session and stores the token the backend issues.
func (c *Client) RenewSession(ctx context.Context) (string, error) {
	if c == nil {
		return "", fmt.Errorf("client is nil")
	}
	rel := &url.URL{Path: authPath + "/extend-session"}
	episode := c.session.Episode()
	var payload tokenResponse
	if err := c.doJSON(ctx, http.MethodPost, rel, nil, &payload); err != nil {
		return "", err
	}
	token := payload.value()
	if token == "" {
		return "", fmt.Errorf("renew session: response carried no token")
	}
	if err := c.session.RenewedEpisode(episode, token); err != nil {
		return "", fmt.Errorf("renew session: %w", err)
	}
	return token, nil
}

// Login exchanges credentials for a token and starts a new session episode.
func (c *Client) Login(ctx context.Context, email, password string) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	creds := Credentials{Email: strings.TrimSpace(email), Password: password}
	if creds.Email == "" || creds.Password == "" {
		return fmt.Errorf("email and password required")
	}
	body, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	rel := &url.URL{Path: authPath}
	var payload tokenResponse
	if err := c.doJSON(ctx, http.MethodPost, rel, bytes.NewReader(body), &payload); err != nil {
		return err
	}
	token := payload.value()
	if token == "" {
		return fmt.Errorf("login: response carried no token")
	}
	return c.session.Authenticated(token)
}

// ThumbnailURL resolves a stored thumbnail reference to an absolute URL.
func (c *Client) ThumbnailURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if c == nil || ref == "" {
		return ""
	}
	if strings.Contains(ref, "://") {
		return ref
	}
	return c.baseURL.ResolveReference(&url.URL{Path: "/" + strings.TrimPrefix(ref, "/")}).String()
}

// FilenameFromPath returns the last path segment of a stored file reference.
func FilenameFromPath(ref string) string {
	ref = strings.TrimSpace(ref)
	if i := strings.LastIndexAny(ref, `/\`); i >= 0 {
		ref = ref[i+1:]
	}
	return ref
}

func (c *Client) postID(ctx context.Context, path, id string) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("item id required")
	}
	body, err := json.Marshal(idPayload{ID: id})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.doJSON(ctx, http.MethodPost, &url.URL{Path: path}, bytes.NewReader(body), nil)
}

func (c *Client) submit(ctx context.Context, path string, draft Draft) (Item, error) {
	body, contentType, err := encodeDraft(draft)
	if err != nil {
		return Item{}, err
	}
	resp, err := c.send(ctx, http.MethodPost, &url.URL{Path: path}, body, contentType)
	if err != nil {
		return Item{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	var item Item
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil && !errors.Is(err, io.EOF) {
		return Item{}, fmt.Errorf("decode response: %w", err)
	}
	return item, nil
}

// encodeDraft builds the multipart form the save and update endpoints expect.
func encodeDraft(draft Draft) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := [][2]string{{"text", draft.Text}, {"tags", strings.Join(draft.SplitTags(), ",")}}
	if draft.ID != "" {
		fields = append(fields, [2]string{"_id", draft.ID})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("encode form: %w", err)
		}
	}

	if err := attachPart(mw, "thumbnail", draft.Thumbnail, draft.ExistingThumbnail); err != nil {
		return nil, "", err
	}
	if err := attachPart(mw, "file", draft.File, draft.ExistingFile); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("encode form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

func attachPart(mw *multipart.Writer, field, localPath, existing string) error {
	if localPath == "" {
		if existing == "" {
			return nil
		}
		if err := mw.WriteField(field, existing); err != nil {
			return fmt.Errorf("encode form: %w", err)
		}
		return nil
	}
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", field, err)
	}
	defer f.Close()

	part, err := mw.CreateFormFile(field, filepath.Base(localPath))
	if err != nil {
		return fmt.Errorf("encode %s: %w", field, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("encode %s: %w", field, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method string, rel *url.URL, body io.Reader, dest any) error {
	contentType := ""
	if body != nil {
		contentType = "application/json"
	}
	resp, err := c.send(ctx, method, rel, body, contentType)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// send executes a request and maps error statuses. On success the caller
// owns resp.Body.
func (c *Client) send(ctx context.Context, method string, rel *url.URL, body io.Reader, contentType string) (*http.Response, error) {
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(requestIDHeader, uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	// The episode pins this request to the login whose token it carries.
	token, episode := c.session.Current()
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}

	logger := c.logger.WithFields(log.Fields{
		"method":     method,
		"path":       rel.Path,
		"request_id": req.Header.Get(requestIDHeader),
	})

	resp, err := c.http.Do(req)
	if err != nil {
		logger.WithError(err).Warn("request failed")
		return nil, fmt.Errorf("execute request: %w", err)
	}
	if resp.StatusCode < 400 {
		logger.WithField("status", resp.StatusCode).Debug("request ok")
		return resp, nil
	}
	defer func() { _ = resp.Body.Close() }()

	message := readErrorMessage(resp.Body)
	if resp.StatusCode == c.expiredStatus && strings.HasPrefix(rel.Path, todosPath) {
		if c.session.ExpireEpisode(episode, session.ReasonServer, message) {
			logger.WithField("status", resp.StatusCode).Info("backend reported session expired")
		}
		return nil, fmt.Errorf("api %s: %w", rel.Path, ErrSessionExpired)
	}
	logger.WithField("status", resp.StatusCode).Warn("request rejected")
	return nil, &StatusError{Status: resp.StatusCode, Path: rel.Path, Message: message}
}

func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 64*1024))
	if err != nil || len(data) == 0 {
		return ""
	}
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		return body.Error
	}
	text := strings.TrimSpace(string(data))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func parseBaseURL(apiURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiURL)
	if trimmed == "" {
		trimmed = defaultAPIURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api url %q: %w", apiURL, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

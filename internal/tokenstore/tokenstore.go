// Package tokenstore persists the single session token todopad holds.
//
// The token lives in a TOML credentials file (0600). The TODOPAD_TOKEN
// environment variable seeds the store instead of the file when set; once the
// session renews or ends, the file becomes authoritative.
package tokenstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	toml "github.com/pelletier/go-toml/v2"
)

// EnvToken overrides the stored token for the first read.
const EnvToken = "TODOPAD_TOKEN"

// Info describes the stored token.
type Info struct {
	Token     string     `toml:"token"`
	Source    string     `toml:"source"` // "env" | "file"
	SavedAt   time.Time  `toml:"saved_at"`
	ExpiresAt *time.Time `toml:"expires_at,omitempty"`
}

// Store holds exactly one token, mirrored to disk.
type Store struct {
	path string

	mu      sync.RWMutex
	current *Info
}

// Open loads the token from the environment or from path. A missing file
// yields an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	if env := strings.TrimSpace(os.Getenv(EnvToken)); env != "" {
		token := stripBearer(env)
		s.current = &Info{Token: token, Source: "env", ExpiresAt: ExpiresAt(token)}
		return s, nil
	}

	info, err := readFile(path)
	if err != nil {
		return nil, err
	}
	s.current = info
	return s, nil
}

// Token returns the active token or "" when logged out.
func (s *Store) Token() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.Token
}

// Info returns a copy of the active token details, or nil.
func (s *Store) Info() *Info {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	dup := *s.current
	if s.current.ExpiresAt != nil {
		exp := *s.current.ExpiresAt
		dup.ExpiresAt = &exp
	}
	return &dup
}

// Save replaces the active token. The previous token is discarded, never merged.
func (s *Store) Save(token string) error {
	token = stripBearer(strings.TrimSpace(token))
	if token == "" {
		return fmt.Errorf("empty token")
	}
	info := &Info{
		Token:     token,
		Source:    "file",
		SavedAt:   time.Now().UTC(),
		ExpiresAt: ExpiresAt(token),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFile(s.path, info); err != nil {
		return err
	}
	s.current = info
	return nil
}

// Clear removes the active token. Clearing an empty store is a no-op.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	if strings.TrimSpace(s.path) == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

// ExpiresAt reads the exp claim of a JWT without verifying it. The backend
// verifies tokens; the client only uses exp to show how long the session has
// left. Non-JWT tokens return nil.
func ExpiresAt(token string) *time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, ok := claims["exp"].(float64)
	if !ok || exp <= 0 {
		return nil
	}
	t := time.Unix(int64(exp), 0).UTC()
	return &t
}

func readFile(path string) (*Info, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var info Info
	if err := toml.Unmarshal(b, &info); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	info.Token = stripBearer(strings.TrimSpace(info.Token))
	if info.Token == "" {
		return nil, nil
	}
	info.Source = "file"
	return &info, nil
}

func writeFile(path string, info *Info) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	b, err := toml.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace credentials: %w", err)
	}
	return nil
}

func stripBearer(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures everything todopad needs to reach the backend and manage
// the local session.
type Config struct {
	APIURL          string
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	RefreshInterval time.Duration
	ExpiredStatus   int
	DownloadDir     string
	LogFile         string
	CredentialsFile string
}

const (
	defaultConfigPath      = "~/.config/todopad/config.toml"
	defaultAPIURL          = "http://localhost:5000"
	defaultIdleTimeout     = 15 * time.Minute
	defaultRequestTimeout  = 10 * time.Second
	defaultRefresh         = 30 * time.Second
	defaultExpiredStatus   = 400
	defaultDownloadDir     = "~/Downloads"
	defaultLogFile         = "~/.local/state/todopad/todopad.log"
	defaultCredentialsFile = "~/.config/todopad/credentials.toml"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		APIURL:          defaultAPIURL,
		IdleTimeout:     defaultIdleTimeout,
		RequestTimeout:  defaultRequestTimeout,
		RefreshInterval: defaultRefresh,
		ExpiredStatus:   defaultExpiredStatus,
		DownloadDir:     mustExpand(defaultDownloadDir),
		LogFile:         mustExpand(defaultLogFile),
		CredentialsFile: mustExpand(defaultCredentialsFile),
	}
}

// Load locates and parses the todopad config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIURL          string `toml:"api_url"`
		IdleTimeout     string `toml:"idle_timeout"`
		RequestTimeout  string `toml:"request_timeout"`
		RefreshInterval string `toml:"refresh_interval"`
		ExpiredStatus   int    `toml:"expired_status"`
		DownloadDir     string `toml:"download_dir"`
		LogFile         string `toml:"log_file"`
		CredentialsFile string `toml:"credentials_file"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIURL); v != "" {
		cfg.APIURL = v
	}
	if cfg.IdleTimeout, err = parseDuration("idle_timeout", raw.IdleTimeout, defaultIdleTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RequestTimeout, err = parseDuration("request_timeout", raw.RequestTimeout, defaultRequestTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RefreshInterval, err = parseDuration("refresh_interval", raw.RefreshInterval, defaultRefresh); err != nil {
		return Config{}, err
	}
	if raw.ExpiredStatus != 0 {
		if raw.ExpiredStatus < 400 || raw.ExpiredStatus > 599 {
			return Config{}, fmt.Errorf("parse config: expired_status %d is not an error status", raw.ExpiredStatus)
		}
		cfg.ExpiredStatus = raw.ExpiredStatus
	}
	if v := strings.TrimSpace(raw.DownloadDir); v != "" {
		cfg.DownloadDir = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.CredentialsFile); v != "" {
		cfg.CredentialsFile = mustExpand(v)
	}

	return cfg, nil
}

func parseDuration(key, value string, fallback time.Duration) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse config: %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("parse config: %s must be positive", key)
	}
	return d, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return ExpandPath(defaultConfigPath)
	}
	return ExpandPath(path)
}

func mustExpand(path string) string {
	expanded, err := ExpandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ExpandPath resolves a leading ~ to the user's home and returns an absolute path.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

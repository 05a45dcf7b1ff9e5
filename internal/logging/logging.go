// Package logging configures the logrus logger used across todopad.
//
// The TUI owns the terminal, so log output goes to a file instead of stderr.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// DebugEnv enables debug logging when set to a true value.
const DebugEnv = "TODOPAD_DEBUG"

// Setup points the standard logrus logger at path and returns a closer for
// the underlying file. An empty path discards log output.
func Setup(path string, debug bool) (io.Closer, error) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetLevel(Level(debug))

	if strings.TrimSpace(path) == "" {
		log.SetOutput(io.Discard)
		return nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(file)
	return file, nil
}

// Level returns Debug when requested explicitly or through DebugEnv.
func Level(debug bool) log.Level {
	if debug {
		return log.DebugLevel
	}
	if dbg, err := strconv.ParseBool(os.Getenv(DebugEnv)); err == nil && dbg {
		return log.DebugLevel
	}
	return log.InfoLevel
}

// Discard returns a logger that drops everything. Handy as a default for
// components constructed without one.
func Discard() *log.Logger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

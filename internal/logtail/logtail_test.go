package logtail

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func TestRead(t *testing.T) {
	// Create a temporary log file
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	// Write 10 lines of content
	var content strings.Builder
	var expectedAll []string
	for i := 1; i <= 10; i++ {
		line := fmt.Sprintf("Line %d", i)
		content.WriteString(line + "\n")
		expectedAll = append(expectedAll, line)
	}

	if err := os.WriteFile(logPath, []byte(content.String()), 0644); err != nil {
		t.Fatalf("failed to create test log file: %v", err)
	}

	tests := []struct {
		name     string
		maxLines int
		expected []string
	}{
		{
			name:     "read all (0)",
			maxLines: 0,
			expected: expectedAll,
		},
		{
			name:     "read all (negative)",
			maxLines: -1,
			expected: expectedAll,
		},
		{
			name:     "read partial (5)",
			maxLines: 5,
			expected: expectedAll[5:],
		},
		{
			name:     "read exactly all (10)",
			maxLines: 10,
			expected: expectedAll,
		},
		{
			name:     "read more than exists (20)",
			maxLines: 20,
			expected: expectedAll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Read(logPath, tt.maxLines)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Read() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRead_MissingFile(t *testing.T) {
	lines, err := Read(filepath.Join(t.TempDir(), "absent.log"), 10)
	if err != nil {
		t.Fatalf("Read() error = %v, want nil", err)
	}
	if lines != nil {
		t.Fatalf("Read() = %v, want nil", lines)
	}
}

func TestParse(t *testing.T) {
	line := `time="2026-10-17 09:41:07" level=warning msg="request failed: status 500" component=client path=/api/todos/`
	entry := Parse(line)

	if !entry.HasLevel() || entry.Level != log.WarnLevel {
		t.Fatalf("Level = %v, want warning", entry.Level)
	}
	if entry.Message != "request failed: status 500" {
		t.Fatalf("Message = %q", entry.Message)
	}
	want := time.Date(2026, 10, 17, 9, 41, 7, 0, time.Local)
	if !entry.Time.Equal(want) {
		t.Fatalf("Time = %v, want %v", entry.Time, want)
	}
	if got := entry.FieldString(); got != "component=client path=/api/todos/" {
		t.Fatalf("FieldString() = %q", got)
	}
	if entry.Raw != line {
		t.Fatalf("Raw not preserved")
	}
}

func TestParse_EscapedQuotes(t *testing.T) {
	entry := Parse(`level=error msg="bad \"json\" body" error="decode response: EOF"`)
	if entry.Message != `bad "json" body` {
		t.Fatalf("Message = %q", entry.Message)
	}
	if entry.Fields["error"] != "decode response: EOF" {
		t.Fatalf("error field = %q", entry.Fields["error"])
	}
}

func TestParse_PlainLine(t *testing.T) {
	entry := Parse("panic: runtime error: index out of range")
	if entry.HasLevel() {
		t.Fatalf("plain line reported level %v", entry.Level)
	}
	if entry.Message != "panic: runtime error: index out of range" {
		t.Fatalf("Message = %q", entry.Message)
	}
}

func TestFilter(t *testing.T) {
	lines := []string{
		`level=debug msg="renewal started"`,
		`level=info msg="item created"`,
		`level=error msg="request failed"`,
		`goroutine 1 [running]:`,
		`level=debug msg="tick"`,
		`  continuation of debug`,
	}

	got := Filter(lines, log.InfoLevel)
	var msgs []string
	for _, e := range got {
		msgs = append(msgs, e.Message)
	}
	want := []string{"item created", "request failed", "goroutine 1 [running]:"}
	if !reflect.DeepEqual(msgs, want) {
		t.Fatalf("Filter() messages = %q, want %q", msgs, want)
	}

	if all := Filter(lines, log.DebugLevel); len(all) != len(lines) {
		t.Fatalf("Filter(debug) kept %d lines, want %d", len(all), len(lines))
	}
}

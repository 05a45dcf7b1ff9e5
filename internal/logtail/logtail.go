package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line. A missing file yields no lines.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Entry is one line written by the logrus text formatter.
type Entry struct {
	Time    time.Time
	Level   log.Level
	Message string
	Fields  map[string]string
	Raw     string
}

// HasLevel reports whether the line carried a recognised level.
func (e Entry) HasLevel() bool {
	return e.Level != levelUnknown
}

// FieldString renders the extra fields sorted by key, e.g. "component=list id=7".
func (e Entry) FieldString() string {
	if len(e.Fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+e.Fields[k])
	}
	return strings.Join(parts, " ")
}

// levelUnknown marks lines that are not logrus key=value output.
const levelUnknown = log.Level(^uint32(0))

const timeLayout = "2006-01-02 15:04:05"

// Parse splits a logrus text line into its parts. Lines that are not
// key=value output come back with only Raw and Message set.
func Parse(line string) Entry {
	entry := Entry{Raw: line, Level: levelUnknown}
	pairs, ok := splitPairs(line)
	if !ok {
		entry.Message = line
		return entry
	}
	for _, p := range pairs {
		switch p.key {
		case "time":
			if ts, err := time.ParseInLocation(timeLayout, p.value, time.Local); err == nil {
				entry.Time = ts
			} else if ts, err := time.Parse(time.RFC3339, p.value); err == nil {
				entry.Time = ts
			}
		case "level":
			if lvl, err := log.ParseLevel(p.value); err == nil {
				entry.Level = lvl
			}
		case "msg":
			entry.Message = p.value
		default:
			if entry.Fields == nil {
				entry.Fields = make(map[string]string)
			}
			entry.Fields[p.key] = p.value
		}
	}
	return entry
}

// Filter keeps entries at or above min severity. Lines without a level
// follow the entry before them, so multi-line messages stay intact.
func Filter(lines []string, min log.Level) []Entry {
	out := make([]Entry, 0, len(lines))
	keep := true
	for _, line := range lines {
		entry := Parse(line)
		if entry.HasLevel() {
			keep = entry.Level <= min
		}
		if keep {
			out = append(out, entry)
		}
	}
	return out
}

type pair struct {
	key   string
	value string
}

func splitPairs(line string) ([]pair, bool) {
	var pairs []pair
	rest := strings.TrimSpace(line)
	for rest != "" {
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 || strings.ContainsAny(rest[:eq], " \t\"") {
			return nil, false
		}
		key := rest[:eq]
		rest = rest[eq+1:]

		var value string
		if strings.HasPrefix(rest, `"`) {
			end := closingQuote(rest)
			if end < 0 {
				return nil, false
			}
			unquoted, err := strconv.Unquote(rest[:end+1])
			if err != nil {
				return nil, false
			}
			value = unquoted
			rest = rest[end+1:]
		} else {
			sp := strings.IndexByte(rest, ' ')
			if sp < 0 {
				sp = len(rest)
			}
			value = rest[:sp]
			rest = rest[sp:]
		}
		pairs = append(pairs, pair{key: key, value: value})
		rest = strings.TrimLeft(rest, " ")
	}
	return pairs, len(pairs) > 0
}

// closingQuote returns the index of the quote ending the string that starts
// at s[0], honouring backslash escapes.
func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

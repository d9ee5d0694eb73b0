package activity

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const lineSeparator = " - "

var (
	lineEscaper   = strings.NewReplacer(`\`, `\\`, "\n", `\n`)
	lineUnescaper = strings.NewReplacer(`\\`, `\`, `\n`, "\n")
)

// FileMirror appends entries to a line-oriented file, one entry per line:
//
//	2026-01-02T15:04:05.123456789Z - text
//
// Backslashes and newlines inside text are escaped so every entry stays on a
// single line.
type FileMirror struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

// OpenFileMirror opens (or creates) the mirror file in append mode.
func OpenFileMirror(path string) (*FileMirror, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &FileMirror{path: path, f: f}, nil
}

// Path returns the backing file path.
func (m *FileMirror) Path() string { return m.path }

func (m *FileMirror) Append(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.f == nil {
		return errors.New("log file closed")
	}
	_, err := m.f.WriteString(FormatLine(e) + "\n")
	return err
}

func (m *FileMirror) Recent(n int) ([]Entry, error) {
	return ReadRecent(m.path, n)
}

func (m *FileMirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.f == nil {
		return nil
	}
	err := m.f.Close()
	m.f = nil
	return err
}

// FormatLine renders an entry in the mirror line format.
func FormatLine(e Entry) string {
	return e.Timestamp.UTC().Format(time.RFC3339Nano) + lineSeparator + lineEscaper.Replace(e.Text)
}

// ParseLine parses a mirror line. A line without a parseable timestamp prefix
// is returned whole with a zero timestamp and ok=false.
func ParseLine(line string) (Entry, bool) {
	prefix, rest, found := strings.Cut(line, lineSeparator)
	if found {
		if ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(prefix)); err == nil {
			return Entry{Text: lineUnescaper.Replace(rest), Timestamp: ts}, true
		}
	}
	return Entry{Text: line}, false
}

// ReadRecent reads a mirror file and returns the n most recent entries sorted
// newest-first. Unparseable lines carry the zero time and sort last, most
// recently written first. A missing file yields no entries.
func ReadRecent(path string, n int) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		e, _ := ParseLine(line)
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	// Reverse first so equal timestamps keep newest-written first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

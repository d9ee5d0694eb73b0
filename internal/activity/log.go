// Package activity keeps the bounded, human-readable event trail shared by the
// terminal UI and the REST API.
package activity

import (
	"strings"
	"sync"
	"time"
)

// Capacities of the two views kept over the event stream.
const (
	DisplayCapacity = 10
	TrailCapacity   = 50
)

// Entry is a single logged event. Entries are never mutated after creation.
type Entry struct {
	Text      string    `json:"log"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is an append-only ring that evicts its oldest entry once full.
type Log struct {
	mu       sync.RWMutex
	capacity int
	entries  []Entry
}

// NewLog creates a log holding at most capacity entries.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = 1
	}
	return &Log{
		capacity: capacity,
		entries:  make([]Entry, 0, capacity),
	}
}

// Capacity returns the configured bound.
func (l *Log) Capacity() int { return l.capacity }

// Append adds text stamped with the current time.
func (l *Log) Append(text string) Entry {
	e := Entry{Text: text, Timestamp: time.Now()}
	l.push(e)
	return e
}

func (l *Log) push(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == l.capacity {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
	}
	l.entries = append(l.entries, e)
}

// List returns the entries oldest-to-newest.
func (l *Log) List() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Newest returns the entries newest-first.
func (l *Log) Newest() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, 0, len(l.entries))
	for i := len(l.entries) - 1; i >= 0; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Render flattens multi-line entries and returns exactly availableLines lines:
// the most recent ones, padded with blank lines when the log is short.
func (l *Log) Render(availableLines int) []string {
	if availableLines <= 0 {
		return nil
	}
	var flat []string
	for _, e := range l.List() {
		flat = append(flat, strings.Split(e.Text, "\n")...)
	}
	if len(flat) > availableLines {
		flat = flat[len(flat)-availableLines:]
	}
	out := make([]string, availableLines)
	copy(out, flat)
	return out
}

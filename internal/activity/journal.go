package activity

import (
	"fmt"
	"log/slog"
	"sync"
)

// Mirror persists entries outside the process so another process (or the REST
// API) can read the trail back.
type Mirror interface {
	Append(e Entry) error
	// Recent returns at most n entries sorted newest-first.
	Recent(n int) ([]Entry, error)
	Close() error
}

// Journal is the single activity context handed to every component. Each added
// event lands in the display buffer, the trail and the optional mirror.
type Journal struct {
	display *Log
	trail   *Log
	mirror  Mirror

	mu   sync.RWMutex
	subs []func(Entry)

	// seqMu keeps seq in step with the trail.
	seqMu sync.Mutex
	seq   uint64
}

// NewJournal creates a journal with the default view capacities. mirror may be nil.
func NewJournal(mirror Mirror) *Journal {
	return &Journal{
		display: NewLog(DisplayCapacity),
		trail:   NewLog(TrailCapacity),
		mirror:  mirror,
	}
}

// Add records one event.
func (j *Journal) Add(text string) Entry {
	j.seqMu.Lock()
	e := j.trail.Append(text)
	j.seq++
	j.seqMu.Unlock()
	j.display.push(e)
	if j.mirror != nil {
		if err := j.mirror.Append(e); err != nil {
			slog.Warn("Activity mirror write failed", "error", err)
		}
	}
	j.mu.RLock()
	subs := j.subs
	j.mu.RUnlock()
	for _, fn := range subs {
		fn(e)
	}
	return e
}

// Addf records a formatted event.
func (j *Journal) Addf(format string, args ...any) Entry {
	return j.Add(fmt.Sprintf(format, args...))
}

// Subscribe registers a callback invoked for every new entry.
func (j *Journal) Subscribe(fn func(Entry)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.subs = append(j.subs, fn)
}

// Mark returns a position in the event stream for a later Since.
func (j *Journal) Mark() uint64 {
	j.seqMu.Lock()
	defer j.seqMu.Unlock()
	return j.seq
}

// Since returns the entries added after mark, oldest-first. Only entries still
// held by the trail are returned.
func (j *Journal) Since(mark uint64) []Entry {
	j.seqMu.Lock()
	defer j.seqMu.Unlock()
	if j.seq <= mark {
		return []Entry{}
	}
	all := j.trail.List()
	if n := j.seq - mark; n < uint64(len(all)) {
		all = all[len(all)-int(n):]
	}
	return all
}

// Display returns the short buffer used for terminal redraws.
func (j *Journal) Display() *Log { return j.display }

// Trail returns the longer in-memory trail.
func (j *Journal) Trail() *Log { return j.trail }

// Recent returns up to n entries newest-first, preferring the persisted mirror
// so entries written by other processes are included.
func (j *Journal) Recent(n int) ([]Entry, error) {
	if j.mirror == nil {
		out := j.trail.Newest()
		if len(out) > n {
			out = out[:n]
		}
		return out, nil
	}
	return j.mirror.Recent(n)
}

// Close releases the mirror.
func (j *Journal) Close() error {
	if j.mirror == nil {
		return nil
	}
	return j.mirror.Close()
}

package activity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLogEvictsOldestFirst(t *testing.T) {
	for _, capacity := range []int{1, 3, DisplayCapacity, TrailCapacity} {
		l := NewLog(capacity)
		for i := 0; i <= capacity; i++ {
			l.Append(fmt.Sprintf("e%d", i))
			if l.Len() > capacity {
				t.Fatalf("cap %d: len %d exceeds capacity", capacity, l.Len())
			}
		}
		got := l.List()
		if len(got) != capacity {
			t.Fatalf("cap %d: expected %d entries, got %d", capacity, capacity, len(got))
		}
		if got[0].Text == "e0" {
			t.Fatalf("cap %d: first entry should have been evicted", capacity)
		}
		for i, e := range got {
			if want := fmt.Sprintf("e%d", i+1); e.Text != want {
				t.Fatalf("cap %d: entry %d = %q, want %q", capacity, i, e.Text, want)
			}
		}
	}
}

func TestLogNewestIsReversed(t *testing.T) {
	l := NewLog(5)
	l.Append("a")
	l.Append("b")
	l.Append("c")
	got := l.Newest()
	if got[0].Text != "c" || got[2].Text != "a" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestLogRenderFlattensAndPads(t *testing.T) {
	l := NewLog(10)
	l.Append("one")
	l.Append("two\nthree")

	got := l.Render(5)
	want := []string{"one", "two", "three", "", ""}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("render = %q, want %q", got, want)
	}

	got = l.Render(2)
	if strings.Join(got, "|") != "two|three" {
		t.Fatalf("trimmed render = %q", got)
	}
	if l.Render(0) != nil {
		t.Fatal("expected nil render for zero lines")
	}
}

func TestJournalFeedsBothViewsAndSubscribers(t *testing.T) {
	j := NewJournal(nil)
	var seen []string
	j.Subscribe(func(e Entry) { seen = append(seen, e.Text) })

	for i := 0; i < 60; i++ {
		j.Addf("event %d", i)
	}
	if j.Display().Len() != DisplayCapacity {
		t.Fatalf("display len = %d", j.Display().Len())
	}
	if j.Trail().Len() != TrailCapacity {
		t.Fatalf("trail len = %d", j.Trail().Len())
	}
	if len(seen) != 60 {
		t.Fatalf("subscriber saw %d events", len(seen))
	}
	recent, err := j.Recent(3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 3 || recent[0].Text != "event 59" {
		t.Fatalf("unexpected recent: %+v", recent)
	}
}

func TestFileMirrorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "console.log")
	m, err := OpenFileMirror(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	j := NewJournal(m)
	texts := []string{
		"first",
		"multi\nline",
		`C:\new\dir`,
		`trailing \`,
		"literal \\n then real\n",
	}
	for _, text := range texts {
		j.Add(text)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := ReadRecent(path, 50)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(texts) {
		t.Fatalf("expected %d entries, got %d", len(texts), len(got))
	}
	for i, text := range texts {
		if e := got[len(texts)-1-i]; e.Text != text {
			t.Fatalf("entry %d: got %q, want %q", i, e.Text, text)
		}
	}
}

func TestFormatLineEscapesBackslashes(t *testing.T) {
	in := Entry{Text: `C:\new\dir`, Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	line := FormatLine(in)
	if strings.Contains(line, "\n") || !strings.HasSuffix(line, ` - C:\\new\\dir`) {
		t.Fatalf("unexpected line %q", line)
	}
	out, ok := ParseLine(line)
	if !ok || out.Text != in.Text || !out.Timestamp.Equal(in.Timestamp) {
		t.Fatalf("round trip changed entry: %+v -> %q -> %+v", in, line, out)
	}
}

func TestReadRecentSortsInvalidTimestampsLast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	lines := []string{
		FormatLine(Entry{Text: "old", Timestamp: base}),
		"garbage without timestamp",
		FormatLine(Entry{Text: "new", Timestamp: base.Add(time.Minute)}),
		"",
		"not-a-date - still garbage",
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadRecent(path, 50)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	texts := make([]string, 0, len(got))
	for _, e := range got {
		texts = append(texts, e.Text)
	}
	want := "new|old|not-a-date - still garbage|garbage without timestamp"
	if strings.Join(texts, "|") != want {
		t.Fatalf("order = %q, want %q", strings.Join(texts, "|"), want)
	}
	if !got[2].Timestamp.IsZero() {
		t.Fatal("expected zero timestamp for unparseable line")
	}

	limited, _ := ReadRecent(path, 1)
	if len(limited) != 1 || limited[0].Text != "new" {
		t.Fatalf("unexpected limited read: %+v", limited)
	}
}

func TestReadRecentMissingFile(t *testing.T) {
	got, err := ReadRecent(filepath.Join(t.TempDir(), "nope.log"), 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no entries, got %d", len(got))
	}
}

func TestSQLiteMirrorRecent(t *testing.T) {
	m, err := OpenSQLiteMirror(filepath.Join(t.TempDir(), "activity.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer m.Close()

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := m.Append(Entry{Text: fmt.Sprintf("e%d", i), Timestamp: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := m.Recent(3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 || got[0].Text != "e4" || got[2].Text != "e2" {
		t.Fatalf("unexpected rows: %+v", got)
	}
	if !got[0].Timestamp.Equal(base.Add(4 * time.Second)) {
		t.Fatalf("timestamp not preserved: %v", got[0].Timestamp)
	}
}

func TestJournalSince(t *testing.T) {
	j := NewJournal(nil)
	j.Add("before")
	mark := j.Mark()
	if got := j.Since(mark); len(got) != 0 {
		t.Fatalf("expected nothing after a fresh mark, got %+v", got)
	}
	j.Add("one")
	j.Add("two")
	got := j.Since(mark)
	if len(got) != 2 || got[0].Text != "one" || got[1].Text != "two" {
		t.Fatalf("unexpected entries %+v", got)
	}

	mark = j.Mark()
	for i := 0; i < TrailCapacity+5; i++ {
		j.Addf("bulk %d", i)
	}
	got = j.Since(mark)
	if len(got) != TrailCapacity || got[len(got)-1].Text != fmt.Sprintf("bulk %d", TrailCapacity+4) {
		t.Fatalf("expected the trail tail, got %d entries", len(got))
	}
}

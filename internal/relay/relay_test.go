package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iXty9/relaybot/internal/activity"
	"github.com/iXty9/relaybot/internal/chat"
)

func sampleMessage() chat.InboundMessage {
	return chat.InboundMessage{
		ID:          "m1",
		Content:     "hi",
		AuthorID:    "u1",
		AuthorName:  "alice",
		ChannelID:   "c1",
		ChannelName: "general",
		GuildID:     "g1",
		GuildName:   "guild",
		Timestamp:   time.Unix(1700000000, 0),
	}
}

func countLines(j *activity.Journal, prefix string) int {
	n := 0
	for _, e := range j.Trail().List() {
		if strings.HasPrefix(e.Text, prefix) {
			n++
		}
	}
	return n
}

type recordingPublisher struct {
	mu       sync.Mutex
	payloads []Payload
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, pl Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, pl)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads)
}

func (p *recordingPublisher) Close() error { return nil }

func TestRelayWithoutTargetLogsOnce(t *testing.T) {
	j := activity.NewJournal(nil)
	pub := &recordingPublisher{}
	r := New(Config{}, j, pub)

	out := r.Forward(t.Context(), sampleMessage())
	if !out.Skipped || out.Delivered || out.Err != nil || out.Attempts != 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if j.Trail().Len() != 1 {
		t.Fatalf("expected exactly one log line, got %d", j.Trail().Len())
	}
	if got := j.Trail().List()[0].Text; got != "Message received: hi (from alice in guild#general)" {
		t.Fatalf("unexpected log line: %q", got)
	}
	if pub.count() != 0 {
		t.Fatal("publisher must not be used without a target")
	}
}

func TestRelayPostsPayload(t *testing.T) {
	var got map[string]any
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request: %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	j := activity.NewJournal(nil)
	pub := &recordingPublisher{err: errors.New("broker down")}
	r := New(Config{URL: srv.URL}, j, pub)
	out := r.Forward(t.Context(), sampleMessage())

	if !out.Delivered || out.Status != http.StatusOK || out.Attempts != 1 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if calls != 1 {
		t.Fatalf("expected one POST, got %d", calls)
	}
	if got["content"] != "hi" || got["authorName"] != "alice" || got["channelName"] != "general" {
		t.Fatalf("unexpected payload: %v", got)
	}
	if got["threadId"] != nil {
		t.Fatalf("threadId should be null, got %v", got["threadId"])
	}
	if _, ok := got["author"]; ok {
		t.Fatal("synthetic message must not carry nested author")
	}
	if countLines(j, "Sent content: ") != 1 || countLines(j, "Received response: ") != 1 {
		t.Fatalf("expected success summary lines, got %+v", j.Trail().List())
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if pub.count() != 1 {
		t.Fatal("publisher should receive the payload even if it fails")
	}
}

func TestRelayServerErrorLogsFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	}))
	defer srv.Close()

	j := activity.NewJournal(nil)
	r := New(Config{URL: srv.URL}, j)
	out := r.Forward(t.Context(), sampleMessage())

	if out.Delivered || !errors.Is(out.Err, ErrRelay) || out.Status != 500 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if calls != 1 {
		t.Fatalf("retries are off by default, got %d calls", calls)
	}
	if countLines(j, "Error sending message to webhook") != 1 {
		t.Fatalf("expected one error line: %+v", j.Trail().List())
	}
	if countLines(j, "Sent content") != 0 || countLines(j, "Received response") != 0 {
		t.Fatal("no success lines expected")
	}
	if countLines(j, "Response status: 500") != 1 || countLines(j, `Response data: {"error":"boom"}`) != 1 {
		t.Fatalf("expected status and body lines: %+v", j.Trail().List())
	}
}

func TestRelayRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	j := activity.NewJournal(nil)
	r := New(Config{URL: srv.URL, RetryAttempts: 3, RetryBackoff: time.Millisecond}, j)
	out := r.Forward(t.Context(), sampleMessage())
	if !out.Delivered || out.Attempts != 3 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if countLines(j, "Error sending") != 0 {
		t.Fatal("intermediate failures must not be logged as errors")
	}
}

func TestRelayDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	r := New(Config{URL: srv.URL, RetryAttempts: 3, RetryBackoff: time.Millisecond}, activity.NewJournal(nil))
	out := r.Forward(t.Context(), sampleMessage())
	if out.Delivered || out.Attempts != 1 || calls != 1 {
		t.Fatalf("unexpected outcome: %+v calls=%d", out, calls)
	}
}

func TestRelayNetworkErrorWithoutStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	j := activity.NewJournal(nil)
	out := New(Config{URL: url}, j).Forward(t.Context(), sampleMessage())
	if out.Delivered || out.Status != 0 || !errors.Is(out.Err, ErrRelay) {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if countLines(j, "Error sending message to webhook") != 1 || countLines(j, "Response status") != 0 {
		t.Fatalf("unexpected log: %+v", j.Trail().List())
	}
}

func TestRelayTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	start := time.Now()
	out := New(Config{URL: srv.URL, Timeout: 50 * time.Millisecond}, activity.NewJournal(nil)).Forward(t.Context(), sampleMessage())
	if out.Delivered || out.Err == nil {
		t.Fatalf("expected timeout failure: %+v", out)
	}
	if time.Since(start) > time.Second {
		t.Fatal("timeout did not bound the request")
	}
}

func TestTargetForDirectMessages(t *testing.T) {
	r := New(Config{URL: "http://example.test/hook", DMURL: "http://example.test/dm"}, activity.NewJournal(nil))
	dm := sampleMessage()
	dm.GuildID, dm.GuildName = "", ""
	if got := r.TargetFor(dm); got != "http://example.test/dm" {
		t.Fatalf("dm target = %s", got)
	}
	if got := r.TargetFor(sampleMessage()); got != "http://example.test/hook" {
		t.Fatalf("guild target = %s", got)
	}

	noDM := New(Config{URL: "http://example.test/hook"}, activity.NewJournal(nil))
	if got := noDM.TargetFor(dm); got != "http://example.test/hook" {
		t.Fatalf("fallback target = %s", got)
	}
}

func TestCheckTargets(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	r := New(Config{URL: up.URL, DMURL: down.URL}, activity.NewJournal(nil))
	got := r.CheckTargets(t.Context())
	if !got["regular"] || got["dm"] {
		t.Fatalf("unexpected probe result: %v", got)
	}
	if New(Config{}, activity.NewJournal(nil)).CheckTargets(t.Context())["regular"] {
		t.Fatal("unconfigured target must be offline")
	}
}

func TestBuildPayloadWithDetail(t *testing.T) {
	msg := sampleMessage()
	msg.ThreadID, msg.ThreadName = "t1", "topic"
	edited := time.Unix(1700000100, 0)
	msg.Detail = &chat.MessageDetail{
		Author:          chat.AuthorDetail{ID: "u1", Username: "alice"},
		ChannelType:     "0",
		EditedTimestamp: &edited,
		MentionRoles:    []chat.RoleMention{{ID: "r1", Name: "mods"}},
	}

	p := BuildPayload(msg)
	if p.TraceID == "" {
		t.Fatal("expected trace id")
	}
	if p.Author == nil || p.Author.Username != "alice" {
		t.Fatalf("missing nested author: %+v", p.Author)
	}
	if p.Channel == nil || p.Channel.Name != "general" || p.Guild == nil || p.Guild.ID != "g1" {
		t.Fatalf("missing nested channel/guild: %+v %+v", p.Channel, p.Guild)
	}
	if p.ThreadID == nil || *p.ThreadID != "t1" {
		t.Fatal("thread id not set")
	}
	if p.EditedTimestamp == nil || *p.EditedTimestamp != edited.UnixMilli() {
		t.Fatal("edited timestamp not set")
	}
	if len(p.Mentions.Roles) != 1 || p.Embeds == nil {
		t.Fatalf("unexpected mentions/embeds: %+v %+v", p.Mentions, p.Embeds)
	}

	blob, _ := json.Marshal(p)
	if !strings.Contains(string(blob), `"embeds":[]`) {
		t.Fatalf("embeds should serialize as an empty list: %s", blob)
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	calls := 0
	n, err := withRetry(ctx, 5, time.Hour, func(bool) (bool, error) {
		calls++
		cancel()
		return true, errors.New("transient")
	})
	if err == nil || n != 1 || calls != 1 {
		t.Fatalf("expected single attempt, got n=%d calls=%d err=%v", n, calls, err)
	}
}

// blockingPublisher stands in for a broker that accepts connections and never
// answers.
type blockingPublisher struct {
	deadlineSet atomic.Bool
	done        chan struct{}
}

func (p *blockingPublisher) Publish(ctx context.Context, _ Payload) error {
	if _, ok := ctx.Deadline(); ok {
		p.deadlineSet.Store(true)
	}
	<-ctx.Done()
	close(p.done)
	return ctx.Err()
}

func (p *blockingPublisher) Close() error { return nil }

func TestRelayDoesNotWaitForHungPublisher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	pub := &blockingPublisher{done: make(chan struct{})}
	r := New(Config{URL: srv.URL, Timeout: 500 * time.Millisecond}, activity.NewJournal(nil), pub)

	start := time.Now()
	out := r.Forward(t.Context(), sampleMessage())
	if !out.Delivered {
		t.Fatalf("expected delivery, got %+v", out)
	}
	if took := time.Since(start); took > 400*time.Millisecond {
		t.Fatalf("delivery waited on the publisher: %s", took)
	}

	select {
	case <-pub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish was not bounded by the webhook timeout")
	}
	if !pub.deadlineSet.Load() {
		t.Fatal("publish context should carry a deadline")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestRelayCloseIsIdempotent(t *testing.T) {
	r := New(Config{URL: "http://127.0.0.1:1"}, activity.NewJournal(nil), &recordingPublisher{})
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestRelaySkipsRetryAfterOnFinalAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	r := New(Config{URL: srv.URL}, activity.NewJournal(nil))
	start := time.Now()
	out := r.Forward(t.Context(), sampleMessage())
	if out.Delivered || out.Status != http.StatusTooManyRequests || calls != 1 {
		t.Fatalf("unexpected outcome: %+v calls=%d", out, calls)
	}
	if took := time.Since(start); took > time.Second {
		t.Fatalf("slept for Retry-After with no retry left: %s", took)
	}
}

// Package relay forwards inbound chat messages to configured webhook targets.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/iXty9/relaybot/internal/activity"
	"github.com/iXty9/relaybot/internal/chat"
)

// ErrRelay marks a failed webhook delivery.
var ErrRelay = errors.New("relay failed")

const (
	defaultTimeout = 10 * time.Second
	summaryLimit   = 500
	maxRetryAfter  = 5 * time.Second
	fanoutBuffer   = 100
)

// Config selects targets and delivery behaviour.
type Config struct {
	URL           string
	DMURL         string
	Timeout       time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
}

// Outcome describes one relay attempt.
type Outcome struct {
	Target    string
	Delivered bool
	// Skipped is set when no target was configured.
	Skipped  bool
	Status   int
	Attempts int
	Err      error
}

// Publisher receives a copy of every relayed payload. Publish runs off the
// delivery path with a deadline of one webhook timeout.
type Publisher interface {
	Publish(ctx context.Context, p Payload) error
	Close() error
}

// Relay posts inbound messages to webhook targets and records every outcome in
// the activity journal.
type Relay struct {
	cfg        Config
	client     *http.Client
	journal    *activity.Journal
	publishers []Publisher

	mu         sync.Mutex
	closed     bool
	fanout     chan Payload
	fanoutDone chan struct{}
}

// New creates a relay. The HTTP client timeout bounds each attempt.
func New(cfg Config, journal *activity.Journal, publishers ...Publisher) *Relay {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	r := &Relay{
		cfg:        cfg,
		client:     &http.Client{Timeout: cfg.Timeout},
		journal:    journal,
		publishers: publishers,
	}
	if len(publishers) > 0 {
		r.fanout = make(chan Payload, fanoutBuffer)
		r.fanoutDone = make(chan struct{})
		go r.runFanout()
	}
	return r
}

// TargetFor picks the DM webhook for direct messages when one is configured.
func (r *Relay) TargetFor(msg chat.InboundMessage) string {
	if msg.IsDirect() && strings.TrimSpace(r.cfg.DMURL) != "" {
		return strings.TrimSpace(r.cfg.DMURL)
	}
	return strings.TrimSpace(r.cfg.URL)
}

// Forward relays msg to its configured target.
func (r *Relay) Forward(ctx context.Context, msg chat.InboundMessage) Outcome {
	return r.Relay(ctx, msg, r.TargetFor(msg))
}

// Relay posts msg to target. It never panics past its boundary and reports
// failures through the returned Outcome.
func (r *Relay) Relay(ctx context.Context, msg chat.InboundMessage, target string) (out Outcome) {
	out.Target = strings.TrimSpace(target)
	defer func() {
		if rec := recover(); rec != nil {
			out.Delivered = false
			out.Err = fmt.Errorf("%w: panic: %v", ErrRelay, rec)
			r.journal.Add("Error sending message to webhook: " + out.Err.Error())
		}
	}()

	if out.Target == "" {
		out.Skipped = true
		r.journal.Add("Message received: " + describe(msg))
		return out
	}

	payload := BuildPayload(msg)
	body, err := json.Marshal(payload)
	if err != nil {
		out.Err = fmt.Errorf("%w: encode payload: %v", ErrRelay, err)
		r.journal.Add("Error sending message to webhook: " + err.Error())
		return out
	}

	var (
		respBody []byte
		status   int
	)
	attempts, err := withRetry(ctx, r.cfg.RetryAttempts, r.cfg.RetryBackoff, func(final bool) (bool, error) {
		respBody, status = nil, 0
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, out.Target, bytes.NewReader(body))
		if err != nil {
			return false, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Trace-Id", payload.TraceID)
		resp, err := r.client.Do(req)
		if err != nil {
			return ctx.Err() == nil, err
		}
		defer resp.Body.Close()
		respBody, _ = io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		status = resp.StatusCode
		if status >= 200 && status < 300 {
			return false, nil
		}
		retryable := retryableStatus(status)
		if d := parseRetryAfter(resp.Header.Get("Retry-After")); retryable && !final && d > 0 {
			sleepCtx(ctx, min(d, maxRetryAfter))
		}
		return retryable, fmt.Errorf("webhook responded with status %d", status)
	})
	out.Attempts, out.Status = attempts, status
	r.publish(payload)

	if err != nil {
		out.Err = fmt.Errorf("%w: %v", ErrRelay, err)
		slog.Debug("Webhook delivery failed", "target", out.Target, "attempts", attempts, "error", err)
		r.journal.Add("Error sending message to webhook: " + err.Error())
		if status != 0 {
			r.journal.Addf("Response status: %d", status)
			r.journal.Add("Response data: " + truncate(string(respBody), summaryLimit))
		}
		return out
	}

	out.Delivered = true
	r.journal.Add("Sent content: " + truncate(string(body), summaryLimit))
	r.journal.Add("Received response: " + truncate(string(respBody), summaryLimit))
	return out
}

// CheckTargets probes the regular and DM webhooks. Any response below 500
// counts as online; unconfigured targets are offline.
func (r *Relay) CheckTargets(ctx context.Context) map[string]bool {
	return map[string]bool{
		"regular": r.probe(ctx, r.cfg.URL),
		"dm":      r.probe(ctx, r.cfg.DMURL),
	}
}

// Close drains queued fan-out payloads for up to one webhook timeout and
// releases publishers.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	if r.fanout != nil {
		close(r.fanout)
	}
	r.mu.Unlock()
	if r.fanoutDone != nil {
		select {
		case <-r.fanoutDone:
		case <-time.After(r.cfg.Timeout):
			slog.Warn("Relay fan-out did not drain before close")
		}
	}

	var errs []error
	for _, p := range r.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Relay) probe(ctx context.Context, target string) bool {
	target = strings.TrimSpace(target)
	if target == "" {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// publish queues p for the fan-out worker. A full queue drops the payload.
func (r *Relay) publish(p Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fanout == nil || r.closed {
		return
	}
	select {
	case r.fanout <- p:
	default:
		slog.Warn("Relay fan-out queue full, dropping payload", "trace_id", p.TraceID)
	}
}

func (r *Relay) runFanout() {
	defer close(r.fanoutDone)
	for p := range r.fanout {
		for _, pub := range r.publishers {
			ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
			if err := pub.Publish(ctx, p); err != nil {
				slog.Warn("Relay publish failed", "trace_id", p.TraceID, "error", err)
			}
			cancel()
		}
	}
}

func describe(msg chat.InboundMessage) string {
	where := "#" + msg.ChannelName
	if msg.GuildName != "" {
		where = msg.GuildName + where
	} else if msg.IsDirect() {
		where = "DM"
	}
	if msg.ThreadName != "" {
		where += " (thread: " + msg.ThreadName + ")"
	}
	return fmt.Sprintf("%s (from %s in %s)", msg.Content, msg.AuthorName, where)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "…"
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Package bot implements the operation set shared by every front-end: presence
// changes, message sends, channel listing, statistics and inbound handling.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/iXty9/relaybot/internal/activity"
	"github.com/iXty9/relaybot/internal/bus"
	"github.com/iXty9/relaybot/internal/chat"
	"github.com/iXty9/relaybot/internal/relay"
)

// Forwarder relays inbound messages to webhook targets.
type Forwarder interface {
	Forward(ctx context.Context, msg chat.InboundMessage) relay.Outcome
}

// EventPublisher pushes realtime notifications.
type EventPublisher interface {
	PublishEvent(typ string, data any) bool
}

// Config wires optional collaborators into a Controller.
type Config struct {
	// HealthURL is probed by CheckHealth, normally the API's /healthz.
	HealthURL string
	Relay     Forwarder
	Events    EventPublisher
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Controller is the bot control surface.
type Controller struct {
	adapter chat.Adapter
	journal *activity.Journal
	relay   Forwarder
	events  EventPublisher
	stats   *stats

	healthURL string
	client    *http.Client

	mu       sync.RWMutex
	presence string
	active   *chat.Channel
}

// New creates a controller over adapter.
func New(adapter chat.Adapter, journal *activity.Journal, cfg Config) *Controller {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		adapter:   adapter,
		journal:   journal,
		relay:     cfg.Relay,
		events:    cfg.Events,
		stats:     newStats(now),
		healthURL: strings.TrimSpace(cfg.HealthURL),
		client:    &http.Client{Timeout: 3 * time.Second},
		presence:  "online",
	}
}

// ChangeStatus sets the bot presence. Values outside chat.ValidStatuses fail
// with ErrInvalidArgument without reaching the adapter.
func (c *Controller) ChangeStatus(ctx context.Context, status string) (string, error) {
	status = strings.TrimSpace(status)
	if !chat.IsValidStatus(status) {
		err := fmt.Errorf("%w: status %q; valid options are: %s", ErrInvalidArgument, status, strings.Join(chat.ValidStatuses, ", "))
		c.journal.Add("Invalid status. Valid options are: " + strings.Join(chat.ValidStatuses, ", "))
		return "", err
	}
	if err := c.adapter.SetPresence(ctx, status); err != nil {
		wrapped := fmt.Errorf("change status: %w: %v", ErrAdapter, err)
		c.journal.Add("Error changing status: " + err.Error())
		return "", wrapped
	}
	c.mu.Lock()
	c.presence = status
	c.mu.Unlock()
	c.stats.command()
	c.publish(bus.EventStatus, map[string]string{"status": status})

	msg := "Status changed to " + status
	c.journal.Add(msg)
	return msg, nil
}

// Presence returns the last presence set through ChangeStatus.
func (c *Controller) Presence() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.presence
}

// SendMessage posts text to a channel, or to a thread inside it when threadID
// is set.
func (c *Controller) SendMessage(ctx context.Context, text, channelID, threadID string) (string, error) {
	result, err := c.sendMessage(ctx, text, channelID, threadID)
	if err != nil {
		c.journal.Add("Error sending message: " + err.Error())
		return "", err
	}
	c.journal.Add(result)
	return result, nil
}

func (c *Controller) sendMessage(ctx context.Context, text, channelID, threadID string) (string, error) {
	channelID, threadID = strings.TrimSpace(channelID), strings.TrimSpace(threadID)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: message is empty", ErrInvalidArgument)
	}
	if channelID == "" {
		return "", fmt.Errorf("%w: channel id is required", ErrInvalidArgument)
	}
	ch, err := c.adapter.FetchChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			return "", fmt.Errorf("%w: channel with ID %q", ErrNotFound, channelID)
		}
		return "", adapterErr("fetch channel", err)
	}

	target := ch.ID
	info := "Message sent to " + ch.Name
	if threadID != "" {
		th, err := c.adapter.FetchThread(ctx, ch.ID, threadID)
		if err != nil {
			if errors.Is(err, chat.ErrNotFound) {
				return "", fmt.Errorf("%w: thread with ID %q in channel %q", ErrNotFound, threadID, ch.Name)
			}
			return "", adapterErr("fetch thread", err)
		}
		target = th.ID
		info += " (thread: " + th.Name + ")"
	}

	if err := c.adapter.SendToTarget(ctx, target, text); err != nil {
		return "", fmt.Errorf("failed to send message: %w: %v", ErrAdapter, err)
	}
	c.stats.sent()
	c.publish(bus.EventMessage, map[string]string{
		"direction": "outbound",
		"channelId": ch.ID,
		"threadId":  threadID,
		"content":   text,
	})
	return info, nil
}

// ListChannels enumerates text and forum channels of every guild. Forum
// channels carry their active threads. Nothing is cached.
func (c *Controller) ListChannels(ctx context.Context) ([]chat.ChannelDescriptor, error) {
	guilds, err := c.adapter.ListGuilds(ctx)
	if err != nil {
		return nil, adapterErr("list guilds", err)
	}
	out := []chat.ChannelDescriptor{}
	for _, g := range guilds {
		chs, err := c.adapter.ListChannels(ctx, g.ID)
		if err != nil {
			return nil, adapterErr("list channels of "+g.Name, err)
		}
		for _, ch := range chs {
			if ch.Kind != chat.KindText && ch.Kind != chat.KindForum {
				continue
			}
			d := chat.ChannelDescriptor{
				ID:        ch.ID,
				Name:      ch.Name,
				GuildID:   g.ID,
				GuildName: g.Name,
				Kind:      ch.Kind,
			}
			if ch.Kind == chat.KindForum {
				threads, err := c.adapter.ListThreads(ctx, ch.ID)
				if err != nil {
					return nil, adapterErr("list threads of "+ch.Name, err)
				}
				d.Threads = append([]chat.ThreadDescriptor{}, threads...)
			}
			out = append(out, d)
		}
	}
	return out, nil
}

// UsageStats returns the counters with derived durations.
func (c *Controller) UsageStats() UsageStats {
	return c.stats.snapshot()
}

// Receive counts an inbound message, announces it to realtime listeners and
// relays it. Delivery failures never undo the received count.
func (c *Controller) Receive(ctx context.Context, msg chat.InboundMessage) relay.Outcome {
	c.RecordInbound(msg)
	c.publish(bus.EventMessage, map[string]any{
		"direction":   "inbound",
		"id":          msg.ID,
		"content":     msg.Content,
		"author":      msg.AuthorName,
		"channelId":   msg.ChannelID,
		"channelName": msg.ChannelName,
		"threadId":    msg.ThreadID,
		"timestamp":   msg.Timestamp.UnixMilli(),
	})
	if c.relay == nil {
		c.journal.Addf("Message received: %s (from %s)", msg.Content, msg.AuthorName)
		return relay.Outcome{Skipped: true}
	}
	return c.relay.Forward(ctx, msg)
}

// RecordInbound counts a received message.
func (c *Controller) RecordInbound(chat.InboundMessage) {
	c.stats.received()
}

// ServeInbound consumes the bus one message at a time until ctx is done.
func (c *Controller) ServeInbound(ctx context.Context, b *bus.MessageBus) error {
	for {
		msg, err := b.ConsumeInbound(ctx)
		if err != nil {
			return err
		}
		out := c.Receive(ctx, msg)
		if out.Err != nil {
			slog.Debug("Inbound relay failed", "message_id", msg.ID, "error", out.Err)
		}
	}
}

// SetActiveChannel records the externally selected channel after verifying it
// exists.
func (c *Controller) SetActiveChannel(ctx context.Context, channelID string) (chat.Channel, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return chat.Channel{}, fmt.Errorf("%w: channel id is required", ErrInvalidArgument)
	}
	ch, err := c.adapter.FetchChannel(ctx, channelID)
	if err != nil {
		return chat.Channel{}, adapterErr("set active channel", err)
	}
	c.mu.Lock()
	c.active = &ch
	c.mu.Unlock()
	c.journal.Add("Active channel set to " + ch.Name)
	return ch, nil
}

// ActiveChannel returns the externally selected channel, if any.
func (c *Controller) ActiveChannel() (chat.Channel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return chat.Channel{}, false
	}
	return *c.active, true
}

func (c *Controller) publish(typ string, data any) {
	if c.events != nil {
		c.events.PublishEvent(typ, data)
	}
}

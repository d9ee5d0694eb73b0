// Package bus provides the async message bus between the chat gateway, the
// relay worker and realtime listeners.
package bus

import (
	"context"
	"sync"
	"time"

	"github.com/iXty9/relaybot/internal/chat"
)

// Well-known event types broadcast to realtime listeners.
const (
	EventMessage = "message"
	EventStatus  = "status"
	EventLog     = "log"
)

// Event is a notification pushed to realtime listeners.
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageBus decouples the gateway from the relay and the push channel.
type MessageBus struct {
	inbound chan chat.InboundMessage
	events  chan Event
	subs    []func(Event)
	mu      sync.RWMutex
}

// NewMessageBus creates a new message bus.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound: make(chan chat.InboundMessage, 100),
		events:  make(chan Event, 100),
	}
}

// PublishInbound queues a message received from the chat platform.
func (b *MessageBus) PublishInbound(msg chat.InboundMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	b.inbound <- msg
}

// ConsumeInbound blocks until a message is available or context is cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (chat.InboundMessage, error) {
	select {
	case msg := <-b.inbound:
		return msg, nil
	case <-ctx.Done():
		return chat.InboundMessage{}, ctx.Err()
	}
}

// PublishEvent queues an event for realtime listeners. Events are dropped when
// the queue is full so a slow listener never stalls the publisher.
func (b *MessageBus) PublishEvent(typ string, data any) bool {
	ev := Event{Type: typ, Data: data, Timestamp: time.Now()}
	select {
	case b.events <- ev:
		return true
	default:
		return false
	}
}

// Subscribe registers a callback for every dispatched event.
func (b *MessageBus) Subscribe(callback func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, callback)
}

// DispatchEvents runs the event dispatcher.
// This should be run as a goroutine.
func (b *MessageBus) DispatchEvents(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-b.events:
			b.mu.RLock()
			callbacks := b.subs
			b.mu.RUnlock()

			for _, cb := range callbacks {
				cb(ev)
			}
		}
	}
}

// InboundSize returns the number of pending inbound messages.
func (b *MessageBus) InboundSize() int {
	return len(b.inbound)
}

// EventSize returns the number of pending events.
func (b *MessageBus) EventSize() int {
	return len(b.events)
}

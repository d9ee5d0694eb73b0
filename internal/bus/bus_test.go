package bus

import (
	"context"
	"testing"
	"time"

	"github.com/iXty9/relaybot/internal/chat"
)

func TestInboundPreservesOrderAndStampsTime(t *testing.T) {
	b := NewMessageBus()
	b.PublishInbound(chat.InboundMessage{ID: "1"})
	b.PublishInbound(chat.InboundMessage{ID: "2", Timestamp: time.Unix(10, 0)})

	first, err := b.ConsumeInbound(t.Context())
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if first.ID != "1" || first.Timestamp.IsZero() {
		t.Fatalf("unexpected first message: %+v", first)
	}
	second, _ := b.ConsumeInbound(t.Context())
	if second.ID != "2" || second.Timestamp.Unix() != 10 {
		t.Fatalf("unexpected second message: %+v", second)
	}
}

func TestConsumeInboundHonoursCancel(t *testing.T) {
	b := NewMessageBus()
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if _, err := b.ConsumeInbound(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

func TestDispatchEventsFansOut(t *testing.T) {
	b := NewMessageBus()
	got := make(chan Event, 2)
	b.Subscribe(func(ev Event) { got <- ev })
	b.Subscribe(func(ev Event) { got <- ev })
	go b.DispatchEvents(t.Context())

	if !b.PublishEvent(EventStatus, "idle") {
		t.Fatal("publish rejected")
	}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-got:
			if ev.Type != EventStatus || ev.Data != "idle" {
				t.Fatalf("unexpected event: %+v", ev)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("expected event delivery")
		}
	}
}

func TestPublishEventDropsWhenFull(t *testing.T) {
	b := NewMessageBus()
	for i := 0; i < cap(b.events); i++ {
		if !b.PublishEvent(EventLog, i) {
			t.Fatalf("publish %d rejected early", i)
		}
	}
	if b.PublishEvent(EventLog, "overflow") {
		t.Fatal("expected overflow to be dropped")
	}
	if b.EventSize() != cap(b.events) {
		t.Fatalf("unexpected queue size %d", b.EventSize())
	}
}

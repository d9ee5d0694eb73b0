package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iXty9/relaybot/internal/chat"
)

var errNoHistory = errors.New("adapter does not expose message history")

func (c *Controller) history() (chat.History, error) {
	h, ok := c.adapter.(chat.History)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrAdapter, errNoHistory)
	}
	return h, nil
}

// FetchMessages returns up to limit recent messages of a channel.
func (c *Controller) FetchMessages(ctx context.Context, channelID string, limit int) ([]chat.Message, error) {
	h, err := c.history()
	if err != nil {
		return nil, err
	}
	if _, err := c.adapter.FetchChannel(ctx, channelID); err != nil {
		return nil, adapterErr("fetch channel", err)
	}
	msgs, err := h.FetchMessages(ctx, channelID, limit)
	if err != nil {
		return nil, adapterErr("fetch messages", err)
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return msgs, nil
}

// DeleteMessage removes a message from a channel.
func (c *Controller) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	h, err := c.history()
	if err != nil {
		return err
	}
	if _, err := c.adapter.FetchChannel(ctx, channelID); err != nil {
		return adapterErr("fetch channel", err)
	}
	if err := h.DeleteMessage(ctx, channelID, messageID); err != nil {
		return adapterErr("delete message", err)
	}
	c.stats.command()
	c.journal.Addf("Message %s deleted", messageID)
	return nil
}

// EditMessage replaces the content of a message.
func (c *Controller) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidArgument)
	}
	h, err := c.history()
	if err != nil {
		return err
	}
	if _, err := c.adapter.FetchChannel(ctx, channelID); err != nil {
		return adapterErr("fetch channel", err)
	}
	if err := h.EditMessage(ctx, channelID, messageID, content); err != nil {
		return adapterErr("edit message", err)
	}
	c.stats.command()
	c.journal.Addf("Message %s edited", messageID)
	return nil
}

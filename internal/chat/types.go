// Package chat defines the chat-platform capability surface the bot depends on,
// together with the Discord and Slack implementations of it.
package chat

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by adapters when a channel, thread or message id
// cannot be resolved.
var ErrNotFound = errors.New("not found")

// ChannelKind distinguishes plain text channels from forum channels.
type ChannelKind string

const (
	KindText  ChannelKind = "text"
	KindForum ChannelKind = "forum"
)

// Guild is a server/workspace the bot is a member of.
type Guild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Channel is an adapter-level channel. Kind is empty for channel types the bot
// neither lists nor sends to (voice, categories, ...).
type Channel struct {
	ID        string
	Name      string
	Kind      ChannelKind
	GuildID   string
	GuildName string
}

// ThreadDescriptor names a thread inside a forum channel.
type ThreadDescriptor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChannelDescriptor is a listed channel, with threads for forum channels.
type ChannelDescriptor struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	GuildID   string             `json:"guildId"`
	GuildName string             `json:"guildName"`
	Kind      ChannelKind        `json:"type"`
	Threads   []ThreadDescriptor `json:"threads,omitempty"`
}

// IsForum reports whether the channel holds threads instead of messages.
func (c ChannelDescriptor) IsForum() bool { return c.Kind == KindForum }

// Attachment is a file attached to a message.
type Attachment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Size        int    `json:"size,omitempty"`
	URL         string `json:"url"`
	ProxyURL    string `json:"proxyURL,omitempty"`
	Height      int    `json:"height,omitempty"`
	Width       int    `json:"width,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

// Mention is a user mentioned in a message.
type Mention struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// InboundMessage is the normalized projection of a received chat message.
type InboundMessage struct {
	ID          string
	Content     string
	AuthorID    string
	AuthorName  string
	ChannelID   string
	ChannelName string
	GuildID     string
	GuildName   string
	ThreadID    string
	ThreadName  string
	Timestamp   time.Time
	Attachments []Attachment
	Mentions    []Mention

	// Detail is set when the event came from a full platform message rather
	// than a synthetic one.
	Detail *MessageDetail
}

// IsDirect reports whether the message arrived outside any guild.
func (m InboundMessage) IsDirect() bool { return m.GuildID == "" }

// MessageDetail carries the full message projection forwarded to webhooks.
type MessageDetail struct {
	Author          AuthorDetail
	ChannelType     string
	GuildIcon       string
	EditedTimestamp *time.Time
	TTS             bool
	MentionEveryone bool
	MentionRoles    []RoleMention
	MentionChannels []ChannelMention
	Embeds          []Embed
}

// AuthorDetail describes the sender of a message.
type AuthorDetail struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	AvatarURL     string `json:"avatarURL,omitempty"`
	Bot           bool   `json:"bot"`
	System        bool   `json:"system"`
}

// RoleMention is a role mentioned in a message.
type RoleMention struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Color int    `json:"color,omitempty"`
}

// ChannelMention is a channel mentioned in a message.
type ChannelMention struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Embed is a rich embed attached to a message. Nested parts are passed through
// as-is.
type Embed struct {
	Title       string `json:"title,omitempty"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	Color       int    `json:"color,omitempty"`
	Footer      any    `json:"footer,omitempty"`
	Image       any    `json:"image,omitempty"`
	Thumbnail   any    `json:"thumbnail,omitempty"`
	Video       any    `json:"video,omitempty"`
	Provider    any    `json:"provider,omitempty"`
	Author      any    `json:"author,omitempty"`
	Fields      any    `json:"fields,omitempty"`
}

// Message is a stored message returned by history queries.
type Message struct {
	ID          string       `json:"id"`
	Content     string       `json:"content"`
	Author      string       `json:"author"`
	Timestamp   int64        `json:"timestamp"`
	Attachments []Attachment `json:"attachments"`
}

// Interaction is a platform-native slash command invocation.
type Interaction struct {
	Name      string
	UserID    string
	ChannelID string
	// Respond replies in place to the invocation.
	Respond func(ctx context.Context, text string) error
}

package relay

import (
	"time"

	"github.com/google/uuid"

	"github.com/iXty9/relaybot/internal/chat"
)

// Payload is the JSON document POSTed to webhook targets.
type Payload struct {
	TraceID     string            `json:"traceId"`
	MessageID   string            `json:"messageId"`
	Content     string            `json:"content"`
	AuthorID    string            `json:"authorId"`
	AuthorName  string            `json:"authorName"`
	ChannelID   string            `json:"channelId"`
	ChannelName string            `json:"channelName"`
	GuildID     *string           `json:"guildId"`
	GuildName   *string           `json:"guildName"`
	ThreadID    *string           `json:"threadId"`
	ThreadName  *string           `json:"threadName"`
	Timestamp   int64             `json:"timestamp"`
	Attachments []chat.Attachment `json:"attachments"`
	Mentions    MentionsPayload   `json:"mentions"`

	// Present only for full platform messages.
	Author          *chat.AuthorDetail `json:"author,omitempty"`
	Channel         *ChannelPayload    `json:"channel,omitempty"`
	Guild           *GuildPayload      `json:"guild,omitempty"`
	Embeds          []chat.Embed       `json:"embeds,omitempty"`
	EditedTimestamp *int64             `json:"editedTimestamp,omitempty"`
	TTS             *bool              `json:"tts,omitempty"`
	MentionEveryone *bool              `json:"mentionEveryone,omitempty"`
}

// MentionsPayload groups mentions by kind. Roles and channels are only known
// for full platform messages.
type MentionsPayload struct {
	Users    []chat.Mention        `json:"users"`
	Roles    []chat.RoleMention    `json:"roles,omitempty"`
	Channels []chat.ChannelMention `json:"channels,omitempty"`
}

type ChannelPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type GuildPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// BuildPayload projects msg into the webhook document.
func BuildPayload(msg chat.InboundMessage) Payload {
	p := Payload{
		TraceID:     uuid.NewString(),
		MessageID:   msg.ID,
		Content:     msg.Content,
		AuthorID:    msg.AuthorID,
		AuthorName:  msg.AuthorName,
		ChannelID:   msg.ChannelID,
		ChannelName: msg.ChannelName,
		GuildID:     optional(msg.GuildID),
		GuildName:   optional(msg.GuildName),
		ThreadID:    optional(msg.ThreadID),
		ThreadName:  optional(msg.ThreadName),
		Timestamp:   millis(msg.Timestamp),
		Attachments: msg.Attachments,
		Mentions:    MentionsPayload{Users: msg.Mentions},
	}
	if p.Attachments == nil {
		p.Attachments = []chat.Attachment{}
	}
	if p.Mentions.Users == nil {
		p.Mentions.Users = []chat.Mention{}
	}

	d := msg.Detail
	if d == nil {
		return p
	}
	author := d.Author
	p.Author = &author
	p.Channel = &ChannelPayload{ID: msg.ChannelID, Name: msg.ChannelName, Type: d.ChannelType}
	if msg.GuildID != "" {
		p.Guild = &GuildPayload{ID: msg.GuildID, Name: msg.GuildName, Icon: d.GuildIcon}
	}
	p.Embeds = d.Embeds
	if p.Embeds == nil {
		p.Embeds = []chat.Embed{}
	}
	if d.EditedTimestamp != nil {
		ms := millis(*d.EditedTimestamp)
		p.EditedTimestamp = &ms
	}
	tts, everyone := d.TTS, d.MentionEveryone
	p.TTS, p.MentionEveryone = &tts, &everyone
	p.Mentions.Roles = d.MentionRoles
	p.Mentions.Channels = d.MentionChannels
	return p
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

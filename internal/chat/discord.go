package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// SlashCommands are registered globally when the Discord gateway opens.
var SlashCommands = []*discordgo.ApplicationCommand{
	{Name: "fact", Description: "Get a random fact"},
}

// DiscordGateway implements Gateway over a discordgo session.
type DiscordGateway struct {
	session *discordgo.Session
}

// NewDiscordGateway prepares a session for token without connecting.
func NewDiscordGateway(token string) (*DiscordGateway, error) {
	s, err := discordgo.New("Bot " + strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsDirectMessages
	return &DiscordGateway{session: s}, nil
}

func (g *DiscordGateway) Name() string { return "discord" }

func (g *DiscordGateway) Open(ctx context.Context, h Handlers) error {
	g.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot || h.OnMessage == nil {
			return
		}
		h.OnMessage(g.normalize(m.Message))
	})
	g.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand || h.OnInteraction == nil {
			return
		}
		// Acknowledge first; the reply is edited in once it is ready.
		if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		}); err != nil {
			slog.Warn("Discord interaction ack failed", "error", err)
			return
		}
		userID := ""
		if i.Member != nil && i.Member.User != nil {
			userID = i.Member.User.ID
		} else if i.User != nil {
			userID = i.User.ID
		}
		interaction := i.Interaction
		h.OnInteraction(Interaction{
			Name:      i.ApplicationCommandData().Name,
			UserID:    userID,
			ChannelID: i.ChannelID,
			Respond: func(_ context.Context, text string) error {
				_, err := s.InteractionResponseEdit(interaction, &discordgo.WebhookEdit{Content: &text})
				return err
			},
		})
	})

	if err := g.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	if u := g.session.State.User; u != nil {
		if _, err := g.session.ApplicationCommandBulkOverwrite(u.ID, "", SlashCommands); err != nil {
			slog.Warn("Registering slash commands failed", "error", err)
		} else {
			for _, c := range SlashCommands {
				slog.Info("Registered command", "name", c.Name, "description", c.Description)
			}
		}
	}
	return nil
}

func (g *DiscordGateway) Close() error { return g.session.Close() }

func (g *DiscordGateway) Self() string {
	if u := g.session.State.User; u != nil {
		return u.Username
	}
	return ""
}

func (g *DiscordGateway) FetchChannel(ctx context.Context, id string) (Channel, error) {
	ch, err := g.channel(ctx, id)
	if err != nil {
		return Channel{}, err
	}
	return g.toChannel(ch), nil
}

func (g *DiscordGateway) FetchThread(ctx context.Context, channelID, id string) (ThreadDescriptor, error) {
	th, err := g.channel(ctx, id)
	if err != nil {
		return ThreadDescriptor{}, err
	}
	if !th.IsThread() || th.ParentID != channelID {
		return ThreadDescriptor{}, fmt.Errorf("thread %s in channel %s: %w", id, channelID, ErrNotFound)
	}
	return ThreadDescriptor{ID: th.ID, Name: th.Name}, nil
}

func (g *DiscordGateway) ListGuilds(ctx context.Context) ([]Guild, error) {
	g.session.State.RLock()
	defer g.session.State.RUnlock()
	out := make([]Guild, 0, len(g.session.State.Guilds))
	for _, gd := range g.session.State.Guilds {
		out = append(out, Guild{ID: gd.ID, Name: gd.Name})
	}
	return out, nil
}

func (g *DiscordGateway) ListChannels(ctx context.Context, guildID string) ([]Channel, error) {
	chs, err := g.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapDiscordErr(err)
	}
	out := make([]Channel, 0, len(chs))
	for _, ch := range chs {
		out = append(out, g.toChannel(ch))
	}
	return out, nil
}

func (g *DiscordGateway) ListThreads(ctx context.Context, channelID string) ([]ThreadDescriptor, error) {
	parent, err := g.channel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	list, err := g.session.GuildThreadsActive(parent.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapDiscordErr(err)
	}
	var out []ThreadDescriptor
	for _, th := range list.Threads {
		if th.ParentID == channelID {
			out = append(out, ThreadDescriptor{ID: th.ID, Name: th.Name})
		}
	}
	return out, nil
}

func (g *DiscordGateway) SetPresence(ctx context.Context, status string) error {
	return g.session.UpdateStatusComplex(discordgo.UpdateStatusData{Status: status})
}

func (g *DiscordGateway) SendToTarget(ctx context.Context, targetID, text string) error {
	_, err := g.session.ChannelMessageSend(targetID, text, discordgo.WithContext(ctx))
	return mapDiscordErr(err)
}

func (g *DiscordGateway) FetchMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	msgs, err := g.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapDiscordErr(err)
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		author := ""
		if m.Author != nil {
			author = m.Author.Username
		}
		out = append(out, Message{
			ID:          m.ID,
			Content:     m.Content,
			Author:      author,
			Timestamp:   m.Timestamp.UnixMilli(),
			Attachments: discordAttachments(m.Attachments),
		})
	}
	return out, nil
}

func (g *DiscordGateway) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return mapDiscordErr(g.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

func (g *DiscordGateway) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	_, err := g.session.ChannelMessageEdit(channelID, messageID, content, discordgo.WithContext(ctx))
	return mapDiscordErr(err)
}

func (g *DiscordGateway) channel(ctx context.Context, id string) (*discordgo.Channel, error) {
	if ch, err := g.session.State.Channel(id); err == nil {
		return ch, nil
	}
	ch, err := g.session.Channel(id, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapDiscordErr(err)
	}
	return ch, nil
}

func (g *DiscordGateway) toChannel(ch *discordgo.Channel) Channel {
	out := Channel{
		ID:      ch.ID,
		Name:    ch.Name,
		Kind:    discordKind(ch.Type),
		GuildID: ch.GuildID,
	}
	if gd, err := g.session.State.Guild(ch.GuildID); err == nil {
		out.GuildName = gd.Name
	}
	return out
}

func (g *DiscordGateway) normalize(m *discordgo.Message) InboundMessage {
	in := InboundMessage{
		ID:          m.ID,
		Content:     m.Content,
		AuthorID:    m.Author.ID,
		AuthorName:  m.Author.Username,
		ChannelID:   m.ChannelID,
		GuildID:     m.GuildID,
		Timestamp:   m.Timestamp,
		Attachments: discordAttachments(m.Attachments),
	}
	for _, u := range m.Mentions {
		in.Mentions = append(in.Mentions, Mention{ID: u.ID, Username: u.Username})
	}

	detail := &MessageDetail{
		Author: AuthorDetail{
			ID:            m.Author.ID,
			Username:      m.Author.Username,
			Discriminator: m.Author.Discriminator,
			Avatar:        m.Author.Avatar,
			AvatarURL:     m.Author.AvatarURL(""),
			Bot:           m.Author.Bot,
			System:        m.Author.System,
		},
		EditedTimestamp: m.EditedTimestamp,
		TTS:             m.TTS,
		MentionEveryone: m.MentionEveryone,
	}
	if ch, err := g.session.State.Channel(m.ChannelID); err == nil {
		detail.ChannelType = strconv.Itoa(int(ch.Type))
		in.ChannelName = ch.Name
		if ch.IsThread() {
			in.ThreadID, in.ThreadName = ch.ID, ch.Name
			in.ChannelID = ch.ParentID
			if parent, err := g.session.State.Channel(ch.ParentID); err == nil {
				in.ChannelName = parent.Name
			}
		}
	}
	if m.GuildID != "" {
		if gd, err := g.session.State.Guild(m.GuildID); err == nil {
			in.GuildName = gd.Name
			detail.GuildIcon = gd.Icon
		}
		for _, roleID := range m.MentionRoles {
			rm := RoleMention{ID: roleID}
			if role, err := g.session.State.Role(m.GuildID, roleID); err == nil {
				rm.Name, rm.Color = role.Name, role.Color
			}
			detail.MentionRoles = append(detail.MentionRoles, rm)
		}
	}
	for _, ch := range m.MentionChannels {
		detail.MentionChannels = append(detail.MentionChannels, ChannelMention{
			ID: ch.ID, Name: ch.Name, Type: strconv.Itoa(int(ch.Type)),
		})
	}
	for _, e := range m.Embeds {
		detail.Embeds = append(detail.Embeds, Embed{
			Title:       e.Title,
			Type:        string(e.Type),
			Description: e.Description,
			URL:         e.URL,
			Timestamp:   e.Timestamp,
			Color:       e.Color,
			Footer:      e.Footer,
			Image:       e.Image,
			Thumbnail:   e.Thumbnail,
			Video:       e.Video,
			Provider:    e.Provider,
			Author:      e.Author,
			Fields:      e.Fields,
		})
	}
	in.Detail = detail
	return in
}

func discordKind(t discordgo.ChannelType) ChannelKind {
	switch t {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews:
		return KindText
	case discordgo.ChannelTypeGuildForum:
		return KindForum
	default:
		return ""
	}
}

func discordAttachments(in []*discordgo.MessageAttachment) []Attachment {
	out := make([]Attachment, 0, len(in))
	for _, a := range in {
		out = append(out, Attachment{
			ID:          a.ID,
			Name:        a.Filename,
			Size:        a.Size,
			URL:         a.URL,
			ProxyURL:    a.ProxyURL,
			Height:      a.Height,
			Width:       a.Width,
			ContentType: a.ContentType,
		})
	}
	return out
}

func mapDiscordErr(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSpace(string(rest.ResponseBody)))
	}
	return err
}

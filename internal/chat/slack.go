package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// SlackGateway implements Gateway over the Slack Web API and Socket Mode.
// Slack has no forum channels; thread targets are encoded as "<channel>:<ts>".
type SlackGateway struct {
	api    *slack.Client
	socket *socketmode.Client

	mu       sync.RWMutex
	teamID   string
	teamName string
	selfName string
	cancel   context.CancelFunc
}

// NewSlackGateway builds a gateway. appToken enables Socket Mode event delivery.
func NewSlackGateway(botToken, appToken string) (*SlackGateway, error) {
	botToken = strings.TrimSpace(botToken)
	if botToken == "" {
		return nil, errors.New("missing SLACK_BOT_TOKEN")
	}
	opts := []slack.Option{}
	if tok := strings.TrimSpace(appToken); tok != "" {
		opts = append(opts, slack.OptionAppLevelToken(tok))
	}
	g := &SlackGateway{api: slack.New(botToken, opts...)}
	if strings.TrimSpace(appToken) != "" {
		g.socket = socketmode.New(g.api)
	}
	return g, nil
}

func (g *SlackGateway) Name() string { return "slack" }

func (g *SlackGateway) Open(ctx context.Context, h Handlers) error {
	auth, err := g.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	g.mu.Lock()
	g.teamID, g.teamName, g.selfName = auth.TeamID, auth.Team, auth.User
	g.mu.Unlock()

	if g.socket == nil {
		slog.Warn("Slack socket mode disabled: no app token; inbound events will not arrive")
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	g.mu.Lock()
	g.cancel = cancel
	g.mu.Unlock()
	go g.consume(runCtx, h)
	go func() {
		if err := g.socket.RunContext(runCtx); err != nil && runCtx.Err() == nil {
			slog.Warn("Slack socket mode stopped", "error", err)
		}
	}()
	return nil
}

func (g *SlackGateway) consume(ctx context.Context, h Handlers) {
	for {
		var evt socketmode.Event
		select {
		case <-ctx.Done():
			return
		case evt = <-g.socket.Events:
		}
		switch evt.Type {
		case socketmode.EventTypeEventsAPI:
			if evt.Request != nil {
				g.socket.Ack(*evt.Request)
			}
			ev, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok || ev.Type != slackevents.CallbackEvent {
				continue
			}
			in, ok := ev.InnerEvent.Data.(*slackevents.MessageEvent)
			if !ok || in == nil || in.BotID != "" || in.SubType != "" || h.OnMessage == nil {
				continue
			}
			h.OnMessage(g.normalize(ctx, in))
		case socketmode.EventTypeSlashCommand:
			if evt.Request != nil {
				g.socket.Ack(*evt.Request)
			}
			cmd, ok := evt.Data.(slack.SlashCommand)
			if !ok || h.OnInteraction == nil {
				continue
			}
			responseURL := cmd.ResponseURL
			h.OnInteraction(Interaction{
				Name:      strings.TrimPrefix(cmd.Command, "/"),
				UserID:    cmd.UserID,
				ChannelID: cmd.ChannelID,
				Respond: func(ctx context.Context, text string) error {
					return slack.PostWebhookContext(ctx, responseURL, &slack.WebhookMessage{
						Text:         text,
						ResponseType: slack.ResponseTypeInChannel,
					})
				},
			})
		}
	}
}

func (g *SlackGateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	return nil
}

func (g *SlackGateway) Self() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.selfName
}

func (g *SlackGateway) FetchChannel(ctx context.Context, id string) (Channel, error) {
	ch, err := g.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: id})
	if err != nil {
		return Channel{}, mapSlackErr(err)
	}
	return g.toChannel(ch.ID, ch.Name), nil
}

func (g *SlackGateway) FetchThread(ctx context.Context, channelID, id string) (ThreadDescriptor, error) {
	ch, ts := splitSlackTarget(id)
	if ch == "" {
		ch = channelID
	}
	if ch != channelID {
		return ThreadDescriptor{}, fmt.Errorf("thread %s in channel %s: %w", id, channelID, ErrNotFound)
	}
	msgs, _, _, err := g.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: ts,
		Limit:     1,
	})
	if err != nil {
		return ThreadDescriptor{}, mapSlackErr(err)
	}
	if len(msgs) == 0 {
		return ThreadDescriptor{}, fmt.Errorf("thread %s: %w", id, ErrNotFound)
	}
	return ThreadDescriptor{ID: joinSlackTarget(channelID, ts), Name: threadTitle(msgs[0].Text, ts)}, nil
}

func (g *SlackGateway) ListGuilds(ctx context.Context) ([]Guild, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.teamID == "" {
		return nil, nil
	}
	return []Guild{{ID: g.teamID, Name: g.teamName}}, nil
}

func (g *SlackGateway) ListChannels(ctx context.Context, guildID string) ([]Channel, error) {
	var out []Channel
	cursor := ""
	for {
		chs, next, err := g.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Cursor: cursor,
			Limit:  200,
			Types:  []string{"public_channel", "private_channel"},
		})
		if err != nil {
			return nil, mapSlackErr(err)
		}
		for _, ch := range chs {
			out = append(out, g.toChannel(ch.ID, ch.Name))
		}
		cursor = strings.TrimSpace(next)
		if cursor == "" {
			break
		}
	}
	return out, nil
}

// ListThreads is empty: Slack channels never list as forums.
func (g *SlackGateway) ListThreads(ctx context.Context, channelID string) ([]ThreadDescriptor, error) {
	return nil, nil
}

func (g *SlackGateway) SetPresence(ctx context.Context, status string) error {
	return g.api.SetUserPresenceContext(ctx, slackPresence(status))
}

func (g *SlackGateway) SendToTarget(ctx context.Context, targetID, text string) error {
	channelID, ts := splitSlackTarget(targetID)
	if channelID == "" {
		channelID = targetID
	}
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if ts != "" {
		opts = append(opts, slack.MsgOptionTS(ts))
	}
	_, _, err := g.api.PostMessageContext(ctx, channelID, opts...)
	return mapSlackErr(err)
}

func (g *SlackGateway) FetchMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	resp, err := g.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     limit,
	})
	if err != nil {
		return nil, mapSlackErr(err)
	}
	out := make([]Message, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		atts := make([]Attachment, 0, len(m.Files))
		for _, f := range m.Files {
			atts = append(atts, Attachment{ID: f.ID, Name: f.Name, URL: f.URLPrivate, Size: f.Size, ContentType: f.Mimetype})
		}
		author := m.Username
		if author == "" {
			author = m.User
		}
		out = append(out, Message{
			ID:          m.Timestamp,
			Content:     m.Text,
			Author:      author,
			Timestamp:   slackTSToTime(m.Timestamp).UnixMilli(),
			Attachments: atts,
		})
	}
	return out, nil
}

func (g *SlackGateway) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	_, _, err := g.api.DeleteMessageContext(ctx, channelID, messageID)
	return mapSlackErr(err)
}

func (g *SlackGateway) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	_, _, _, err := g.api.UpdateMessageContext(ctx, channelID, messageID, slack.MsgOptionText(content, false))
	return mapSlackErr(err)
}

func (g *SlackGateway) toChannel(id, name string) Channel {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Channel{ID: id, Name: name, Kind: KindText, GuildID: g.teamID, GuildName: g.teamName}
}

func (g *SlackGateway) normalize(ctx context.Context, ev *slackevents.MessageEvent) InboundMessage {
	in := InboundMessage{
		ID:         ev.TimeStamp,
		Content:    ev.Text,
		AuthorID:   ev.User,
		AuthorName: ev.User,
		ChannelID:  ev.Channel,
		Timestamp:  slackTSToTime(ev.TimeStamp),
	}
	if ev.ChannelType != "im" {
		g.mu.RLock()
		in.GuildID, in.GuildName = g.teamID, g.teamName
		g.mu.RUnlock()
	}
	if ev.ThreadTimeStamp != "" && ev.ThreadTimeStamp != ev.TimeStamp {
		in.ThreadID = joinSlackTarget(ev.Channel, ev.ThreadTimeStamp)
	}
	lookupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if u, err := g.api.GetUserInfoContext(lookupCtx, ev.User); err == nil && u.Name != "" {
		in.AuthorName = u.Name
	}
	if ch, err := g.api.GetConversationInfoContext(lookupCtx, &slack.GetConversationInfoInput{ChannelID: ev.Channel}); err == nil {
		in.ChannelName = ch.Name
	}
	return in
}

func slackPresence(status string) string {
	if status == "online" {
		return "auto"
	}
	return "away"
}

func splitSlackTarget(target string) (channelID, ts string) {
	channelID, ts, found := strings.Cut(strings.TrimSpace(target), ":")
	if !found {
		if strings.Contains(target, ".") {
			return "", strings.TrimSpace(target)
		}
		return strings.TrimSpace(target), ""
	}
	return channelID, ts
}

func joinSlackTarget(channelID, ts string) string {
	return channelID + ":" + ts
}

func threadTitle(text, fallback string) string {
	text = strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])
	if text == "" {
		return fallback
	}
	if r := []rune(text); len(r) > 40 {
		return string(r[:40]) + "…"
	}
	return text
}

func slackTSToTime(ts string) time.Time {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return time.Time{}
	}
	sec := int64(f)
	return time.Unix(sec, int64((f-float64(sec))*1e9))
}

func mapSlackErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "not_found") || strings.Contains(msg, "thread_not_found") {
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return err
}

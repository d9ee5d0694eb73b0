package chat

import "context"

// Adapter is the capability set the control surface needs from a chat
// platform. Implementations return ErrNotFound (wrapped or bare) for ids that
// cannot be resolved.
type Adapter interface {
	FetchChannel(ctx context.Context, id string) (Channel, error)
	FetchThread(ctx context.Context, channelID, id string) (ThreadDescriptor, error)
	ListGuilds(ctx context.Context) ([]Guild, error)
	ListChannels(ctx context.Context, guildID string) ([]Channel, error)
	ListThreads(ctx context.Context, channelID string) ([]ThreadDescriptor, error)
	SetPresence(ctx context.Context, status string) error
	SendToTarget(ctx context.Context, targetID, text string) error
}

// History exposes stored messages of a channel.
type History interface {
	FetchMessages(ctx context.Context, channelID string, limit int) ([]Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	EditMessage(ctx context.Context, channelID, messageID, content string) error
}

// Handlers receive platform events. Either field may be nil.
type Handlers struct {
	OnMessage     func(InboundMessage)
	OnInteraction func(Interaction)
}

// Gateway is a connected platform client: the capability set plus lifecycle.
type Gateway interface {
	Adapter
	History
	Name() string
	// Open connects and starts delivering events to h.
	Open(ctx context.Context, h Handlers) error
	Close() error
	// Self returns the bot's display name once connected.
	Self() string
}

// ValidStatuses lists the presence values accepted by SetPresence.
var ValidStatuses = []string{"online", "idle", "dnd", "invisible"}

// IsValidStatus reports whether status is one of ValidStatuses.
func IsValidStatus(status string) bool {
	for _, s := range ValidStatuses {
		if s == status {
			return true
		}
	}
	return false
}

package bot

import (
	"sync"
	"time"
)

// UsageStats is a snapshot of the bot's counters.
type UsageStats struct {
	MessagesReceived int64     `json:"messagesReceived"`
	MessagesSent     int64     `json:"messagesSent"`
	CommandsExecuted int64     `json:"commandsExecuted"`
	StartTime        time.Time `json:"startTime"`
	LastActivity     time.Time `json:"lastActivity"`
	// Derived, in whole seconds.
	Uptime          int64 `json:"uptime"`
	LastActivityAgo int64 `json:"lastActivityAgo"`
}

type stats struct {
	mu               sync.Mutex
	now              func() time.Time
	messagesReceived int64
	messagesSent     int64
	commandsExecuted int64
	startTime        time.Time
	lastActivity     time.Time
}

func newStats(now func() time.Time) *stats {
	t := now()
	return &stats{now: now, startTime: t, lastActivity: t}
}

func (s *stats) received() { s.bump(&s.messagesReceived) }
func (s *stats) sent()     { s.bump(&s.messagesSent) }
func (s *stats) command()  { s.bump(&s.commandsExecuted) }

func (s *stats) bump(counter *int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*counter++
	s.lastActivity = s.now()
}

func (s *stats) snapshot() UsageStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	return UsageStats{
		MessagesReceived: s.messagesReceived,
		MessagesSent:     s.messagesSent,
		CommandsExecuted: s.commandsExecuted,
		StartTime:        s.startTime,
		LastActivity:     s.lastActivity,
		Uptime:           int64(now.Sub(s.startTime) / time.Second),
		LastActivityAgo:  int64(now.Sub(s.lastActivity) / time.Second),
	}
}

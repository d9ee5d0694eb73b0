// Package api serves the authenticated REST control surface and the realtime
// WebSocket push channel.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/iXty9/relaybot/internal/activity"
	"github.com/iXty9/relaybot/internal/bot"
	"github.com/iXty9/relaybot/internal/chat"
)

// Control is the bot operation set exposed over HTTP.
type Control interface {
	ChangeStatus(ctx context.Context, status string) (string, error)
	SendMessage(ctx context.Context, text, channelID, threadID string) (string, error)
	ListChannels(ctx context.Context) ([]chat.ChannelDescriptor, error)
	UsageStats() bot.UsageStats
	Presence() string
	FetchMessages(ctx context.Context, channelID string, limit int) ([]chat.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	EditMessage(ctx context.Context, channelID, messageID, content string) error
	SetActiveChannel(ctx context.Context, channelID string) (chat.Channel, error)
	ActiveChannel() (chat.Channel, bool)
}

// Commands runs command lines through the same dispatcher as the terminal.
type Commands interface {
	Handle(ctx context.Context, line string)
}

// Config configures a Server.
type Config struct {
	Addr   string
	Secret string
	// DebugInfo contributes extra fields to GET /api/debug.
	DebugInfo func(ctx context.Context) map[string]any
}

var (
	errAlreadyRunning = errors.New("server already running")
	errNotRunning     = errors.New("server is not running")
)

const shutdownGrace = 5 * time.Second

// Server owns the HTTP listener. It can be stopped and started again.
type Server struct {
	cfg     Config
	control Control
	journal *activity.Journal
	hub     *Hub
	handler http.Handler

	// cmdMu serializes REST commands so their journal output does not interleave.
	cmdMu    sync.Mutex
	commands Commands

	mu   sync.Mutex
	srv  *http.Server
	addr net.Addr
}

// NewServer builds the route table. Nothing listens until Start.
func NewServer(cfg Config, control Control, journal *activity.Journal, hub *Hub) *Server {
	if hub == nil {
		hub = NewHub()
	}
	s := &Server{cfg: cfg, control: control, journal: journal, hub: hub}
	s.handler = s.routes()
	return s
}

// SetCommands attaches the command dispatcher behind POST /api/commands.
func (s *Server) SetCommands(c Commands) {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	s.commands = c
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Hub returns the realtime hub.
func (s *Server) Hub() *Hub { return s.hub }

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return errAlreadyRunning
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.srv = srv
	s.addr = ln.Addr()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server stopped", "error", err)
		}
	}()
	slog.Info("API server listening", "addr", ln.Addr().String())
	return nil
}

// Stop shuts the listener down, waiting at most five seconds for in-flight
// requests, and disconnects realtime listeners.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.addr = nil
	s.mu.Unlock()
	if srv == nil {
		return errNotRunning
	}

	ctx, cancel := context.WithTimeout(ctx, shutdownGrace)
	defer cancel()
	s.hub.CloseAll()
	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("API server stopped")
	return nil
}

// Running reports whether the listener is up.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.srv != nil
}

// Addr returns the bound address while running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

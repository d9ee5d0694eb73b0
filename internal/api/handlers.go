package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/iXty9/relaybot/internal/activity"
	"github.com/iXty9/relaybot/internal/bot"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 100
)

// consoleOnly commands stop the process serving the request.
var consoleOnly = map[string]bool{"server": true, "exit": true}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	api := http.NewServeMux()
	api.HandleFunc("GET /api/status", s.handleGetStatus)
	api.HandleFunc("POST /api/status", s.handlePostStatus)
	api.HandleFunc("GET /api/logs", s.handleLogs)
	api.HandleFunc("GET /api/channels", s.handleChannels)
	api.HandleFunc("GET /api/messages/{channelId}", s.handleListMessages)
	api.HandleFunc("DELETE /api/messages/{channelId}/{messageId}", s.handleDeleteMessage)
	api.HandleFunc("PATCH /api/messages/{channelId}/{messageId}", s.handleEditMessage)
	api.HandleFunc("POST /api/send", s.handleSend)
	api.HandleFunc("POST /api/channel", s.handleSetChannel)
	api.HandleFunc("POST /api/commands", s.handleCommand)
	api.HandleFunc("GET /api/stats", s.handleStats)
	api.HandleFunc("GET /api/debug", s.handleDebug)
	api.HandleFunc("GET /ws", s.hub.ServeWS)

	protected := s.requireToken(api)
	mux.Handle("/api/", protected)
	mux.Handle("/ws", protected)
	return withCORS(mux)
}

// requireToken accepts "Authorization: Bearer <secret>" or "?token=<secret>".
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if token == "" {
			token = strings.TrimSpace(r.URL.Query().Get("token"))
		}
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "No token provided"})
			return
		}
		if s.cfg.Secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Secret)) != 1 {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "Invalid token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorBody struct {
	Error string `json:"error"`
}

type messageBody struct {
	Message string `json:"message"`
}

type channelRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type statusResponse struct {
	Status         string      `json:"status"`
	CurrentChannel *channelRef `json:"currentChannel"`
	bot.UsageStats
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Status: s.control.Presence(), UsageStats: s.control.UsageStats()}
	if ch, ok := s.control.ActiveChannel(); ok {
		resp.CurrentChannel = &channelRef{ID: ch.ID, Name: ch.Name}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePostStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Status is required"})
		return
	}
	msg, err := s.control.ChangeStatus(r.Context(), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: msg})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.journal.Recent(activity.TrailCapacity)
	if err != nil {
		writeError(w, err)
		return
	}
	if logs == nil {
		logs = []activity.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.control.ListChannels(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	limit := defaultMessageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxMessageLimit)
	}
	msgs, err := s.control.FetchMessages(r.Context(), r.PathValue("channelId"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	err := s.control.DeleteMessage(r.Context(), r.PathValue("channelId"), r.PathValue("messageId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Message deleted"})
}

func (s *Server) handleEditMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Content is required"})
		return
	}
	err := s.control.EditMessage(r.Context(), r.PathValue("channelId"), r.PathValue("messageId"), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Message updated"})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message   string `json:"message"`
		ChannelID string `json:"channelId"`
		ThreadID  string `json:"threadId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" || strings.TrimSpace(req.ChannelID) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Message and channelId are required"})
		return
	}
	msg, err := s.control.SendMessage(r.Context(), req.Message, req.ChannelID, req.ThreadID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: msg})
}

func (s *Server) handleSetChannel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChannelID string `json:"channelId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ChannelID) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "channelId is required"})
		return
	}
	ch, err := s.control.SetActiveChannel(r.Context(), req.ChannelID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Active channel set to " + ch.Name,
		"channel": channelRef{ID: ch.ID, Name: ch.Name},
	})
}

// handleCommand accepts {"command": "channel", "args": "general"}. args may
// also be a list of strings. The response lists the activity entries the
// command produced.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string          `json:"command"`
		Args    json.RawMessage `json:"args"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	command := strings.TrimPrefix(strings.TrimSpace(req.Command), "/")
	if command == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Command is required"})
		return
	}
	if consoleOnly[strings.ToLower(command)] {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Command /" + command + " is only available from the console"})
		return
	}
	args, err := commandArgs(req.Args)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	if s.commands == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "Command dispatcher is not available"})
		return
	}
	line := "/" + command
	if args != "" {
		line += " " + args
	}
	mark := s.journal.Mark()
	s.commands.Handle(r.Context(), line)
	writeJSON(w, http.StatusOK, map[string]any{"result": s.journal.Since(mark)})
}

func commandArgs(raw json.RawMessage) (string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", nil
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return strings.TrimSpace(one), nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return strings.TrimSpace(strings.Join(many, " ")), nil
	}
	return "", errors.New("args must be a string or a list of strings")
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.control.UsageStats())
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"presence":  s.control.Presence(),
		"stats":     s.control.UsageStats(),
		"wsClients": s.hub.Count(),
		"logCount":  s.journal.Trail().Len(),
	}
	if ch, ok := s.control.ActiveChannel(); ok {
		info["activeChannel"] = channelRef{ID: ch.ID, Name: ch.Name}
	}
	if s.cfg.DebugInfo != nil {
		for k, v := range s.cfg.DebugInfo(r.Context()) {
			info[k] = v
		}
	}
	writeJSON(w, http.StatusOK, info)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Could not read request body"})
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid JSON body"})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, bot.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, bot.ErrNotFound):
		status = http.StatusNotFound
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

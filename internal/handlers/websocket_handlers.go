package handlers

import (
	"errors"
	"net/http"
	"strings"

	"project-chat/internal/auth"
	"project-chat/internal/chat"
	"project-chat/internal/config"
	ws "project-chat/internal/websocket"
	"project-chat/pkg/logger"

	"github.com/gorilla/websocket"
)

// JSON may escape every content byte as \u00XX, so the read limit allows
// six wire bytes per content byte plus the envelope.
const (
	maxEscapeRatio = 6
	frameOverhead  = 1024
)

type WebSocketHandlers struct {
	authService *auth.Service
	manager     *chat.Manager
	upgrader    websocket.Upgrader
	maxFrame    int64
}

func NewWebSocketHandlers(authService *auth.Service, manager *chat.Manager, cfg *config.Config) *WebSocketHandlers {
	maxBytes := cfg.Chat.MaxMessageBytes
	if maxBytes <= 0 {
		maxBytes = chat.DefaultMaxMessageBytes
	}

	return &WebSocketHandlers{
		authService: authService,
		manager:     manager,
		maxFrame:    int64(maxBytes)*maxEscapeRatio + frameOverhead,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(cfg.Server.AllowedOrigins),
		},
	}
}

// HandleWebSocket authenticates the token query parameter before upgrading;
// a connection without a valid identity is never established.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.Authenticate(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) || errors.Is(err, auth.ErrUserNotFound) {
			logger.Warn("Rejected socket connection from %s: %v", r.RemoteAddr, err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		logger.Error("Error authenticating socket connection: %v", err)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	client, err := ws.NewClient(conn, h.manager, user, h.maxFrame)
	if err != nil {
		logger.Error("Error creating client: %v", err)
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// checkOrigin allows any origin when none are configured, and requests
// without an Origin header (non-browser clients).
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(allowed) == 0 || origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		logger.Warn("Rejected socket origin %s", origin)
		return false
	}
}

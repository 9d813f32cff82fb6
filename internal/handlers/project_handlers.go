package handlers

import (
	"context"
	"net/http"
	"strings"

	"project-chat/internal/auth"
	"project-chat/internal/chat"
	"project-chat/internal/database"
	"project-chat/internal/models"
	"project-chat/pkg/logger"
)

type ProjectHandlers struct {
	authService  *auth.Service
	access       chat.AccessChecker
	messages     database.MessageRepository
	historyLimit int
}

func NewProjectHandlers(authService *auth.Service, access chat.AccessChecker, messages database.MessageRepository, historyLimit int) *ProjectHandlers {
	if historyLimit <= 0 {
		historyLimit = chat.DefaultHistoryLimit
	}
	return &ProjectHandlers{
		authService:  authService,
		access:       access,
		messages:     messages,
		historyLimit: historyLimit,
	}
}

// GetMessages serves GET /api/projects/{id}/messages: the same bounded,
// oldest-first history a socket receives on join.
func (h *ProjectHandlers) GetMessages(w http.ResponseWriter, r *http.Request) {
	user, err := h.getUserFromToken(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	projectID, ok := chat.CanonicalProjectID(r.PathValue("id"))
	if !ok {
		http.Error(w, "invalid project ID", http.StatusBadRequest)
		return
	}

	allowed, err := h.access.CanAccessProject(r.Context(), projectID, user.ID)
	if err != nil {
		logger.Error("Error checking access for user %s to project %s: %v", user.ID, projectID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if !allowed {
		http.Error(w, "you do not have access to this project", http.StatusForbidden)
		return
	}

	messages, err := h.messages.LoadRecentMessages(r.Context(), projectID, h.historyLimit)
	if err != nil {
		logger.Error("Error loading history for project %s: %v", projectID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []*models.Message{}
	}

	writeJSON(w, http.StatusOK, models.HistoryResponse{ProjectID: projectID, Messages: messages})
}

// getUserFromToken accepts the token query parameter used by the socket,
// or a bearer Authorization header.
func (h *ProjectHandlers) getUserFromToken(r *http.Request) (*models.User, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return h.authService.Authenticate(r.Context(), token)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandlers struct {
	db  Pinger
	hub *chat.Hub
}

func NewHealthHandlers(db Pinger, hub *chat.Hub) *HealthHandlers {
	return &HealthHandlers{db: db, hub: hub}
}

func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := h.db.Ping(r.Context()); err != nil {
		logger.Warn("Health check: database unreachable: %v", err)
		status, code = "degraded", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]interface{}{
		"status":   status,
		"sessions": h.hub.SessionCount(),
		"rooms":    h.hub.RoomCount(),
	})
}

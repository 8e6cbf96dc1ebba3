package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/eventdeck/gatehouse/internal/models"
	pkghttp "github.com/eventdeck/gatehouse/pkg/http"
	"github.com/go-chi/chi/v5"
)

// SessionDirectory defines the session registry as seen by the operator console
type SessionDirectory interface {
	ListAll(ctx context.Context) ([]*models.ActiveSession, error)
	ListByUser(ctx context.Context, userID string) ([]*models.ActiveSession, error)
}

// AuditViewer defines the audit log as seen by the operator console
type AuditViewer interface {
	Query(ctx context.Context, filter models.AuditFilter, page, pageSize int) (*models.AuditPage, error)
	Statistics(ctx context.Context, windowDays int) (*models.AuditStats, error)
}

// SessionTerminator defines the forced-logout entry point
type SessionTerminator interface {
	ForceLogout(ctx context.Context, sessionToken, operatorID string) error
}

// AdminHandler serves the operator console endpoints
type AdminHandler struct {
	sessions   SessionDirectory
	audit      AuditViewer
	terminator SessionTerminator
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(sessions SessionDirectory, audit AuditViewer, terminator SessionTerminator) *AdminHandler {
	return &AdminHandler{
		sessions:   sessions,
		audit:      audit,
		terminator: terminator,
	}
}

// ForceLogoutRequest identifies the operator performing a forced logout
type ForceLogoutRequest struct {
	OperatorID string `json:"operator_id" validate:"required"`
}

// SessionListResponse wraps a list of active sessions
type SessionListResponse struct {
	Sessions []*models.ActiveSession `json:"sessions"`
	Count    int                     `json:"count"`
}

// ListSessions returns every active session
func (h *AdminHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.ListAll(r.Context())
	if err != nil {
		pkghttp.WriteInternalError(w, "Unable to list sessions")
		return
	}

	writeJSON(w, http.StatusOK, SessionListResponse{Sessions: sessions, Count: len(sessions)})
}

// ListUserSessions returns the active sessions for one user
func (h *AdminHandler) ListUserSessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		pkghttp.WriteBadRequest(w, "Missing user ID")
		return
	}

	sessions, err := h.sessions.ListByUser(r.Context(), userID)
	if err != nil {
		pkghttp.WriteInternalError(w, "Unable to list sessions")
		return
	}

	writeJSON(w, http.StatusOK, SessionListResponse{Sessions: sessions, Count: len(sessions)})
}

// ForceLogout terminates someone else's session on behalf of an operator
func (h *AdminHandler) ForceLogout(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		pkghttp.WriteBadRequest(w, "Missing session token")
		return
	}

	var req ForceLogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.terminator.ForceLogout(r.Context(), token, req.OperatorID); err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			pkghttp.WriteNotFound(w, "Session not found")
			return
		}
		pkghttp.WriteInternalError(w, "Unable to terminate session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// QueryAuditLog serves the operator console's audit log viewer
func (h *AdminHandler) QueryAuditLog(w http.ResponseWriter, r *http.Request) {
	filter := models.AuditFilter{
		Email:     r.URL.Query().Get("email"),
		EventType: r.URL.Query().Get("event_type"),
	}

	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			pkghttp.WriteBadRequest(w, "Invalid 'from' timestamp, expected RFC3339")
			return
		}
		filter.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			pkghttp.WriteBadRequest(w, "Invalid 'to' timestamp, expected RFC3339")
			return
		}
		filter.To = t
	}

	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 0)

	result, err := h.audit.Query(r.Context(), filter, page, pageSize)
	if err != nil {
		pkghttp.WriteInternalError(w, "Unable to query audit log")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetStatistics serves the operator dashboard's login statistics
func (h *AdminHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	windowDays := queryInt(r, "window_days", 7)

	stats, err := h.audit.Statistics(r.Context(), windowDays)
	if err != nil {
		pkghttp.WriteInternalError(w, "Unable to compute statistics")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

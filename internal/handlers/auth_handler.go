package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/eventdeck/gatehouse/internal/models"
	"github.com/eventdeck/gatehouse/internal/services"
	pkghttp "github.com/eventdeck/gatehouse/pkg/http"
)

// LoginCoordinator defines the interface for the login orchestration logic
type LoginCoordinator interface {
	AttemptLogin(ctx context.Context, email, password, ipAddress, userAgent string) (*services.LoginResult, error)
	Logout(ctx context.Context, sessionToken string) error
	Heartbeat(ctx context.Context, sessionToken string) (bool, error)
}

// AuthHandler handles login, logout and heartbeat HTTP requests
type AuthHandler struct {
	service  LoginCoordinator
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service LoginCoordinator, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SessionTokenRequest carries the opaque session token for logout/heartbeat
type SessionTokenRequest struct {
	SessionToken string `json:"session_token" validate:"required"`
}

// LoginResponse represents the outcome of a login attempt
type LoginResponse struct {
	Status            string                 `json:"status"`
	Session           *models.ActiveSession `json:"session,omitempty"`
	AttemptsRemaining *int                   `json:"attempts_remaining,omitempty"`
	FailureReason     string                 `json:"failure_reason,omitempty"`
	RemainingSeconds  *int                   `json:"remaining_seconds,omitempty"`
}

// HeartbeatResponse reports whether the session is still alive
type HeartbeatResponse struct {
	Active bool `json:"active"`
}

// Login handles a login attempt
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)
	userAgent := r.UserAgent()

	result, err := h.service.AttemptLogin(r.Context(), req.Email, req.Password, ipAddress, userAgent)
	if err != nil {
		if errors.Is(err, models.ErrProviderUnavailable) {
			pkghttp.WriteServiceUnavailable(w, "Sign-in is temporarily unavailable, please try again")
			return
		}
		pkghttp.WriteInternalError(w, "Unable to process login")
		return
	}

	writeLoginResult(w, result)
}

// Logout handles a logout request. It always succeeds from the caller's
// perspective within the bounded deadline.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req SessionTokenRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	_ = h.service.Logout(r.Context(), req.SessionToken)
	w.WriteHeader(http.StatusNoContent)
}

// Heartbeat refreshes a session's activity timestamp
func (h *AuthHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req SessionTokenRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	active, err := h.service.Heartbeat(r.Context(), req.SessionToken)
	if err != nil {
		pkghttp.WriteInternalError(w, "Unable to process heartbeat")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(HeartbeatResponse{Active: active})
}

func writeLoginResult(w http.ResponseWriter, result *services.LoginResult) {
	w.Header().Set("Content-Type", "application/json")

	switch result.Status {
	case services.LoginAdmitted:
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(LoginResponse{
			Status:  string(result.Status),
			Session: result.Session,
		})
	case services.LoginRejected:
		remaining := result.AttemptsRemaining
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(LoginResponse{
			Status:            string(result.Status),
			AttemptsRemaining: &remaining,
			FailureReason:     result.FailureReason,
		})
	case services.LoginLockedOut:
		seconds := result.RemainingSeconds
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(LoginResponse{
			Status:           string(result.Status),
			RemainingSeconds: &seconds,
		})
	default:
		pkghttp.WriteInternalError(w, "Unknown login outcome")
	}
}

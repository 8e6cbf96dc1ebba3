package identity_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eventdeck/gatehouse/internal/identity"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIDToken(t *testing.T, subject, email string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":   subject,
		"email": email,
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("provider-signing-key"))
	require.NoError(t, err)
	return token
}

func newTestProvider(t *testing.T, handler http.Handler) *identity.HTTPProvider {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return identity.NewHTTPProvider(server.URL, 2*time.Second, logger)
}

func TestVerifyCredentials_Success(t *testing.T) {
	idToken := ""
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/credentials/verify", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@x.com", body["email"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"id_token": idToken})
	}))
	idToken = testIDToken(t, "user-42", "a@x.com")

	ident, err := provider.VerifyCredentials(context.Background(), "a@x.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "user-42", ident.UserID)
	assert.Equal(t, "a@x.com", ident.Email)
	assert.Equal(t, idToken, ident.ProviderToken)
}

func TestVerifyCredentials_ClassifiesProviderErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		errorCode string
		want      error
	}{
		{"invalid password", http.StatusUnauthorized, "invalid_password", identity.ErrInvalidPassword},
		{"invalid credentials alias", http.StatusUnauthorized, "invalid_credentials", identity.ErrInvalidPassword},
		{"user not found", http.StatusNotFound, "user_not_found", identity.ErrUserNotFound},
		{"account disabled", http.StatusForbidden, "account_disabled", identity.ErrAccountDisabled},
		{"email not confirmed", http.StatusForbidden, "email_not_confirmed", identity.ErrEmailNotConfirmed},
		{"provider throttled", http.StatusTooManyRequests, "too_many_requests", identity.ErrTooManyRequests},
		{"server error", http.StatusInternalServerError, "", identity.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": tt.errorCode})
			}))

			_, err := provider.VerifyCredentials(context.Background(), "a@x.com", "pw")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVerifyCredentials_UnclassifiedErrorIsNotASentinel(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "something_new"})
	}))

	_, err := provider.VerifyCredentials(context.Background(), "a@x.com", "pw")
	require.Error(t, err)
	assert.NotErrorIs(t, err, identity.ErrInvalidPassword)
	assert.NotErrorIs(t, err, identity.ErrUnavailable)
}

func TestVerifyCredentials_UnreachableProvider(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	provider := identity.NewHTTPProvider("http://127.0.0.1:1", 200*time.Millisecond, logger)

	_, err := provider.VerifyCredentials(context.Background(), "a@x.com", "pw")
	assert.ErrorIs(t, err, identity.ErrUnavailable)
}

func TestVerifyCredentials_TokenMissingSubject(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "a@x.com"})
		signed, _ := token.SignedString([]byte("k"))
		_ = json.NewEncoder(w).Encode(map[string]string{"id_token": signed})
	}))

	_, err := provider.VerifyCredentials(context.Background(), "a@x.com", "pw")
	assert.ErrorIs(t, err, identity.ErrUnavailable)
}

func TestSignOut_RevokesProviderToken(t *testing.T) {
	var revoked string
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/sessions/revoke", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		revoked = body["token"]
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, provider.SignOut(context.Background(), "provider-token-1"))
	assert.Equal(t, "provider-token-1", revoked)
}

func TestSignOut_EmptyTokenIsNoOp(t *testing.T) {
	called := false
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	require.NoError(t, provider.SignOut(context.Background(), ""))
	assert.False(t, called)
}

func TestClearLocal_PopsBinding(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	provider.Bind("session-1", "provider-token-1")

	// The first pop owns the credential; a second pop finds nothing, so two
	// concurrent cleanups can never both revoke.
	token, bound := provider.ClearLocal("session-1")
	require.True(t, bound)
	assert.Equal(t, "provider-token-1", token)

	token, bound = provider.ClearLocal("session-1")
	assert.False(t, bound)
	assert.Empty(t, token)
}

func TestClearLocal_UnknownTokenIsNoOp(t *testing.T) {
	provider := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	token, bound := provider.ClearLocal("never-bound")
	assert.False(t, bound)
	assert.Empty(t, token)
}

package xaytheon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSession_ForgotPassword(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/forgot-password", r.URL.Path)

		var req forgotPasswordRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "user@example.com", req.Email)

		json.NewEncoder(w).Encode(messageResponse{Message: "if that account exists, an email is on the way"})
	}))
	defer server.Close()

	session := New(server.URL, NewMemoryStorage())
	msg, err := session.ForgotPassword(context.Background(), "user@example.com")
	require.NoError(t, err)
	require.Contains(t, msg, "email is on the way")
}

func TestSession_ForgotPassword_InvalidEmail(t *testing.T) {
	session := New("http://localhost:0", NewMemoryStorage())
	for _, email := range []string{"", "   ", "no-at-sign"} {
		_, err := session.ForgotPassword(context.Background(), email)
		require.Error(t, err)
		require.Equal(t, ErrCodeInvalidInput, CodeOf(err))
	}
}

func TestSession_ResetPassword(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/reset-password", r.URL.Path)

		var req resetPasswordRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "reset-token-1", req.Token)
		require.Equal(t, "newpassword123", req.NewPassword)

		json.NewEncoder(w).Encode(messageResponse{Message: "password updated"})
	}))
	defer server.Close()

	session := New(server.URL, NewMemoryStorage())
	msg, err := session.ResetPassword(context.Background(), "reset-token-1", "newpassword123")
	require.NoError(t, err)
	require.Equal(t, "password updated", msg)
}

func TestSession_ResetPassword_InvalidInput(t *testing.T) {
	session := New("http://localhost:0", NewMemoryStorage())

	_, err := session.ResetPassword(context.Background(), "", "newpassword123")
	require.Equal(t, ErrCodeInvalidInput, CodeOf(err))

	_, err = session.ResetPassword(context.Background(), "reset-token-1", "short")
	require.Equal(t, ErrCodeInvalidInput, CodeOf(err))
}

func TestSession_ValidateResetToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/validate-reset-token", r.URL.Path)

		switch r.URL.Query().Get("token") {
		case "good-token":
			json.NewEncoder(w).Encode(validateResetTokenResponse{Valid: true})
		default:
			json.NewEncoder(w).Encode(validateResetTokenResponse{Valid: false, Message: "token expired"})
		}
	}))
	defer server.Close()

	session := New(server.URL, NewMemoryStorage())

	valid, _, err := session.ValidateResetToken(context.Background(), "good-token")
	require.NoError(t, err)
	require.True(t, valid)

	valid, msg, err := session.ValidateResetToken(context.Background(), "stale-token")
	require.NoError(t, err)
	require.False(t, valid)
	require.Equal(t, "token expired", msg)
}

func TestSession_PasswordFlows_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorCode
	}{
		{name: "429 too many attempts", status: http.StatusTooManyRequests, want: ErrCodeTooManyAttempts},
		{name: "500 server error", status: http.StatusInternalServerError, want: ErrCodeServerError},
		{name: "other non-2xx", status: http.StatusBadRequest, want: ErrCodeAuthFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			session := New(server.URL, NewMemoryStorage())

			_, err := session.ForgotPassword(context.Background(), "user@example.com")
			require.Equal(t, tt.want, CodeOf(err))

			_, err = session.ResetPassword(context.Background(), "reset-token-1", "newpassword123")
			require.Equal(t, tt.want, CodeOf(err))

			_, _, err = session.ValidateResetToken(context.Background(), "reset-token-1")
			require.Equal(t, tt.want, CodeOf(err))
		})
	}
}

package xaytheon

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type validateResetTokenResponse struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// ForgotPassword asks the provider to start a password reset for email.
// Returns the provider's confirmation message.
func (s *Session) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > maxEmailLength || !strings.Contains(email, "@") {
		return "", NewAuthError(ErrCodeInvalidInput, "a valid email is required")
	}

	req, err := NewJSONRequest(http.MethodPost, s.endpoint("/forgot-password"), forgotPasswordRequest{Email: email})
	if err != nil {
		return "", err
	}
	return s.messageCall(ctx, req)
}

// ResetPassword completes a password reset using the emailed token.
func (s *Session) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", NewAuthError(ErrCodeInvalidInput, "reset token is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return "", err
	}

	req, err := NewJSONRequest(http.MethodPost, s.endpoint("/reset-password"), resetPasswordRequest{Token: token, NewPassword: newPassword})
	if err != nil {
		return "", err
	}
	return s.messageCall(ctx, req)
}

// ValidateResetToken checks whether a password-reset token is still
// usable, returning the provider's explanation when it is not.
func (s *Session) ValidateResetToken(ctx context.Context, token string) (bool, string, error) {
	if strings.TrimSpace(token) == "" {
		return false, "", NewAuthError(ErrCodeInvalidInput, "reset token is required")
	}

	endpoint := s.endpoint("/validate-reset-token") + "?token=" + url.QueryEscape(token)
	req, err := NewJSONRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return false, "", err
	}

	resp, err := s.gateway.Call(ctx, req)
	if err != nil {
		return false, "", err
	}
	if !resp.OK() {
		return false, "", statusError(resp.StatusCode, "validate reset token")
	}

	var body validateResetTokenResponse
	if err := resp.JSON(&body); err != nil {
		return false, "", err
	}
	return body.Valid, body.Message, nil
}

func (s *Session) messageCall(ctx context.Context, req *http.Request) (string, error) {
	resp, err := s.gateway.Call(ctx, req)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", statusError(resp.StatusCode, req.URL.Path)
	}

	var body messageResponse
	if err := resp.JSON(&body); err != nil {
		return "", err
	}
	return body.Message, nil
}

// statusError is the generic non-2xx mapping for flows outside the login
// state machine.
func statusError(status int, op string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return NewAuthError(ErrCodeTooManyAttempts, "too many attempts")
	case status >= 500:
		return NewAuthError(ErrCodeServerError, "server error")
	default:
		return NewAuthError(ErrCodeAuthFailed, fmt.Sprintf("%s failed with status %d", op, status))
	}
}

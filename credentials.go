package xaytheon

import (
	"fmt"
	"strings"
	"time"
)

// User is the identity metadata last returned by the provider.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Credential is the in-memory access credential for API calls. ExpiresAt
// already has the expiry skew subtracted, so a credential is treated as
// stale one skew interval before the server would actually reject it.
type Credential struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user,omitempty"`
}

// ExpiringSoon returns true if the credential has no expiry or now has
// reached it.
func (c *Credential) ExpiringSoon(now time.Time) bool {
	return c.ExpiresAt.IsZero() || !now.Before(c.ExpiresAt)
}

// Input bounds enforced before any network call.
const (
	maxEmailLength    = 254
	minPasswordLength = 8
	maxPasswordLength = 128
)

// validateLoginInput checks both fields and returns the trimmed email.
// Failures are INVALID_INPUT, raised before the provider is contacted.
func validateLoginInput(email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", NewAuthError(ErrCodeInvalidInput, "email is required")
	}
	if len(email) > maxEmailLength {
		return "", NewAuthError(ErrCodeInvalidInput, fmt.Sprintf("email must be at most %d characters", maxEmailLength))
	}
	if !strings.Contains(email, "@") {
		return "", NewAuthError(ErrCodeInvalidInput, "invalid email format")
	}
	if err := validatePassword(password); err != nil {
		return "", err
	}
	return email, nil
}

func validatePassword(password string) error {
	if password == "" {
		return NewAuthError(ErrCodeInvalidInput, "password is required")
	}
	if len(password) < minPasswordLength {
		return NewAuthError(ErrCodeInvalidInput, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(password) > maxPasswordLength {
		return NewAuthError(ErrCodeInvalidInput, fmt.Sprintf("password must be at most %d characters", maxPasswordLength))
	}
	return nil
}

package xaytheon

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// accessTokenClaims is what can be recovered from the access token itself
// when a provider response omits expiresIn or the user record. The token
// is not verified here: the client trusts the provider it just spoke to,
// and verification is the resource server's job.
type accessTokenClaims struct {
	ExpiresAt time.Time
	UserID    string
	Email     string
	Name      string
}

func inspectAccessToken(raw string) (*accessTokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, err
	}

	out := &accessTokenClaims{}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if sub, err := claims.GetSubject(); err == nil {
		out.UserID = sub
	}
	if v, ok := claims["email"].(string); ok {
		out.Email = v
	}
	if v, ok := claims["name"].(string); ok {
		out.Name = v
	}
	return out, nil
}

func (c *accessTokenClaims) user() *User {
	if c.UserID == "" && c.Email == "" {
		return nil
	}
	return &User{ID: c.UserID, Email: c.Email, Name: c.Name}
}

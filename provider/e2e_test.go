package provider_test

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shruthideepikareddy/xaytheon"
	"github.com/shruthideepikareddy/xaytheon/provider"
)

// These tests run the real client against the dev provider end to end.

func startProvider(t *testing.T, cfg provider.Config) (*provider.Provider, *httptest.Server) {
	t.Helper()
	p := provider.New(cfg)
	server := httptest.NewServer(p.Handler())
	t.Cleanup(server.Close)
	return p, server
}

func TestClientAgainstProvider_TokenMode(t *testing.T) {
	p, server := startProvider(t, provider.Config{AccessTokenTTL: 15 * time.Minute})
	require.NoError(t, p.AddUser("dev@example.com", "devpassword", "Dev"))

	storage := xaytheon.NewMemoryStorage()
	session := xaytheon.New(server.URL, storage)

	user, err := session.Login(context.Background(), "dev@example.com", "devpassword")
	require.NoError(t, err)
	require.Equal(t, "dev@example.com", user.Email)
	require.Equal(t, "Dev", user.Name)
	require.True(t, session.IsAuthenticated())

	token, err := session.Token(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// Refresh rotates both tokens.
	before, err := storage.Load()
	require.NoError(t, err)
	require.NoError(t, session.Refresh(context.Background()))
	after, err := storage.Load()
	require.NoError(t, err)
	require.NotEqual(t, before, after)

	// A second client restores the session from the persisted token.
	other := xaytheon.New(server.URL, storage)
	other.Restore(context.Background())
	require.True(t, other.IsAuthenticated())
	require.Equal(t, "dev@example.com", other.CurrentUser().Email)

	session.Logout(context.Background())
	require.False(t, session.IsAuthenticated())
	cleared, err := storage.Load()
	require.NoError(t, err)
	require.Empty(t, cleared)
}

func TestClientAgainstProvider_CookieMode(t *testing.T) {
	p, server := startProvider(t, provider.Config{CookieMode: true})
	require.NoError(t, p.AddUser("dev@example.com", "devpassword", ""))

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	session := xaytheon.New(server.URL, nil, xaytheon.WithHTTPClient(client))

	_, err = session.Login(context.Background(), "dev@example.com", "devpassword")
	require.NoError(t, err)
	require.True(t, session.IsAuthenticated())

	// The session cookie alone is enough to refresh.
	require.NoError(t, session.Refresh(context.Background()))

	session.Logout(context.Background())
	require.False(t, session.IsAuthenticated())
	require.Error(t, session.Refresh(context.Background()))
}

func TestClientAgainstProvider_RegisterThenLogin(t *testing.T) {
	_, server := startProvider(t, provider.Config{})

	session := xaytheon.New(server.URL, xaytheon.NewMemoryStorage())

	_, err := session.Register(context.Background(), "new@example.com", "password123")
	require.NoError(t, err)
	require.False(t, session.IsAuthenticated())

	_, err = session.Register(context.Background(), "new@example.com", "password123")
	require.Equal(t, xaytheon.ErrCodeUserExists, xaytheon.CodeOf(err))

	user, err := session.Login(context.Background(), "new@example.com", "password123")
	require.NoError(t, err)
	require.Equal(t, "new@example.com", user.Email)
}

func TestClientAgainstProvider_PasswordReset(t *testing.T) {
	p, server := startProvider(t, provider.Config{})
	require.NoError(t, p.AddUser("dev@example.com", "devpassword", ""))

	session := xaytheon.New(server.URL, xaytheon.NewMemoryStorage())

	msg, err := session.ForgotPassword(context.Background(), "dev@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, msg)

	valid, reason, err := session.ValidateResetToken(context.Background(), "made-up-token")
	require.NoError(t, err)
	require.False(t, valid)
	require.NotEmpty(t, reason)
}

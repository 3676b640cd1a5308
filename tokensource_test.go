package xaytheon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSession_TokenSource(t *testing.T) {
	session := New("http://localhost:0", NewMemoryStorage())
	session.store.Set("access-1", time.Hour, &User{ID: "u1"})

	source := session.TokenSource(context.Background())
	tok, err := source.Token()
	require.NoError(t, err)
	require.Equal(t, "access-1", tok.AccessToken)
	require.Equal(t, "Bearer", tok.TokenType)
	require.True(t, tok.Valid())
}

func TestSession_TokenSource_RefreshesStaleCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeTokens(w, tokenResponse{AccessToken: "fresh", ExpiresIn: 3600, User: &User{ID: "u1"}})
	}))
	defer server.Close()

	storage := NewMemoryStorage()
	require.NoError(t, storage.Store("refresh-1"))
	session := New(server.URL, storage)
	session.store.Set("stale", 30*time.Second, &User{ID: "u1"})

	tok, err := session.TokenSource(context.Background()).Token()
	require.NoError(t, err)
	require.Equal(t, "fresh", tok.AccessToken)
}

func TestSession_TokenSource_SignedOut(t *testing.T) {
	session := New("http://localhost:0", NewMemoryStorage())
	_, err := session.TokenSource(context.Background()).Token()
	require.Error(t, err)
	require.Equal(t, ErrCodeSessionExpired, CodeOf(err))
}

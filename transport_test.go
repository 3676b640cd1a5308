package xaytheon

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAuthTransport_AddsBearer(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	client := &http.Client{Transport: &AuthTransport{Token: "static-token"}}
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "Bearer static-token", gotAuth)
}

func TestAuthTransport_EmptyTokenLeavesRequestAlone(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	client := &http.Client{Transport: &AuthTransport{}}
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Empty(t, gotAuth)
}

func TestSessionTransport_RetriesOnceAfter401(t *testing.T) {
	var apiCalls int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&apiCalls, 1)
		if r.Header.Get("Authorization") != "Bearer refreshed" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"data":"ok"}`))
	}))
	defer api.Close()

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeTokens(w, tokenResponse{AccessToken: "refreshed", ExpiresIn: 3600, User: &User{ID: "u1"}})
	}))
	defer provider.Close()

	storage := NewMemoryStorage()
	require.NoError(t, storage.Store("refresh-1"))
	session := New(provider.URL, storage)
	session.store.Set("stale-but-unexpired", time.Hour, &User{ID: "u1"})

	client := &http.Client{Transport: session.Transport(nil)}
	resp, err := client.Get(api.URL + "/data")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "ok")
	require.Equal(t, int32(2), atomic.LoadInt32(&apiCalls))
}

func TestSessionTransport_ReturnsOriginal401WhenRefreshFails(t *testing.T) {
	var apiCalls int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&apiCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer api.Close()

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer provider.Close()

	storage := NewMemoryStorage()
	require.NoError(t, storage.Store("refresh-1"))
	session := New(provider.URL, storage)
	session.store.Set("doomed", time.Hour, &User{ID: "u1"})

	client := &http.Client{Transport: session.Transport(nil)}
	resp, err := client.Get(api.URL + "/data")
	require.NoError(t, err)
	resp.Body.Close()

	// The caller sees the endpoint's own 401, not a transport error.
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, int32(1), atomic.LoadInt32(&apiCalls))
}

func TestSessionTransport_FailsWhenNoSession(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer api.Close()

	session := New("http://localhost:0", NewMemoryStorage())
	client := &http.Client{Transport: session.Transport(nil)}
	_, err := client.Get(api.URL + "/data")
	require.Error(t, err)
}

package xaytheon

import "sync"

// TokenStorage persists the refresh token across restarts. Implementations
// must tolerate Clear when nothing is stored. A Session constructed with a
// nil TokenStorage runs in cookie mode: the refresh credential travels
// out-of-band on the HTTP client's cookie jar instead.
type TokenStorage interface {
	// Load returns the stored refresh token, or "" when none is stored.
	Load() (string, error)

	// Store overwrites the stored refresh token.
	Store(token string) error

	// Clear removes the stored refresh token.
	Clear() error
}

// MemoryStorage keeps the refresh token in memory only. Useful for tests
// and for processes that should not persist credentials.
type MemoryStorage struct {
	mu    sync.Mutex
	token string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryStorage) Store(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

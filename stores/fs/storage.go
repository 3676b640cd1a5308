// Package fs provides file-backed refresh token storage for the xaytheon
// client, the desktop stand-in for the browser's durable storage key.
package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TokenStorage persists the refresh token as a JSON file with restricted
// permissions. It implements xaytheon.TokenStorage.
type TokenStorage struct {
	mu   sync.Mutex
	path string
}

// sessionFile is the JSON structure stored on disk.
type sessionFile struct {
	RefreshToken string `json:"refresh_token"`
}

// NewTokenStorage creates a file-backed token storage.
// If path is empty, defaults to ~/.config/<appName>/session.json.
func NewTokenStorage(path string, appName string) (*TokenStorage, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("could not determine config directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
		if appName == "" {
			appName = "xaytheon"
		}
		path = filepath.Join(configDir, appName, "session.json")
	}

	return &TokenStorage{path: path}, nil
}

// Load returns the stored refresh token, or "" when none is stored.
func (s *TokenStorage) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}

	var file sessionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return "", fmt.Errorf("failed to parse session file: %w", err)
	}
	return file.RefreshToken, nil
}

// Store overwrites the stored refresh token.
func (s *TokenStorage) Store(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure directory exists with restricted permissions
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(sessionFile{RefreshToken: token}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	// Write with restricted permissions (owner read/write only)
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Clear removes the stored refresh token. Clearing an empty storage is
// not an error.
func (s *TokenStorage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Path returns the path to the session file.
func (s *TokenStorage) Path() string {
	return s.path
}

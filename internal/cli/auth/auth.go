// Package auth persists the CLI session token.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	service = "investly-cli"
)

// ErrNoToken is returned by Load when no token has been persisted
var ErrNoToken = errors.New("no session token stored")

// TokenStore persists a single session token
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Delete() error
}

// getKeyringKey returns a unique key for storing JWT tokens per server
func getKeyringKey(serverURL string) string {
	return fmt.Sprintf("jwt-%s", strings.TrimRight(serverURL, "/"))
}

// KeyringStore keeps the token in the OS keychain/credential manager
type KeyringStore struct {
	key string
}

// NewKeyringStore returns a store scoped to one API server
func NewKeyringStore(serverURL string) *KeyringStore {
	return &KeyringStore{key: getKeyringKey(serverURL)}
}

func (s *KeyringStore) Save(token string) error {
	if err := keyring.Set(service, s.key, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

func (s *KeyringStore) Load() (string, error) {
	token, err := keyring.Get(service, s.key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	return token, nil
}

func (s *KeyringStore) Delete() error {
	if err := keyring.Delete(service, s.key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// KeyringAvailable reports whether the OS keyring can be used.
// Headless Linux machines often have no secret service running.
func KeyringAvailable() bool {
	_, err := keyring.Get(service, "probe")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

// NewStore picks the keyring when available and falls back to a file under configDir
func NewStore(serverURL, configDir string) TokenStore {
	if KeyringAvailable() {
		return NewKeyringStore(serverURL)
	}
	return NewFileStore(configDir, serverURL)
}

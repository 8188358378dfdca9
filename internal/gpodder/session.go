// ABOUTME: Session manager holding server credentials and the current session token
// ABOUTME: Re-authenticates once when the server answers 401/403

package gpodder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/castsync/castsync/internal/models"
	"github.com/castsync/castsync/internal/storage"
)

// ErrNotConfigured means no server has been set up yet.
var ErrNotConfigured = errors.New("no sync server configured")

// SessionManager owns the ServerConfig row. It hands out a valid session
// at cycle start and refreshes it when a server call is rejected.
type SessionManager struct {
	mu     sync.Mutex
	store  storage.Store
	client *Client
}

// NewSessionManager creates a SessionManager over the store and client.
func NewSessionManager(store storage.Store, client *Client) *SessionManager {
	return &SessionManager{store: store, client: client}
}

// Session returns the server configuration with a usable session token,
// logging in first when no token is held yet.
func (m *SessionManager) Session(ctx context.Context) (*models.ServerConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := m.store.GetServerConfig()
	if err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}

	if cfg.SessionToken != nil && *cfg.SessionToken != "" {
		return cfg, nil
	}
	return m.login(ctx, cfg)
}

// Refresh discards the held token and authenticates again. Called exactly
// once per cycle when a server call comes back 401/403.
func (m *SessionManager) Refresh(ctx context.Context) (*models.ServerConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, err := m.store.GetServerConfig()
	if err != nil {
		return nil, fmt.Errorf("load server config: %w", err)
	}
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}

	cfg.SessionToken = nil
	return m.login(ctx, cfg)
}

func (m *SessionManager) login(ctx context.Context, cfg *models.ServerConfig) (*models.ServerConfig, error) {
	token, err := m.client.Login(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cfg.SessionToken = &token
	if err := m.store.SaveServerConfig(cfg); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return cfg, nil
}

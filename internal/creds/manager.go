package creds

import (
	"context"
	"fmt"

	"github.com/stackbound/agentrelay/internal/logging"
)

// AuthServiceError reports that the token issuer rejected the stored
// username/password. It is fatal for the current invocation cycle; callers
// must not retry it.
type AuthServiceError struct {
	Err error
}

func (e *AuthServiceError) Error() string {
	return fmt.Sprintf("auth service rejected credential refresh: %v", e.Err)
}

func (e *AuthServiceError) Unwrap() error {
	return e.Err
}

// Manager orchestrates a bearer token refresh against the secret store and
// the token issuer. It takes no lock: the retry discipline above it ensures
// at most one refresh per invocation cycle, and concurrent refreshes of the
// same key resolve last-writer-wins.
type Manager struct {
	store  *Store
	issuer TokenIssuer
	logger *logging.Logger
}

// NewManager creates a Manager.
func NewManager(store *Store, issuer TokenIssuer, logger *logging.Logger) *Manager {
	return &Manager{store: store, issuer: issuer, logger: logger}
}

// Refresh obtains a new bearer token with the stored username/password and
// persists it back into the bundle, leaving all other fields unchanged.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	bundle, err := m.store.Load(ctx)
	if err != nil {
		return "", err
	}

	token, err := m.issuer.IssueToken(ctx, bundle.ClientID, bundle.Username, bundle.Password)
	if err != nil {
		return "", &AuthServiceError{Err: err}
	}

	if err := m.store.SaveBearerToken(ctx, bundle, token); err != nil {
		return "", err
	}

	m.logger.Success("bearer token refreshed for secret %s", m.store.SecretID())
	return token, nil
}

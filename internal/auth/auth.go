// Package auth stores an optional bearer token for the posts API.
package auth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/basecamp/postbrowser/internal/config"
	"github.com/basecamp/postbrowser/internal/output"
)

// TokenEnv overrides any stored token.
const TokenEnv = "POSTBROWSER_TOKEN"

// Token sources reported by Status.
const (
	SourceNone    = "none"
	SourceEnv     = "env"
	SourceKeyring = "keyring"
	SourceFile    = "file"
)

// Status describes the credentials in effect for an origin.
type Status struct {
	Origin        string    `json:"origin"`
	Authenticated bool      `json:"authenticated"`
	Source        string    `json:"source"`
	Since         time.Time `json:"since,omitzero"`
}

// Manager resolves the bearer token for the configured API. The API works
// without one, so a missing token is not an error.
type Manager struct {
	origin string
	store  *Store
	now    func() time.Time

	mu     sync.Mutex
	cached *Credentials
}

// NewManager creates a manager for baseURL backed by store.
func NewManager(baseURL string, store *Store) *Manager {
	return &Manager{
		origin: config.NormalizeBaseURL(baseURL),
		store:  store,
		now:    time.Now,
	}
}

// Origin returns the normalized API origin credentials are keyed by.
func (m *Manager) Origin() string { return m.origin }

// Token returns the bearer token, or "" when none is configured.
func (m *Manager) Token(context.Context) (string, error) {
	if token := os.Getenv(TokenEnv); token != "" {
		return token, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cached == nil {
		creds, err := m.store.Load(m.origin)
		if err != nil {
			return "", nil //nolint:nilerr // anonymous access
		}
		m.cached = creds
	}
	return m.cached.AccessToken, nil
}

// Login stores token for the origin.
func (m *Manager) Login(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return output.ErrUsage("token must not be empty")
	}

	creds := &Credentials{AccessToken: token, CreatedAt: m.now().UTC()}
	if err := m.store.Save(m.origin, creds); err != nil {
		return fmt.Errorf("could not store credentials: %w", err)
	}

	m.mu.Lock()
	m.cached = creds
	m.mu.Unlock()
	return nil
}

// Logout removes the stored token. The environment token, if any, stays in effect.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.cached = nil
	m.mu.Unlock()

	if err := m.store.Delete(m.origin); err != nil {
		return fmt.Errorf("could not remove credentials: %w", err)
	}
	return nil
}

// Status reports where the active token comes from.
func (m *Manager) Status() Status {
	st := Status{Origin: m.origin, Source: SourceNone}
	if os.Getenv(TokenEnv) != "" {
		st.Authenticated = true
		st.Source = SourceEnv
		return st
	}

	creds, err := m.store.Load(m.origin)
	if err != nil || creds.AccessToken == "" {
		return st
	}
	st.Authenticated = true
	st.Since = creds.CreatedAt
	st.Source = SourceFile
	if m.store.UsingKeyring() {
		st.Source = SourceKeyring
	}
	return st
}

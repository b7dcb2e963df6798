// ABOUTME: Session manager restoring, establishing and clearing the bearer token
// ABOUTME: The token is persisted only after identity and authorization checks pass

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/2389/edushare/internal/api"
	"github.com/2389/edushare/internal/busy"
	"github.com/2389/edushare/internal/localstore"
	"github.com/2389/edushare/internal/validate"
)

// ErrIdentityMismatch is returned when the token's subject differs from the
// identity the server reports for it.
var ErrIdentityMismatch = errors.New("token subject does not match identity")

// ErrNotLoggedIn is returned by operations that need a current user.
var ErrNotLoggedIn = errors.New("not logged in")

// Credentials is the login form.
type Credentials struct {
	Phone    string `json:"phone" validate:"required,phone"`
	Password string `json:"password" validate:"required"`
}

// Manager holds the session of one console. It is safe for concurrent use.
type Manager struct {
	client *api.Client
	kv     localstore.KV
	key    string
	authz  Authorizer
	logger *slog.Logger

	login busy.Flag

	mu    sync.RWMutex
	token string
	user  *api.User
}

// NewManager creates a manager persisting its token under key.
// A nil authz behaves like AllowAll.
func NewManager(client *api.Client, kv localstore.KV, key string, authz Authorizer) *Manager {
	if authz == nil {
		authz = AllowAll
	}
	return &Manager{
		client: client,
		kv:     kv,
		key:    key,
		authz:  authz,
		logger: slog.Default().With("component", "session", "key", key),
	}
}

// Restore reinstates a persisted session. Any failure clears the stored
// token and reports false; it never returns an error.
func (m *Manager) Restore(ctx context.Context) bool {
	token, err := m.kv.Get(ctx, m.key)
	if err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			m.logger.Warn("reading stored token", "error", err)
		}
		return false
	}
	if token == "" {
		return false
	}

	user, err := m.identify(ctx, token)
	if err != nil {
		m.logger.Info("stored session rejected", "error", err)
		m.clear(ctx)
		return false
	}

	m.mu.Lock()
	m.token = token
	m.user = user
	m.mu.Unlock()

	m.logger.Debug("session restored", "user_id", user.ID)
	return true
}

// Login authenticates, identifies and authorizes a user, then persists the token.
// On any failure the session is left logged out and nothing is persisted.
// Malformed credentials fail locally without touching the current session.
func (m *Manager) Login(ctx context.Context, phone, password string) (*api.LoginResult, error) {
	if err := validate.Struct(Credentials{Phone: phone, Password: password}); err != nil {
		return nil, err
	}
	if !m.login.TryAcquire() {
		return nil, busy.ErrBusy
	}
	defer m.login.Release()

	m.mu.Lock()
	m.token = ""
	m.user = nil
	m.mu.Unlock()
	m.client.ClearToken()

	res, err := m.client.Login(ctx, phone, password)
	if err != nil {
		return nil, err
	}

	user, err := m.identify(ctx, res.AccessToken)
	if err != nil {
		m.client.ClearToken()
		return nil, err
	}

	if err := m.kv.Set(ctx, m.key, res.AccessToken); err != nil {
		m.client.ClearToken()
		return nil, fmt.Errorf("persisting token: %w", err)
	}

	m.mu.Lock()
	m.token = res.AccessToken
	m.user = user
	m.mu.Unlock()

	m.logger.Info("logged in", "user_id", user.ID)
	return res, nil
}

// identify attaches token to the client and verifies the identity behind it.
// The client credential is left set on success.
func (m *Manager) identify(ctx context.Context, token string) (*api.User, error) {
	m.client.SetToken(token)

	user, err := m.client.Me(ctx)
	if err != nil {
		m.client.ClearToken()
		return nil, fmt.Errorf("identifying user: %w", err)
	}
	if err := checkSubject(token, user.ID); err != nil {
		m.client.ClearToken()
		return nil, err
	}
	if err := m.authz.Authorize(ctx, user); err != nil {
		m.client.ClearToken()
		return nil, err
	}
	return user, nil
}

// checkSubject compares the unverified sub claim of a JWT with id.
// Tokens that are not JWTs, or carry no sub, are not checked.
func checkSubject(token string, id int64) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	var sub string
	switch v := claims["sub"].(type) {
	case string:
		sub = v
	case float64:
		sub = strconv.FormatInt(int64(v), 10)
	default:
		return nil
	}
	if sub != strconv.FormatInt(id, 10) {
		return fmt.Errorf("%w: token sub %q, user %d", ErrIdentityMismatch, sub, id)
	}
	return nil
}

// Logout clears the token from memory, storage and the client.
func (m *Manager) Logout(ctx context.Context) {
	m.clear(ctx)
	m.logger.Info("logged out")
}

func (m *Manager) clear(ctx context.Context) {
	m.mu.Lock()
	m.token = ""
	m.user = nil
	m.mu.Unlock()
	m.client.ClearToken()

	if err := m.kv.Delete(ctx, m.key); err != nil && !errors.Is(err, localstore.ErrNotFound) {
		m.logger.Warn("deleting stored token", "error", err)
	}
}

// Refresh re-fetches the current user, e.g. after points changed.
// A 401 ends the session.
func (m *Manager) Refresh(ctx context.Context) (*api.User, error) {
	if !m.LoggedIn() {
		return nil, ErrNotLoggedIn
	}

	user, err := m.client.Me(ctx)
	if err != nil {
		if api.IsUnauthorized(err) {
			m.logger.Info("session expired")
			m.clear(ctx)
		}
		return nil, fmt.Errorf("refreshing user: %w", err)
	}

	m.mu.Lock()
	m.user = user
	m.mu.Unlock()

	u := *user
	return &u, nil
}

// LoggedIn reports whether a session is established.
func (m *Manager) LoggedIn() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token != "" && m.user != nil
}

// CurrentUser returns a copy of the current user, or nil when logged out.
func (m *Manager) CurrentUser() *api.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Token returns the session token, or "" when logged out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// Expiry returns the unverified exp claim of the session token, if any.
func (m *Manager) Expiry() (time.Time, bool) {
	token := m.Token()
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

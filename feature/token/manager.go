package token

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"channel-manager/core/provider"
	"channel-manager/core/secret"
	"channel-manager/feature/connection"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// SecretSource resolves and rotates the refresh credentials of a connection.
type SecretSource interface {
	Credentials(ctx context.Context, ref, tokenType string) (*secret.Credentials, error)
	RotateRefreshToken(ctx context.Context, ref, tokenType, refreshToken string) error
}

// ConnectionSource resolves connections and records token use on them.
type ConnectionSource interface {
	Get(ctx context.Context, id uint) (*connection.Connection, error)
	TouchTokenUse(ctx context.Context, id uint, at time.Time) error
}

// Manager hands out valid tokens, refreshing them ahead of expiry.
type Manager struct {
	tokens    *Store
	secrets   SecretSource
	conns     ConnectionSource
	refresher Refresher
	logger    *zap.Logger
	buffer    time.Duration
	now       func() time.Time

	group   singleflight.Group
	mu      sync.Mutex
	running map[string]int
}

// Option customizes a Manager.
type Option func(*Manager)

// WithBuffer overrides the refresh lookahead.
func WithBuffer(d time.Duration) Option {
	return func(m *Manager) { m.buffer = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a token manager.
func NewManager(tokens *Store, secrets SecretSource, conns ConnectionSource, refresher Refresher, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		tokens:    tokens,
		secrets:   secrets,
		conns:     conns,
		refresher: refresher,
		logger:    logger,
		buffer:    DefaultBuffer,
		now:       time.Now,
		running:   map[string]int{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetValidToken returns a token of typ that is outside the refresh buffer,
// refreshing first when the stored one is unset, near expiry or expired.
func (m *Manager) GetValidToken(ctx context.Context, connectionID uint, typ Type) (*Token, error) {
	tok, err := m.tokens.Get(ctx, connectionID, typ)
	if err != nil {
		return nil, err
	}

	state := StateOf(tok, m.now(), m.buffer)
	if !state.Usable() {
		m.logger.Debug("Token needs refresh",
			zap.Uint("connection_id", connectionID),
			zap.String("type", string(typ)),
			zap.String("state", string(state)))

		if tok, err = m.Refresh(ctx, connectionID, typ); err != nil {
			return nil, err
		}
		if !StateOf(tok, m.now(), m.buffer).Usable() {
			return nil, fmt.Errorf("%w: refreshed %s token expires within %s", ErrAuth, typ, m.buffer)
		}
	}

	m.markUsed(ctx, connectionID, typ)
	return tok, nil
}

// Refresh obtains a new token of typ. Concurrent refreshes of the same token
// inside this process share one provider call.
func (m *Manager) Refresh(ctx context.Context, connectionID uint, typ Type) (*Token, error) {
	key := refreshKey(connectionID, typ)
	v, err, _ := m.group.Do(key, func() (any, error) {
		m.track(key, 1)
		defer m.track(key, -1)
		return m.refresh(ctx, connectionID, typ)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Token), nil
}

// Refreshing reports whether a refresh of typ is in flight in this process.
func (m *Manager) Refreshing(connectionID uint, typ Type) bool {
	return m.inflight(refreshKey(connectionID, typ))
}

func (m *Manager) inflight(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running[key] > 0
}

func (m *Manager) track(key string, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running[key] += delta
	if m.running[key] <= 0 {
		delete(m.running, key)
	}
}

func refreshKey(connectionID uint, typ Type) string {
	return fmt.Sprintf("%d/%s", connectionID, typ)
}

func (m *Manager) refresh(ctx context.Context, connectionID uint, typ Type) (*Token, error) {
	conn, err := m.conns.Get(ctx, connectionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	creds, err := m.secrets.Credentials(ctx, conn.SecretRef, string(typ))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	if creds.RefreshToken == "" {
		return nil, fmt.Errorf("%w: connection %d has no %s refresh credential", ErrAuth, connectionID, typ)
	}

	issued := m.now()
	ot, err := m.refresher.Refresh(ctx, creds, conn.Scopes)
	if err != nil {
		if provider.IsTimeout(err) {
			err = fmt.Errorf("%w: token endpoint: %v", provider.ErrTimeout, err)
		}
		m.logger.Error("Token refresh failed",
			zap.Uint("connection_id", connectionID),
			zap.String("type", string(typ)),
			zap.Bool("retryable", provider.IsRetryable(err)),
			zap.Error(err))
		return nil, &RefreshError{ConnectionID: connectionID, Type: typ, Err: err}
	}

	if ot.RefreshToken != "" && ot.RefreshToken != creds.RefreshToken {
		if err := m.secrets.RotateRefreshToken(ctx, conn.SecretRef, string(typ), ot.RefreshToken); err != nil {
			m.logger.Error("Failed to store rotated refresh token",
				zap.Uint("connection_id", connectionID), zap.Error(err))
		}
	}

	tok := fromOAuth(connectionID, typ, ot, issued, conn.Scopes)
	stored, err := m.tokens.CompareAndSwap(ctx, tok)
	if err != nil {
		return nil, err
	}
	if !stored {
		m.logger.Info("Newer token already stored, using it",
			zap.Uint("connection_id", connectionID), zap.String("type", string(typ)))
		current, err := m.tokens.Get(ctx, connectionID, typ)
		if err != nil || current == nil {
			return tok, nil
		}
		return current, nil
	}
	return tok, nil
}

// Seed stores an access token obtained outside the refresh flow (e.g. when a property is linked).
func (m *Manager) Seed(ctx context.Context, connectionID uint, typ Type, ot *oauth2.Token, scopes []string) (*Token, error) {
	tok := fromOAuth(connectionID, typ, ot, m.now(), scopes)
	if _, err := m.tokens.CompareAndSwap(ctx, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// Diagnostic is the read-only view of one token.
type Diagnostic struct {
	Type            Type       `json:"type"`
	Scopes          []string   `json:"scopes"`
	ExpiresAt       *time.Time `json:"expires_at"`
	LastUsedAt      *time.Time `json:"last_used_at"`
	PropertiesCount int        `json:"properties_count"`
	IsExpired       bool       `json:"is_expired"`
	State           State      `json:"state"`
}

// Diagnostics lists the tokens of a connection. It never refreshes.
func (m *Manager) Diagnostics(ctx context.Context, connectionID uint) ([]Diagnostic, error) {
	toks, err := m.tokens.List(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	out := make([]Diagnostic, 0, len(toks))
	for i := range toks {
		t := &toks[i]
		// List clears values; classify on expiry only.
		masked := *t
		masked.Value = "sealed"
		base := StateOf(&masked, now, m.buffer)
		state := base
		if m.Refreshing(connectionID, t.Type) {
			state = StateRefreshing
		}
		out = append(out, Diagnostic{
			Type:            t.Type,
			Scopes:          t.Scopes,
			ExpiresAt:       t.ExpiresAt,
			LastUsedAt:      t.LastUsedAt,
			PropertiesCount: t.PropertiesCount,
			IsExpired:       !base.Usable(),
			State:           state,
		})
	}
	return out, nil
}

func (m *Manager) markUsed(ctx context.Context, connectionID uint, typ Type) {
	at := m.now()
	if err := m.tokens.MarkUsed(ctx, connectionID, typ, at); err != nil {
		m.logger.Warn("Failed to record token use", zap.Uint("connection_id", connectionID), zap.Error(err))
	}
	if err := m.conns.TouchTokenUse(ctx, connectionID, at); err != nil {
		m.logger.Warn("Failed to record connection token use", zap.Uint("connection_id", connectionID), zap.Error(err))
	}
}

func fromOAuth(connectionID uint, typ Type, ot *oauth2.Token, issued time.Time, scopes []string) *Token {
	tok := &Token{
		ConnectionID:    connectionID,
		Type:            typ,
		Value:           ot.AccessToken,
		Scopes:          grantedScopes(ot, scopes),
		IssuedAt:        issued.UTC(),
		Version:         issued.UnixNano(),
		PropertiesCount: propertiesCount(ot),
	}
	if !ot.Expiry.IsZero() {
		exp := ot.Expiry.UTC()
		tok.ExpiresAt = &exp
	}
	return tok
}

// IsAuthFailure reports whether err means the operation cannot authenticate at all.
func IsAuthFailure(err error) bool {
	var re *RefreshError
	return errors.Is(err, ErrAuth) || errors.As(err, &re)
}

package token

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"channel-manager/core/provider"
	"channel-manager/core/provider/providertest"
	"channel-manager/core/secret"
	"channel-manager/feature/connection"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	tokens  *Store
	secrets *secret.Store
	conns   *connection.Store
	conn    *connection.Connection
	ref     string
}

func setup(t *testing.T) *fixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&Token{}, &secret.Secret{}, &connection.Connection{}))

	sealer, err := secret.NewSealer("test-key")
	require.NoError(t, err)

	f := &fixture{
		db:      db,
		tokens:  NewStore(db, sealer),
		secrets: secret.NewStore(db, sealer),
		conns:   connection.NewStore(db),
	}

	ctx := context.Background()
	sec, err := f.secrets.Create(ctx, "client", "client-secret", map[string]string{
		string(TypeRead):  "refresh-read",
		string(TypeWrite): "refresh-write",
	})
	require.NoError(t, err)
	f.ref = sec.Ref

	f.conn, err = f.conns.Link(ctx, 1, "channel", "P-100", []string{"read:bookings"}, sec.Ref)
	require.NoError(t, err)
	return f
}

func (f *fixture) manager(r Refresher, opts ...Option) *Manager {
	return NewManager(f.tokens, f.secrets, f.conns, r, zap.NewNop(), opts...)
}

func (f *fixture) store(t *testing.T, value string, expires time.Time, version int64) {
	ok, err := f.tokens.CompareAndSwap(context.Background(), &Token{
		ConnectionID: f.conn.ID,
		Type:         TypeRead,
		Value:        value,
		ExpiresAt:    &expires,
		IssuedAt:     time.Unix(0, version),
		Version:      version,
	})
	require.NoError(t, err)
	require.True(t, ok)
}

type countingRefresher struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (r *countingRefresher) Refresh(ctx context.Context, creds *secret.Credentials, scopes []string) (*oauth2.Token, error) {
	n := r.calls.Add(1)
	if r.release != nil {
		<-r.release
	}
	if r.err != nil {
		return nil, r.err
	}
	return &oauth2.Token{
		AccessToken: "fake-" + string(rune('0'+n)),
		Expiry:      time.Now().Add(time.Hour),
	}, nil
}

func TestStateOf(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time { v := now.Add(d); return &v }

	tests := []struct {
		name string
		tok  *Token
		want State
	}{
		{"Nil", nil, StateUnset},
		{"Empty Value", &Token{}, StateUnset},
		{"No Expiry", &Token{Value: "x"}, StateValid},
		{"Valid", &Token{Value: "x", ExpiresAt: at(time.Hour)}, StateValid},
		{"Inside Buffer", &Token{Value: "x", ExpiresAt: at(4 * time.Minute)}, StateNearExpiry},
		{"Buffer Boundary", &Token{Value: "x", ExpiresAt: at(DefaultBuffer)}, StateNearExpiry},
		{"Expired", &Token{Value: "x", ExpiresAt: at(-time.Second)}, StateExpired},
		{"Expires Now", &Token{Value: "x", ExpiresAt: at(0)}, StateExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StateOf(tt.tok, now, DefaultBuffer)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want == StateValid, got.Usable())
		})
	}
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("write")
	require.NoError(t, err)
	assert.Equal(t, TypeWrite, typ)

	_, err = ParseType("admin")
	assert.Error(t, err)
}

func TestStore_CompareAndSwap(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	f.store(t, "v100", exp, 100)

	ok, err := f.tokens.CompareAndSwap(ctx, &Token{ConnectionID: f.conn.ID, Type: TypeRead, Value: "v50", ExpiresAt: &exp, Version: 50})
	require.NoError(t, err)
	assert.False(t, ok, "older token must not replace a newer one")

	ok, err = f.tokens.CompareAndSwap(ctx, &Token{ConnectionID: f.conn.ID, Type: TypeRead, Value: "v100b", ExpiresAt: &exp, Version: 100})
	require.NoError(t, err)
	assert.False(t, ok, "equal version must not replace")

	ok, err = f.tokens.CompareAndSwap(ctx, &Token{ConnectionID: f.conn.ID, Type: TypeRead, Value: "v200", ExpiresAt: &exp, Version: 200})
	require.NoError(t, err)
	assert.True(t, ok)

	tok, err := f.tokens.Get(ctx, f.conn.ID, TypeRead)
	require.NoError(t, err)
	assert.Equal(t, "v200", tok.Value)

	var count int64
	f.db.Model(&Token{}).Count(&count)
	assert.Equal(t, int64(1), count, "one row per connection and type")
}

func TestStore_SealsValue(t *testing.T) {
	f := setup(t)
	f.store(t, "plain-access", time.Now().Add(time.Hour), 1)

	var raw Token
	require.NoError(t, f.db.First(&raw).Error)
	assert.NotEqual(t, "plain-access", raw.Value)

	list, err := f.tokens.List(context.Background(), f.conn.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Value)
}

func TestManager_GetValidToken(t *testing.T) {
	srv := providertest.New()
	t.Cleanup(srv.Close)
	srv.PropertiesCount = 3

	f := setup(t)
	m := f.manager(&OAuthRefresher{TokenURL: srv.Config().TokenURL})
	ctx := context.Background()

	t.Run("Unset Refreshes", func(t *testing.T) {
		tok, err := m.GetValidToken(ctx, f.conn.ID, TypeRead)
		require.NoError(t, err)
		assert.Equal(t, "access-1", tok.Value)
		assert.Equal(t, 3, tok.PropertiesCount)
		assert.Equal(t, []string{"read:bookings", "read:inventory", "write:inventory"}, tok.Scopes)
		assert.Equal(t, []string{"refresh-read"}, srv.RefreshSeen)
	})

	t.Run("Valid Is Reused", func(t *testing.T) {
		tok, err := m.GetValidToken(ctx, f.conn.ID, TypeRead)
		require.NoError(t, err)
		assert.Equal(t, "access-1", tok.Value)
		assert.Equal(t, 1, srv.Issued())

		stored, err := f.tokens.Get(ctx, f.conn.ID, TypeRead)
		require.NoError(t, err)
		assert.NotNil(t, stored.LastUsedAt)

		conn, err := f.conns.Get(ctx, f.conn.ID)
		require.NoError(t, err)
		assert.NotNil(t, conn.LastTokenUseAt)
	})

	t.Run("Types Are Independent", func(t *testing.T) {
		tok, err := m.GetValidToken(ctx, f.conn.ID, TypeWrite)
		require.NoError(t, err)
		assert.Equal(t, "access-2", tok.Value)
		assert.Equal(t, "refresh-write", srv.RefreshSeen[1])
	})
}

func TestManager_NearExpiryIsNeverReturned(t *testing.T) {
	srv := providertest.New()
	t.Cleanup(srv.Close)

	f := setup(t)
	f.store(t, "old", time.Now().Add(2*time.Minute), 1)

	m := f.manager(&OAuthRefresher{TokenURL: srv.Config().TokenURL})
	tok, err := m.GetValidToken(context.Background(), f.conn.ID, TypeRead)
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.Value)
	assert.True(t, tok.ExpiresAt.After(time.Now().Add(DefaultBuffer)))
}

func TestManager_ShortLivedRefreshIsAuthError(t *testing.T) {
	srv := providertest.New()
	t.Cleanup(srv.Close)
	srv.ExpiresIn = 60

	f := setup(t)
	m := f.manager(&OAuthRefresher{TokenURL: srv.Config().TokenURL})

	_, err := m.GetValidToken(context.Background(), f.conn.ID, TypeRead)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
}

func TestManager_RejectedRefreshKeepsPriorToken(t *testing.T) {
	srv := providertest.New()
	t.Cleanup(srv.Close)
	srv.RejectRefresh = true

	f := setup(t)
	f.store(t, "stale", time.Now().Add(-time.Minute), 1)

	m := f.manager(&OAuthRefresher{TokenURL: srv.Config().TokenURL})
	_, err := m.GetValidToken(context.Background(), f.conn.ID, TypeRead)
	require.Error(t, err)

	var re *RefreshError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, TypeRead, re.Type)
	assert.True(t, IsAuthFailure(err))
	assert.Equal(t, 1, srv.CallCount("POST /oauth/token"), "no inline retry")

	tok, err := f.tokens.Get(context.Background(), f.conn.ID, TypeRead)
	require.NoError(t, err)
	assert.Equal(t, "stale", tok.Value)
}

func TestManager_SlowTokenEndpointTimesOut(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(slow.Close)
	t.Cleanup(func() { close(release) })

	f := setup(t)
	m := f.manager(&OAuthRefresher{
		TokenURL:   slow.URL + "/oauth/token",
		HTTPClient: &http.Client{Timeout: 50 * time.Millisecond},
	})

	start := time.Now()
	_, err := m.GetValidToken(context.Background(), f.conn.ID, TypeRead)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	var re *RefreshError
	require.True(t, errors.As(err, &re))
	assert.ErrorIs(t, err, provider.ErrTimeout)
	assert.True(t, provider.IsRetryable(err))
	assert.True(t, IsAuthFailure(err))

	tok, err := f.tokens.Get(context.Background(), f.conn.ID, TypeRead)
	require.NoError(t, err)
	assert.Nil(t, tok, "nothing is stored after a timeout")
}

func TestOAuthRefresher_DefaultClientHasTimeout(t *testing.T) {
	assert.Equal(t, provider.DefaultTimeout, (&OAuthRefresher{}).client().Timeout)

	custom := &http.Client{Timeout: time.Second}
	assert.Same(t, custom, (&OAuthRefresher{HTTPClient: custom}).client())
}

func TestManager_RotatesRefreshToken(t *testing.T) {
	srv := providertest.New()
	t.Cleanup(srv.Close)
	srv.RotateRefresh = true

	f := setup(t)
	m := f.manager(&OAuthRefresher{TokenURL: srv.Config().TokenURL})
	ctx := context.Background()

	_, err := m.Refresh(ctx, f.conn.ID, TypeRead)
	require.NoError(t, err)

	creds, err := f.secrets.Credentials(ctx, f.ref, string(TypeRead))
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", creds.RefreshToken)

	_, err = m.Refresh(ctx, f.conn.ID, TypeRead)
	require.NoError(t, err)
	assert.Equal(t, []string{"refresh-read", "refresh-1"}, srv.RefreshSeen)
}

func TestManager_MissingRefreshCredential(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	sec, err := f.secrets.Create(ctx, "client", "secret", map[string]string{})
	require.NoError(t, err)
	conn, err := f.conns.Link(ctx, 2, "channel", "P-200", nil, sec.Ref)
	require.NoError(t, err)

	r := &countingRefresher{}
	_, err = f.manager(r).GetValidToken(ctx, conn.ID, TypeRead)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, int32(0), r.calls.Load())
}

func TestManager_UnknownConnection(t *testing.T) {
	f := setup(t)
	_, err := f.manager(&countingRefresher{}).GetValidToken(context.Background(), 999, TypeRead)
	assert.ErrorIs(t, err, ErrAuth)
}

func TestManager_ConcurrentRefreshesCoalesce(t *testing.T) {
	f := setup(t)
	r := &countingRefresher{release: make(chan struct{})}
	m := f.manager(r)

	var wg sync.WaitGroup
	values := make([]string, 8)
	errs := make([]error, 8)
	for i := range values {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := m.GetValidToken(context.Background(), f.conn.ID, TypeRead)
			errs[i] = err
			if tok != nil {
				values[i] = tok.Value
			}
		}(i)
	}

	require.Eventually(t, func() bool { return m.Refreshing(f.conn.ID, TypeRead) }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(r.release)
	wg.Wait()

	assert.Equal(t, int32(1), r.calls.Load())
	for i := range values {
		require.NoError(t, errs[i])
		assert.Equal(t, "fake-1", values[i])
	}
	assert.False(t, m.Refreshing(f.conn.ID, TypeRead))
}

func TestManager_NewerStoredTokenWins(t *testing.T) {
	f := setup(t)
	far := time.Now().Add(24 * time.Hour)
	f.store(t, "from-other-process", far, time.Now().Add(time.Hour).UnixNano())

	m := f.manager(&countingRefresher{})
	tok, err := m.Refresh(context.Background(), f.conn.ID, TypeRead)
	require.NoError(t, err)
	assert.Equal(t, "from-other-process", tok.Value)
}

func TestManager_Diagnostics(t *testing.T) {
	f := setup(t)
	f.store(t, "stale", time.Now().Add(-time.Minute), 1)

	m := f.manager(&countingRefresher{})
	_, err := m.Seed(context.Background(), f.conn.ID, TypeWrite, &oauth2.Token{
		AccessToken: "seeded",
		Expiry:      time.Now().Add(time.Hour),
	}, []string{"write:inventory"})
	require.NoError(t, err)

	diags, err := m.Diagnostics(context.Background(), f.conn.ID)
	require.NoError(t, err)
	require.Len(t, diags, 2)

	assert.Equal(t, TypeRead, diags[0].Type)
	assert.True(t, diags[0].IsExpired)
	assert.Equal(t, StateExpired, diags[0].State)

	assert.Equal(t, TypeWrite, diags[1].Type)
	assert.False(t, diags[1].IsExpired)
	assert.Equal(t, StateValid, diags[1].State)
	assert.Equal(t, []string{"write:inventory"}, diags[1].Scopes)
}

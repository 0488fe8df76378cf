package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	shared "github.com/fitline/server/pkg"
	"github.com/fitline/server/pkg/types"
)

// DefaultTokenTTL applies when the token endpoint omits expires_in.
const DefaultTokenTTL int64 = 3600

// TokenResponse is the provider-neutral result of a token grant.
// Empty RefreshToken or Scope means the provider did not rotate them.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	ExpiresIn    int64
}

type RefreshFunc func(ctx context.Context, refreshToken string) (*TokenResponse, error)
type ExchangeFunc func(ctx context.Context, code string) (*TokenResponse, error)

// Endpoint is the set of grant operations a provider supports.
type Endpoint struct {
	Refresh     RefreshFunc
	Exchange    ExchangeFunc
	AuthCodeURL func(state string) string
}

// CredentialStore is the slice of the document store the manager needs.
type CredentialStore interface {
	GetCredential(ctx context.Context, userID string, provider types.Provider) (*types.Credential, error)
	SetCredential(ctx context.Context, cred *types.Credential) error
}

// RefreshError reports a rejected or unreachable refresh. The stored
// credential is left untouched when this is returned.
type RefreshError struct {
	Provider types.Provider
	UserID   string
	Err      error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refresh %s token for user %s: %v", e.Provider, e.UserID, e.Err)
}

func (e *RefreshError) Unwrap() []error {
	return []error{shared.ErrRefreshFailed, e.Err}
}

// Manager hands out valid access tokens, refreshing at most once per
// (provider, user) no matter how many callers observe expiry together.
type Manager struct {
	store     CredentialStore
	endpoints map[types.Provider]Endpoint
	locks     *keyedLock
	lease     Lease
	logger    *slog.Logger

	now            func() time.Time
	skew           time.Duration
	refreshTimeout time.Duration
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLease(l Lease) Option {
	return func(m *Manager) { m.lease = l }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithSkew(d time.Duration) Option {
	return func(m *Manager) { m.skew = d }
}

func WithRefreshTimeout(d time.Duration) Option {
	return func(m *Manager) { m.refreshTimeout = d }
}

func NewManager(store CredentialStore, endpoints map[types.Provider]Endpoint, opts ...Option) *Manager {
	m := &Manager{
		store:          store,
		endpoints:      endpoints,
		locks:          newKeyedLock(),
		logger:         slog.Default(),
		now:            time.Now,
		skew:           shared.TokenExpirySkewSeconds * time.Second,
		refreshTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetValidAccessToken returns a token that stays valid for at least the
// configured skew. The fast path takes no lock.
func (m *Manager) GetValidAccessToken(ctx context.Context, provider types.Provider, userID string) (string, error) {
	cred, err := m.load(ctx, provider, userID)
	if err != nil {
		return "", err
	}
	if cred.ValidAt(m.now(), m.skew) {
		return cred.AccessToken, nil
	}

	cred, err = m.refresh(ctx, provider, userID, func(cur *types.Credential) bool {
		return !cur.ValidAt(m.now(), m.skew)
	})
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// ForceRefresh is called after a resource server rejected staleAccessToken.
// If another caller already replaced it, the stored token is returned as is.
func (m *Manager) ForceRefresh(ctx context.Context, provider types.Provider, userID, staleAccessToken string) (string, error) {
	cred, err := m.refresh(ctx, provider, userID, func(cur *types.Credential) bool {
		return cur.AccessToken == staleAccessToken || !cur.ValidAt(m.now(), m.skew)
	})
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// Connect completes the authorization_code grant and stores the credential.
func (m *Manager) Connect(ctx context.Context, provider types.Provider, userID, code string) (*types.Credential, error) {
	endpoint, ok := m.endpoints[provider]
	if !ok || endpoint.Exchange == nil {
		return nil, fmt.Errorf("%w: no oauth client for %s", shared.ErrConfigurationMissing, provider)
	}
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code is empty", shared.ErrInvalidInput)
	}

	unlock, err := m.locks.Lock(ctx, lockKey(provider, userID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	res, err := endpoint.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange %s authorization code: %w", provider, err)
	}
	if res.AccessToken == "" {
		return nil, fmt.Errorf("exchange %s authorization code: %w: empty access token", provider, shared.ErrUpstream)
	}

	cred := m.apply(&types.Credential{Provider: provider, UserID: userID}, res)
	if err := m.store.SetCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("store %s credential: %w", provider, err)
	}
	m.logger.Info("Provider connected", "provider", provider, "user_id", userID, "expires_at", cred.ExpiresAt)
	return cred, nil
}

// AuthCodeURL returns the provider's consent page for state.
func (m *Manager) AuthCodeURL(provider types.Provider, state string) (string, error) {
	endpoint, ok := m.endpoints[provider]
	if !ok || endpoint.AuthCodeURL == nil {
		return "", fmt.Errorf("%w: no oauth client for %s", shared.ErrConfigurationMissing, provider)
	}
	return endpoint.AuthCodeURL(state), nil
}

// Credential returns the stored credential without refreshing it.
func (m *Manager) Credential(ctx context.Context, provider types.Provider, userID string) (*types.Credential, error) {
	return m.load(ctx, provider, userID)
}

func (m *Manager) refresh(ctx context.Context, provider types.Provider, userID string, needed func(*types.Credential) bool) (*types.Credential, error) {
	endpoint, ok := m.endpoints[provider]
	if !ok || endpoint.Refresh == nil {
		return nil, &RefreshError{Provider: provider, UserID: userID, Err: errors.New("no refresh endpoint configured")}
	}

	key := lockKey(provider, userID)
	unlock, err := m.locks.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Once entered, the critical section runs to completion regardless of the caller.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.refreshTimeout)
	defer cancel()

	if m.lease != nil {
		release, err := m.lease.Acquire(cctx, key)
		if err != nil {
			return nil, &RefreshError{Provider: provider, UserID: userID, Err: fmt.Errorf("acquire lease: %w", err)}
		}
		defer release()
	}

	cur, err := m.load(cctx, provider, userID)
	if err != nil {
		return nil, err
	}
	if !needed(cur) {
		return cur, nil
	}
	if cur.RefreshToken == "" {
		return nil, &RefreshError{Provider: provider, UserID: userID, Err: errors.New("no refresh token on file")}
	}

	start := m.now()
	res, err := endpoint.Refresh(cctx, cur.RefreshToken)
	if err != nil {
		m.logger.Warn("Token refresh failed", "provider", provider, "user_id", userID, "error", err)
		return nil, &RefreshError{Provider: provider, UserID: userID, Err: err}
	}
	if res == nil || res.AccessToken == "" {
		return nil, &RefreshError{Provider: provider, UserID: userID, Err: errors.New("token endpoint returned no access token")}
	}

	next := m.apply(cur, res)
	if err := m.store.SetCredential(cctx, next); err != nil {
		return nil, fmt.Errorf("store refreshed %s credential: %w", provider, err)
	}

	m.logger.Info("Token refreshed",
		"provider", provider,
		"user_id", userID,
		"expires_at", next.ExpiresAt,
		"rotated", res.RefreshToken != "" && res.RefreshToken != cur.RefreshToken,
		"duration_ms", m.now().Sub(start).Milliseconds(),
	)
	return next, nil
}

func (m *Manager) load(ctx context.Context, provider types.Provider, userID string) (*types.Credential, error) {
	cred, err := m.store.GetCredential(ctx, userID, provider)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s for user %s", shared.ErrNotConnected, provider, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s credential: %w", provider, err)
	}
	if cred == nil || (cred.AccessToken == "" && cred.RefreshToken == "") {
		return nil, fmt.Errorf("%w: %s for user %s", shared.ErrNotConnected, provider, userID)
	}
	return cred, nil
}

// apply merges a grant response into a copy of cur. Fields the provider did
// not send keep their previous values.
func (m *Manager) apply(cur *types.Credential, res *TokenResponse) *types.Credential {
	now := m.now()
	next := *cur
	next.AccessToken = res.AccessToken
	if res.RefreshToken != "" {
		next.RefreshToken = res.RefreshToken
	}
	if res.TokenType != "" {
		next.TokenType = res.TokenType
	} else if next.TokenType == "" {
		next.TokenType = "Bearer"
	}
	if res.Scope != "" {
		next.Scope = res.Scope
	}
	ttl := res.ExpiresIn
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	next.ExpiresAt = now.Unix() + ttl
	next.UpdatedAt = now
	return &next
}

func lockKey(provider types.Provider, userID string) string {
	return string(provider) + "/" + userID
}

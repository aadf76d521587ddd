package authsdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/authclient/pkg/jwtx"
	"github.com/aussiebroadwan/authclient/pkg/slogx"
)

// DefaultRefreshBuffer is how long before expiry a Session refreshes its
// access token.
const DefaultRefreshBuffer = 30 * time.Second

// SDKClient is a client for a GoTrue-compatible authentication provider.
// It provides access to unauthenticated operations and creates Sessions.
type SDKClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client

	// Storage persists the session that was last established. Nil
	// disables persistence.
	Storage Storage

	Logger *slog.Logger

	// RefreshBuffer is subtracted from the token expiry when deciding
	// whether a refresh is due.
	RefreshBuffer time.Duration

	now func() time.Time

	listenersMu  sync.RWMutex
	listeners    map[int]func(Event)
	nextListener int
}

// Option configures an SDKClient.
type Option func(*SDKClient)

// WithAPIKey sets the apikey header sent on every request.
func WithAPIKey(key string) Option {
	return func(c *SDKClient) { c.APIKey = key }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *SDKClient) { c.HTTPClient = hc }
}

// WithStorage enables session persistence.
func WithStorage(s Storage) Option {
	return func(c *SDKClient) { c.Storage = s }
}

// WithLogger sets the logger used for request and persistence logging.
func WithLogger(l *slog.Logger) Option {
	return func(c *SDKClient) { c.Logger = l }
}

// WithRefreshBuffer overrides DefaultRefreshBuffer.
func WithRefreshBuffer(d time.Duration) Option {
	return func(c *SDKClient) { c.RefreshBuffer = d }
}

// NewSDKClient creates a new provider client.
func NewSDKClient(baseURL string, opts ...Option) *SDKClient {
	c := &SDKClient{
		BaseURL:       strings.TrimSuffix(baseURL, "/"),
		RefreshBuffer: DefaultRefreshBuffer,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{
			Timeout:   10 * time.Second,
			Transport: &slogx.Transport{Logger: c.Logger},
		}
	}
	return c
}

// ============================================================================
// Sign In / Sign Up
// ============================================================================

// SignInWithPassword exchanges an email and password for a session.
func (c *SDKClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/token?grant_type=password",
		PasswordCredentials{Email: email, Password: password}, "")
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp); err != nil {
		return nil, err
	}

	s := newSession(c, &tokenResp)
	c.persist(ctx, s.Snapshot())
	return s, nil
}

// SignUpResult is the outcome of SignUp. Session is nil while the email
// address awaits confirmation.
type SignUpResult struct {
	User    User
	Session *Session
}

// SignUp registers a new account. redirectTo, when set, is where the
// confirmation link lands.
func (c *SDKClient) SignUp(ctx context.Context, req SignUpRequest, redirectTo string) (*SignUpResult, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, withRedirect("/signup", redirectTo), req, "")
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := decodeJSON(resp, &raw); err != nil {
		return nil, err
	}

	// An auto-confirming provider answers with a session, otherwise with
	// the bare user.
	var probe struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if probe.AccessToken != "" {
		var tokenResp TokenResponse
		if err := json.Unmarshal(raw, &tokenResp); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		s := newSession(c, &tokenResp)
		c.persist(ctx, s.Snapshot())

		result := &SignUpResult{Session: s}
		if tokenResp.User != nil {
			result.User = *tokenResp.User
		}
		return result, nil
	}

	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &SignUpResult{User: user}, nil
}

// ============================================================================
// Recovery
// ============================================================================

// Recover asks the provider to send a password recovery link to email.
func (c *SDKClient) Recover(ctx context.Context, email, redirectTo string) error {
	resp, err := c.doRequest(ctx, http.MethodPost, withRedirect("/recover", redirectTo),
		RecoverRequest{Email: email}, "")
	if err != nil {
		return err
	}
	return checkStatus(resp)
}

// FollowVerifyLink requests a /verify link without following the redirect
// and returns the address the provider sends the browser to. The session
// or error travels in that address's fragment; see ParseFragment.
func (c *SDKClient) FollowVerifyLink(ctx context.Context, link string) (*url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.APIKey != "" {
		req.Header.Set("apikey", c.APIKey)
	}

	hc := *c.HTTPClient
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "GET /verify", Err: err}
	}

	if resp.StatusCode < 300 || resp.StatusCode > 399 {
		if err := checkStatus(resp); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("verify link did not redirect (status %d)", resp.StatusCode)
	}
	resp.Body.Close()

	loc, err := resp.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to read redirect location: %w", err)
	}
	return loc, nil
}

// SessionFromFragment builds a session from tokens delivered in an
// address fragment. An expired access token is refreshed first, then the
// session is checked against GET /user.
func (c *SDKClient) SessionFromFragment(ctx context.Context, f Fragment) (*Session, error) {
	if err := f.Err(); err != nil {
		return nil, err
	}
	if !f.HasTokens() {
		return nil, ErrNoSession
	}

	expiresAt, err := c.fragmentExpiry(f)
	if err != nil {
		return nil, err
	}

	s := &Session{
		client:       c,
		accessToken:  f.AccessToken,
		refreshToken: f.RefreshToken,
		tokenType:    f.TokenType,
		expiresAt:    expiresAt,
	}
	if _, err := s.GetUser(ctx); err != nil {
		return nil, err
	}

	c.persist(ctx, s.Snapshot())
	return s, nil
}

func (c *SDKClient) fragmentExpiry(f Fragment) (time.Time, error) {
	switch {
	case f.ExpiresAt > 0:
		return time.Unix(f.ExpiresAt, 0), nil
	case f.ExpiresIn > 0:
		return c.now().Add(time.Duration(f.ExpiresIn) * time.Second), nil
	}

	claims, err := jwtx.ParseUnverified(f.AccessToken)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read token expiry: %w", err)
	}
	return claims.Expiry(), nil
}

// ============================================================================
// Tokens
// ============================================================================

// RefreshGrant exchanges a refresh token for a new token pair. The old
// refresh token is consumed.
func (c *SDKClient) RefreshGrant(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/token?grant_type=refresh_token",
		RefreshTokenRequest{RefreshToken: refreshToken}, "")
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

// RestoreSession loads the persisted session, refreshing it when it is
// about to expire. It returns ErrNoSession when nothing usable is stored.
func (c *SDKClient) RestoreSession(ctx context.Context) (*Session, error) {
	if c.Storage == nil {
		return nil, ErrNoSession
	}

	stored, err := c.Storage.Load(ctx)
	if err != nil {
		return nil, err
	}

	s := &Session{
		client:       c,
		accessToken:  stored.AccessToken,
		refreshToken: stored.RefreshToken,
		tokenType:    stored.TokenType,
		expiresAt:    stored.ExpiresAt,
		user:         stored.User,
	}
	if _, err := s.getValidToken(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSessionFromTokens creates a session from existing tokens. The
// session still refreshes itself when the access token expires.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string, expiresAt time.Time) *Session {
	return &Session{
		client:       c,
		accessToken:  accessToken,
		refreshToken: refreshToken,
		tokenType:    "bearer",
		expiresAt:    expiresAt,
	}
}

// ============================================================================
// Health
// ============================================================================

// Health reports the provider's name and version.
func (c *SDKClient) Health(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/health", nil, "")
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// ============================================================================
// Persistence
// ============================================================================

func (c *SDKClient) persist(ctx context.Context, snap StoredSession) {
	if c.Storage == nil {
		return
	}
	if err := c.Storage.Save(ctx, snap); err != nil {
		c.Logger.Warn("failed to persist session", "err", err)
	}
}

func (c *SDKClient) forget(ctx context.Context) {
	if c.Storage == nil {
		return
	}
	if err := c.Storage.Delete(ctx); err != nil && !errors.Is(err, ErrNoSession) {
		c.Logger.Warn("failed to delete persisted session", "err", err)
	}
}

func withRedirect(path, redirectTo string) string {
	if redirectTo == "" {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "redirect_to=" + url.QueryEscape(redirectTo)
}

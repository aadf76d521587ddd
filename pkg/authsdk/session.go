package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Session represents an authenticated session with automatic token refresh.
// All Session methods automatically handle token expiration and refresh when needed.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	tokenType    string
	expiresAt    time.Time
	user         *User
}

// newSession creates a new authenticated session from a token response.
func newSession(client *SDKClient, tokenResp *TokenResponse) *Session {
	s := &Session{client: client}
	s.applyLocked(tokenResp)
	return s
}

func (s *Session) applyLocked(tokenResp *TokenResponse) {
	s.accessToken = tokenResp.AccessToken
	s.refreshToken = tokenResp.RefreshToken
	s.tokenType = tokenResp.TokenType
	if tokenResp.ExpiresAt > 0 {
		s.expiresAt = time.Unix(tokenResp.ExpiresAt, 0)
	} else {
		s.expiresAt = s.client.now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}
	if tokenResp.User != nil {
		u := *tokenResp.User
		s.user = &u
	}
}

func (s *Session) freshLocked() bool {
	return s.accessToken != "" && s.client.now().Add(s.client.RefreshBuffer).Before(s.expiresAt)
}

// getValidToken returns a valid access token, automatically refreshing if
// it expires within the client's refresh buffer.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.freshLocked() {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	return s.refresh(ctx, false)
}

// Refresh rotates the token pair now, regardless of expiry.
func (s *Session) Refresh(ctx context.Context) error {
	_, err := s.refresh(ctx, true)
	return err
}

func (s *Session) refresh(ctx context.Context, force bool) (string, error) {
	token, ev, err := s.refreshLocked(ctx, force)
	if ev != nil {
		s.client.emit(*ev)
	}
	return token, err
}

// refreshLocked performs the refresh under the write lock. Events are
// returned so they can be emitted after the lock is released.
func (s *Session) refreshLocked(ctx context.Context, force bool) (string, *Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine may have refreshed)
	if !force && s.freshLocked() {
		return s.accessToken, nil, nil
	}

	if s.refreshToken == "" {
		return "", nil, ErrNoSession
	}

	tokenResp, err := s.client.RefreshGrant(ctx, s.refreshToken)
	if err != nil {
		if refreshRejected(err) {
			s.clearLocked()
			s.client.forget(ctx)
			return "", &Event{Type: EventSignedOut, Session: s}, fmt.Errorf("failed to refresh token: %w", err)
		}
		return "", nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	s.applyLocked(tokenResp)
	s.client.persist(ctx, s.snapshotLocked())
	return s.accessToken, &Event{Type: EventTokenRefreshed, Session: s}, nil
}

// refreshRejected reports whether the provider refused the refresh token
// itself, as opposed to being unreachable.
func refreshRejected(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case ErrorCodeRefreshTokenNotFound, ErrorCodeRefreshTokenAlreadyUsed,
		ErrorCodeSessionNotFound, ErrorCodeInvalidGrant:
		return true
	}
	return apiErr.StatusCode == http.StatusUnauthorized
}

func (s *Session) clearLocked() {
	s.accessToken = ""
	s.refreshToken = ""
	s.expiresAt = time.Time{}
}

// Logout ends the session at the provider (local scope) and removes the
// persisted copy. The local tokens are dropped even when the provider call
// fails.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	token := s.accessToken
	s.clearLocked()
	s.mu.Unlock()

	s.client.forget(ctx)

	if token == "" {
		return ErrNoSession
	}

	resp, err := s.client.doRequest(ctx, http.MethodPost, "/logout?scope=local", nil, token)
	if err != nil {
		return err
	}
	return checkStatus(resp)
}

// Snapshot returns a consistent copy of the session's tokens and user.
func (s *Session) Snapshot() StoredSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() StoredSession {
	snap := StoredSession{
		AccessToken:  s.accessToken,
		RefreshToken: s.refreshToken,
		TokenType:    s.tokenType,
		ExpiresAt:    s.expiresAt,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// AccessToken returns the current access token without checking expiration.
// For most use cases, prefer using the Session methods which handle refresh automatically.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// ExpiresAt returns the access token's expiry.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// User returns the last user record seen for this session, if any.
func (s *Session) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

func (s *Session) setUser(ctx context.Context, u *User) {
	s.mu.Lock()
	cp := *u
	s.user = &cp
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.client.persist(ctx, snap)
}

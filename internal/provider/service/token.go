package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/authclient/internal/provider/domain"
	"github.com/aussiebroadwan/authclient/internal/provider/store"
	"github.com/aussiebroadwan/authclient/pkg/authsdk"
	"github.com/aussiebroadwan/authclient/pkg/cryptox"
	"github.com/aussiebroadwan/authclient/pkg/idx"
	"github.com/aussiebroadwan/authclient/pkg/jwtx"
	"github.com/aussiebroadwan/authclient/pkg/slogx"
	"github.com/google/uuid"
)

type TokenService struct {
	Store      store.Store
	Signer     jwtx.Signer
	Hasher     cryptox.PasswordHasher
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// PasswordGrant implements POST /token?grant_type=password. Unknown users
// and wrong passwords are indistinguishable; an unconfirmed address is only
// reported once the password matched.
func (s *TokenService) PasswordGrant(
	ctx context.Context,
	email, password string,
) (*authsdk.TokenResponse, error) {
	l := slogx.FromContext(ctx)

	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.Hasher.Verify(password, u.PasswordHash); err != nil {
		l.Info("password grant rejected", "user_id", u.ID)
		return nil, ErrInvalidCredentials
	}
	if !u.Confirmed() {
		return nil, ErrEmailNotConfirmed
	}

	var out *authsdk.TokenResponse
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		out, err = s.startSession(ctx, tx, u, jwtx.AMRPassword)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RefreshGrant implements POST /token?grant_type=refresh_token with
// rotation. Presenting a revoked token revokes the whole session.
func (s *TokenService) RefreshGrant(ctx context.Context, refresh string) (*authsdk.TokenResponse, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()

	refresh = strings.TrimSpace(refresh)
	if refresh == "" {
		return nil, ErrRefreshNotFound
	}
	fp := cryptox.FingerprintToken(refresh)

	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRefreshNotFound
		}
		return nil, err
	}
	if now.After(rt.ExpiresAt) {
		return nil, ErrRefreshNotFound
	}
	if rt.Revoked {
		l.Warn("revoked refresh token presented, revoking session", "session_id", rt.SessionID)
		if err := s.Store.Sessions().DeleteSession(ctx, rt.SessionID); err != nil &&
			!errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, ErrRefreshReused
	}

	var out *authsdk.TokenResponse
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, rt.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRefreshReused
			}
			return err
		}

		sess, err := tx.Sessions().GetSession(ctx, rt.SessionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRefreshNotFound
			}
			return err
		}
		u, err := tx.Users().GetUserByID(ctx, rt.UserID)
		if err != nil {
			return err
		}

		out, err = s.mint(ctx, tx, u, sess, rt.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Logout deletes the session named by the access token's session_id claim.
func (s *TokenService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrSessionNotFound
	}
	if err := s.Store.Sessions().DeleteSession(ctx, sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return nil
}

// RequireSession resolves the session behind an access token. Tokens
// outlive a deleted session only until they are presented.
func (s *TokenService) RequireSession(ctx context.Context, sessionID, userID string) (domain.Session, error) {
	if sessionID == "" {
		return domain.Session{}, ErrSessionNotFound
	}
	sess, err := s.Store.Sessions().GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, ErrSessionNotFound
		}
		return domain.Session{}, err
	}
	if sess.UserID != userID {
		return domain.Session{}, ErrSessionNotFound
	}
	return sess, nil
}

// startSession opens a new aal1 session for u and issues its first tokens.
func (s *TokenService) startSession(
	ctx context.Context,
	tx store.Store,
	u domain.User,
	method string,
) (*authsdk.TokenResponse, error) {
	now := time.Now()
	sess := domain.Session{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		AAL:       jwtx.AAL1,
		Method:    method,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.Sessions().CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if err := tx.Users().SetLastSignInAt(ctx, u.ID, now); err != nil {
		return nil, err
	}
	u.LastSignInAt = &now
	return s.mint(ctx, tx, u, sess, "", now)
}

// mint issues an access token and a fresh refresh token for sess.
func (s *TokenService) mint(
	ctx context.Context,
	tx store.Store,
	u domain.User,
	sess domain.Session,
	parent string,
	now time.Time,
) (*authsdk.TokenResponse, error) {
	claims := jwtx.NewAccessClaims(u.ID, u.Email, sess.ID, sess.AAL, amrFor(sess), s.Issuer, s.AccessTTL, now)
	access, err := s.Signer.Sign(claims)
	if err != nil {
		return nil, err
	}

	opaque, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return nil, err
	}
	rt := domain.RefreshToken{
		ID:        idx.NewAt(now).String(),
		SessionID: sess.ID,
		UserID:    u.ID,
		TokenHash: cryptox.FingerprintToken(opaque),
		Parent:    parent,
		ExpiresAt: now.Add(s.RefreshTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.RefreshTokens().CreateRefreshToken(ctx, rt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	factors, err := tx.Factors().ListFactorsByUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	user := presentUser(u, factors)

	return &authsdk.TokenResponse{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    int(s.AccessTTL.Seconds()),
		ExpiresAt:    claims.Expiry().Unix(),
		RefreshToken: opaque,
		User:         &user,
	}, nil
}

func amrFor(sess domain.Session) []jwtx.AMREntry {
	amr := []jwtx.AMREntry{{Method: sess.Method, Timestamp: sess.CreatedAt.Unix()}}
	if sess.AAL == jwtx.AAL2 {
		amr = append(amr, jwtx.AMREntry{Method: jwtx.AMRTOTP, Timestamp: sess.UpdatedAt.Unix()})
	}
	return amr
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// presentUser renders the provider's user document.
func presentUser(u domain.User, factors []domain.Factor) authsdk.User {
	out := authsdk.User{
		ID:                 u.ID,
		Aud:                "authenticated",
		Role:               "authenticated",
		Email:              u.Email,
		EmailConfirmedAt:   u.EmailConfirmedAt,
		ConfirmedAt:        u.EmailConfirmedAt,
		ConfirmationSentAt: u.ConfirmationSentAt,
		RecoverySentAt:     u.RecoverySentAt,
		LastSignInAt:       u.LastSignInAt,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
	for _, f := range factors {
		out.Factors = append(out.Factors, authsdk.Factor{
			ID:           f.ID,
			FriendlyName: f.FriendlyName,
			FactorType:   f.FactorType,
			Status:       f.Status,
			CreatedAt:    f.CreatedAt,
			UpdatedAt:    f.UpdatedAt,
		})
	}
	return out
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
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

// MinPasswordLength matches the provider's default password policy.
const MinPasswordLength = 6

type UserService struct {
	Store  store.Store
	Tokens *TokenService
	Hasher cryptox.PasswordHasher
	Mailer Mailer

	ExternalURL   string        // public base URL of this provider, used in emailed links
	SiteURL       string        // default landing page after /verify
	AutoConfirm   bool          // skip email confirmation on sign up
	LinkTTL       time.Duration // lifetime of confirmation and recovery links
	EmailInterval time.Duration // minimum gap between recovery mails per user
}

// SignUpResult is either a pending user or, with AutoConfirm, a session.
type SignUpResult struct {
	User    authsdk.User
	Session *authsdk.TokenResponse
}

func (s *UserService) SignUp(ctx context.Context, email, password, redirectTo string) (SignUpResult, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return SignUpResult{}, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return SignUpResult{}, ErrWeakPassword
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return SignUpResult{}, err
	}

	now := time.Now()
	u := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if s.AutoConfirm {
		u.EmailConfirmedAt = &now
	}

	var (
		result SignUpResult
		link   string
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, u); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrUserExists
			}
			return err
		}

		if s.AutoConfirm {
			session, err := s.Tokens.startSession(ctx, tx, u, jwtx.AMRPassword)
			if err != nil {
				return err
			}
			result = SignUpResult{User: *session.User, Session: session}
			return nil
		}

		link, err = s.issueLink(ctx, tx, u.ID, domain.TokenTypeSignup, redirectTo, now)
		if err != nil {
			return err
		}
		if err := tx.Users().SetConfirmationSentAt(ctx, u.ID, now); err != nil {
			return err
		}
		u.ConfirmationSentAt = &now
		result = SignUpResult{User: presentUser(u, nil)}
		return nil
	})
	if err != nil {
		return SignUpResult{}, err
	}

	if link != "" {
		if err := s.Mailer.Send(ctx, domain.Mail{To: u.Email, Kind: domain.TokenTypeSignup, Link: link, SentAt: now}); err != nil {
			return SignUpResult{}, fmt.Errorf("failed to send confirmation: %w", err)
		}
	}
	return result, nil
}

// Recover mails a recovery link. Unknown addresses succeed silently;
// malformed ones are rejected.
func (s *UserService) Recover(ctx context.Context, email, redirectTo string) error {
	l := slogx.FromContext(ctx)
	now := time.Now()

	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return ErrInvalidEmail
	}

	u, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Debug("recovery requested for unknown address")
			return nil
		}
		return err
	}
	if s.EmailInterval > 0 && u.RecoverySentAt != nil && now.Sub(*u.RecoverySentAt) < s.EmailInterval {
		return ErrEmailRateLimited
	}

	var link string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.OneTimeTokens().DeleteUserOneTimeTokens(ctx, u.ID, domain.TokenTypeRecovery); err != nil {
			return err
		}
		link, err = s.issueLink(ctx, tx, u.ID, domain.TokenTypeRecovery, redirectTo, now)
		if err != nil {
			return err
		}
		return tx.Users().SetRecoverySentAt(ctx, u.ID, now)
	})
	if err != nil {
		return err
	}

	return s.Mailer.Send(ctx, domain.Mail{To: u.Email, Kind: domain.TokenTypeRecovery, Link: link, SentAt: now})
}

// Verify consumes an emailed link and returns where to send the browser:
// the redirect target with either the new session or an error in the
// fragment.
func (s *UserService) Verify(ctx context.Context, token, tokenType, redirectTo string) (string, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()

	method := ""
	switch tokenType {
	case domain.TokenTypeSignup:
		method = jwtx.AMRSignup
	case domain.TokenTypeRecovery:
		method = jwtx.AMRRecovery
	default:
		return "", ErrValidation
	}

	target := s.redirectTarget(redirectTo)
	ott, err := s.Store.OneTimeTokens().GetOneTimeTokenByHash(ctx, tokenType, cryptox.FingerprintToken(token))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	if err != nil || now.After(ott.ExpiresAt) {
		l.Info("verify link rejected", "type", tokenType)
		return withFragment(target, url.Values{
			"error":             {"access_denied"},
			"error_code":        {authsdk.ErrorCodeOTPExpired},
			"error_description": {"Email link is invalid or has expired"},
		}), nil
	}
	if redirectTo == "" && ott.RedirectTo != "" {
		target = s.redirectTarget(ott.RedirectTo)
	}

	var session *authsdk.TokenResponse
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.OneTimeTokens().DeleteOneTimeToken(ctx, ott.ID); err != nil {
			return err
		}
		u, err := tx.Users().GetUserByID(ctx, ott.UserID)
		if err != nil {
			return err
		}
		if !u.Confirmed() {
			if err := tx.Users().ConfirmEmail(ctx, u.ID, now); err != nil {
				return err
			}
			u.EmailConfirmedAt = &now
		}
		session, err = s.Tokens.startSession(ctx, tx, u, method)
		return err
	})
	if err != nil {
		return "", err
	}

	return withFragment(target, url.Values{
		"access_token":  {session.AccessToken},
		"expires_at":    {fmt.Sprint(session.ExpiresAt)},
		"expires_in":    {fmt.Sprint(session.ExpiresIn)},
		"refresh_token": {session.RefreshToken},
		"token_type":    {session.TokenType},
		"type":          {tokenType},
	}), nil
}

func (s *UserService) GetUser(ctx context.Context, userID string) (authsdk.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return authsdk.User{}, ErrUserNotFound
		}
		return authsdk.User{}, err
	}
	factors, err := s.Store.Factors().ListFactorsByUser(ctx, userID)
	if err != nil {
		return authsdk.User{}, err
	}
	return presentUser(u, factors), nil
}

// UpdateUser applies PUT /user. Only password changes are supported.
func (s *UserService) UpdateUser(
	ctx context.Context,
	userID string,
	attrs authsdk.UserAttributes,
) (authsdk.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return authsdk.User{}, ErrUserNotFound
		}
		return authsdk.User{}, err
	}
	if attrs.Email != "" && normalizeEmail(attrs.Email) != u.Email {
		return authsdk.User{}, ErrValidation
	}

	if attrs.Password != "" {
		if len(attrs.Password) < MinPasswordLength {
			return authsdk.User{}, ErrWeakPassword
		}
		if s.Hasher.Verify(attrs.Password, u.PasswordHash) == nil {
			return authsdk.User{}, ErrSamePassword
		}
		hash, err := s.Hasher.Hash(attrs.Password)
		if err != nil {
			return authsdk.User{}, err
		}
		if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
			return authsdk.User{}, err
		}
	}

	return s.GetUser(ctx, userID)
}

// issueLink stores a fresh one-time token and returns the /verify link for it.
func (s *UserService) issueLink(
	ctx context.Context,
	tx store.Store,
	userID, tokenType, redirectTo string,
	now time.Time,
) (string, error) {
	opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}
	ott := domain.OneTimeToken{
		ID:         idx.NewAt(now).String(),
		UserID:     userID,
		TokenType:  tokenType,
		TokenHash:  cryptox.FingerprintToken(opaque),
		RedirectTo: redirectTo,
		ExpiresAt:  now.Add(s.LinkTTL),
		CreatedAt:  now,
	}
	if err := tx.OneTimeTokens().CreateOneTimeToken(ctx, ott); err != nil {
		return "", err
	}

	q := url.Values{"token": {opaque}, "type": {tokenType}}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	return s.ExternalURL + "/verify?" + q.Encode(), nil
}

// redirectTarget falls back to SiteURL for anything that is not an
// absolute http(s) URL.
func (s *UserService) redirectTarget(raw string) *url.URL {
	if u, err := url.Parse(raw); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return u
	}
	u, err := url.Parse(s.SiteURL)
	if err != nil {
		return &url.URL{Path: "/"}
	}
	return u
}

func withFragment(target *url.URL, values url.Values) string {
	u := *target
	u.Fragment = ""
	u.RawFragment = ""
	return u.String() + "#" + values.Encode()
}

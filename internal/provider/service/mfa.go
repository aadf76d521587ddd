package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/aussiebroadwan/authclient/internal/provider/domain"
	"github.com/aussiebroadwan/authclient/internal/provider/store"
	"github.com/aussiebroadwan/authclient/pkg/authsdk"
	"github.com/aussiebroadwan/authclient/pkg/idx"
	"github.com/aussiebroadwan/authclient/pkg/jwtx"
	"github.com/aussiebroadwan/authclient/pkg/slogx"
	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const qrCodeSize = 200

type MFAService struct {
	Store        store.Store
	Tokens       *TokenService
	Issuer       string        // default TOTP issuer shown by authenticator apps
	MaxFactors   int           // verified factors allowed per user
	ChallengeTTL time.Duration // lifetime of a challenge
}

// Enroll creates an unverified TOTP factor and returns its secret, the
// otpauth URI and a PNG QR code as a data URL.
func (s *MFAService) Enroll(
	ctx context.Context,
	userID string,
	req authsdk.EnrollFactorRequest,
) (authsdk.EnrollFactorResponse, error) {
	if req.FactorType != "" && req.FactorType != domain.FactorTypeTOTP {
		return authsdk.EnrollFactorResponse{}, ErrValidation
	}

	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return authsdk.EnrollFactorResponse{}, ErrUserNotFound
		}
		return authsdk.EnrollFactorResponse{}, err
	}

	factors, err := s.Store.Factors().ListFactorsByUser(ctx, userID)
	if err != nil {
		return authsdk.EnrollFactorResponse{}, err
	}
	verified := 0
	for _, f := range factors {
		if f.Verified() {
			verified++
		}
	}
	if s.MaxFactors > 0 && verified >= s.MaxFactors {
		return authsdk.EnrollFactorResponse{}, ErrTooManyFactors
	}

	issuer := req.Issuer
	if issuer == "" {
		issuer = s.Issuer
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: u.Email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return authsdk.EnrollFactorResponse{}, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	qr, err := qrDataURL(key)
	if err != nil {
		return authsdk.EnrollFactorResponse{}, err
	}

	now := time.Now()
	f := domain.Factor{
		ID:           uuid.NewString(),
		UserID:       userID,
		FriendlyName: req.FriendlyName,
		FactorType:   domain.FactorTypeTOTP,
		Status:       domain.FactorStatusPending,
		Secret:       key.Secret(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.Factors().CreateFactor(ctx, f); err != nil {
		return authsdk.EnrollFactorResponse{}, fmt.Errorf("failed to store factor: %w", err)
	}

	return authsdk.EnrollFactorResponse{
		ID:           f.ID,
		Type:         f.FactorType,
		FriendlyName: f.FriendlyName,
		TOTP: authsdk.TOTPEnrollment{
			QRCode: qr,
			Secret: key.Secret(),
			URI:    key.URL(),
		},
	}, nil
}

func (s *MFAService) Challenge(ctx context.Context, userID, factorID string) (authsdk.ChallengeResponse, error) {
	f, err := s.ownedFactor(ctx, userID, factorID)
	if err != nil {
		return authsdk.ChallengeResponse{}, err
	}

	now := time.Now()
	c := domain.Challenge{
		ID:        idx.NewAt(now).String(),
		FactorID:  f.ID,
		ExpiresAt: now.Add(s.ChallengeTTL),
		CreatedAt: now,
	}
	if err := s.Store.Challenges().CreateChallenge(ctx, c); err != nil {
		return authsdk.ChallengeResponse{}, err
	}

	return authsdk.ChallengeResponse{ID: c.ID, Type: f.FactorType, ExpiresAt: c.ExpiresAt.Unix()}, nil
}

// Verify checks code against the challenged factor. Success verifies the
// factor, steps the caller's session up to aal2 and issues new tokens.
// An unknown, used or expired challenge is reported as expired.
func (s *MFAService) Verify(
	ctx context.Context,
	userID, sessionID, factorID string,
	req authsdk.VerifyFactorRequest,
) (*authsdk.TokenResponse, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()

	f, err := s.ownedFactor(ctx, userID, factorID)
	if err != nil {
		return nil, err
	}

	c, err := s.Store.Challenges().GetChallenge(ctx, req.ChallengeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChallengeExpired
		}
		return nil, err
	}
	if c.FactorID != f.ID || c.VerifiedAt != nil || now.After(c.ExpiresAt) {
		return nil, ErrChallengeExpired
	}

	if !totp.Validate(req.Code, f.Secret) {
		l.Info("totp verification failed", "factor_id", f.ID)
		return nil, ErrInvalidCode
	}

	var out *authsdk.TokenResponse
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Challenges().MarkChallengeVerified(ctx, c.ID, now); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrChallengeExpired
			}
			return err
		}
		if !f.Verified() {
			if err := tx.Factors().MarkFactorVerified(ctx, f.ID, now); err != nil {
				return err
			}
		}

		if err := tx.Sessions().UpdateSessionAAL(ctx, sessionID, jwtx.AAL2, f.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if err := tx.RefreshTokens().RevokeSessionRefreshTokens(ctx, sessionID); err != nil {
			return err
		}

		sess, err := tx.Sessions().GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		u, err := tx.Users().GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		out, err = s.Tokens.mint(ctx, tx, u, sess, "", now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Unenroll deletes a factor. Sessions stepped up with it drop back to aal1.
func (s *MFAService) Unenroll(ctx context.Context, userID, factorID string) (authsdk.UnenrollResponse, error) {
	f, err := s.ownedFactor(ctx, userID, factorID)
	if err != nil {
		return authsdk.UnenrollResponse{}, err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Sessions().DowngradeFactorSessions(ctx, f.ID); err != nil {
			return err
		}
		return tx.Factors().DeleteFactor(ctx, f.ID)
	})
	if err != nil {
		return authsdk.UnenrollResponse{}, err
	}
	return authsdk.UnenrollResponse{ID: f.ID}, nil
}

// ownedFactor hides other users' factors behind ErrFactorNotFound.
func (s *MFAService) ownedFactor(ctx context.Context, userID, factorID string) (domain.Factor, error) {
	f, err := s.Store.Factors().GetFactor(ctx, factorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Factor{}, ErrFactorNotFound
		}
		return domain.Factor{}, err
	}
	if f.UserID != userID {
		return domain.Factor{}, ErrFactorNotFound
	}
	return f, nil
}

func qrDataURL(key *otp.Key) (string, error) {
	img, err := key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		return "", fmt.Errorf("failed to render QR code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

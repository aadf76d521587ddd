package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/authclient/internal/provider/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Drivers implement it and expose
// sub-repositories so a transaction hands out the same repos bound to the
// open transaction.
type Store interface {
	Users() Users
	Sessions() Sessions
	RefreshTokens() RefreshTokens
	Factors() Factors
	Challenges() Challenges
	OneTimeTokens() OneTimeTokens

	ApplyMigrations() error

	// Tx starts a read/write transaction. The caller MUST call Commit() or
	// Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn inside a transaction, committing when fn returns nil
	// and rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store. Nested transactions are not supported.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches the lower-cased address.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	ConfirmEmail(ctx context.Context, userID string, at time.Time) error
	SetConfirmationSentAt(ctx context.Context, userID string, at time.Time) error
	SetRecoverySentAt(ctx context.Context, userID string, at time.Time) error
	SetLastSignInAt(ctx context.Context, userID string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

type Sessions interface {
	CreateSession(ctx context.Context, s domain.Session) error
	GetSession(ctx context.Context, id string) (domain.Session, error)

	// UpdateSessionAAL records a step-up (or step-down when factorID is empty).
	UpdateSessionAAL(ctx context.Context, id, aal, factorID string) error

	// DeleteSession cascades to the session's refresh tokens.
	DeleteSession(ctx context.Context, id string) error

	// DowngradeFactorSessions drops every session stepped up with factorID
	// back to aal1.
	DowngradeFactorSessions(ctx context.Context, factorID string) error

	// DeleteIdleSessions removes sessions without a live refresh token.
	DeleteIdleSessions(ctx context.Context, now time.Time) (int64, error)
}

type RefreshTokens interface {
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string) error
	RevokeSessionRefreshTokens(ctx context.Context, sessionID string) error
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type Factors interface {
	CreateFactor(ctx context.Context, f domain.Factor) error
	GetFactor(ctx context.Context, id string) (domain.Factor, error)
	ListFactorsByUser(ctx context.Context, userID string) ([]domain.Factor, error)
	MarkFactorVerified(ctx context.Context, id string, at time.Time) error

	// DeleteFactor cascades to the factor's challenges.
	DeleteFactor(ctx context.Context, id string) error

	DeleteUnverifiedFactorsBefore(ctx context.Context, before time.Time) (int64, error)
}

type Challenges interface {
	CreateChallenge(ctx context.Context, c domain.Challenge) error
	GetChallenge(ctx context.Context, id string) (domain.Challenge, error)
	MarkChallengeVerified(ctx context.Context, id string, at time.Time) error
	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}

type OneTimeTokens interface {
	CreateOneTimeToken(ctx context.Context, t domain.OneTimeToken) error
	GetOneTimeTokenByHash(ctx context.Context, tokenType, hash string) (domain.OneTimeToken, error)
	DeleteOneTimeToken(ctx context.Context, id string) error

	// DeleteUserOneTimeTokens invalidates earlier links of the same type.
	DeleteUserOneTimeTokens(ctx context.Context, userID, tokenType string) error

	DeleteExpiredOneTimeTokens(ctx context.Context, now time.Time) (int64, error)
}

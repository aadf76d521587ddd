package authstate

import (
	"context"

	"github.com/aussiebroadwan/authclient/pkg/authsdk"
)

// Gateway is the only way this package reaches the identity provider.
// Implementations return *Error values (or errors Operations can map) and
// never panic.
type Gateway interface {
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignUp(ctx context.Context, email, password, redirectTo string) (SignUpOutcome, error)
	SignOut(ctx context.Context) error
	RequestPasswordReset(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, password string) (User, error)

	// GetSession returns the session the provider client currently holds,
	// or nil when there is none.
	GetSession(ctx context.Context) (*Session, error)

	// SessionFromFragment exchanges the tokens of a link landing address
	// for a session.
	SessionFromFragment(ctx context.Context, f authsdk.Fragment) (Session, error)

	// OnSessionChange registers fn for provider-initiated changes such as
	// a background token refresh or a forced sign out. session is nil for
	// EventSignedOut.
	OnSessionChange(fn func(ev Event, session *Session)) (unsubscribe func())

	EnrollTOTP(ctx context.Context, params EnrollParams) (EnrollmentChallenge, error)
	// VerifyTOTP challenges the factor and submits code. On success the
	// provider issues a stepped-up session.
	VerifyTOTP(ctx context.Context, factorID, code string) (Factor, Session, error)
	UnenrollFactor(ctx context.Context, factorID string) error
	// ListFactors returns every factor on the user, verified or not.
	ListFactors(ctx context.Context) ([]Factor, error)
}

// EnrollParams describes a TOTP factor to create.
type EnrollParams struct {
	FriendlyName string
	Issuer       string
}

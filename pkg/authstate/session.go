package authstate

import (
	"errors"
	"time"
)

// User is an immutable snapshot of the provider's user record.
type User struct {
	ID            string
	Email         string
	EmailVerified bool
	ConfirmedAt   time.Time
	CreatedAt     time.Time
}

// Session is the credential bundle the Store holds. Build it with
// NewSession; a Session is never partially populated.
type Session struct {
	User         User
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
}

var (
	errNoUser   = errors.New("session has no user")
	errNoExpiry = errors.New("session has no expiry")
)

// NewSession validates and assembles a Session.
func NewSession(user User, accessToken, refreshToken, tokenType string, expiresAt time.Time) (Session, error) {
	if user.ID == "" {
		return Session{}, errNoUser
	}
	if expiresAt.IsZero() {
		return Session{}, errNoExpiry
	}
	if tokenType == "" {
		tokenType = "bearer"
	}
	return Session{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenType,
		ExpiresAt:    expiresAt,
	}, nil
}

// Expired reports whether the access token has expired at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// withUser returns a copy of s carrying u.
func (s Session) withUser(u User) Session {
	s.User = u
	return s
}

// Event names a Store transition.
type Event string

const (
	EventInitialSession   Event = "INITIAL_SESSION"
	EventSignedIn         Event = "SIGNED_IN"
	EventSignedOut        Event = "SIGNED_OUT"
	EventTokenRefreshed   Event = "TOKEN_REFRESHED"
	EventUserUpdated      Event = "USER_UPDATED"
	EventPasswordRecovery Event = "PASSWORD_RECOVERY"
	EventMFAVerified      Event = "MFA_CHALLENGE_VERIFIED"
)

// Change is delivered to Store subscribers. Session is nil when the
// transition left the Store empty.
type Change struct {
	Event   Event
	Session *Session
	At      time.Time
}

// Factor is an MFA factor on the user.
type Factor struct {
	ID           string
	Type         string
	FriendlyName string
	Status       string
	CreatedAt    time.Time
}

// Verified reports whether the factor completed verification.
func (f Factor) Verified() bool { return f.Status == "verified" }

// EnrollmentChallenge pairs a pending factor with its provisioning secret.
// It lives only in memory between Enroll and Verify or Abandon.
type EnrollmentChallenge struct {
	FactorID string
	Secret   string
	URI      string
	// QRCode is the scannable encoding, as a data URL.
	QRCode string
}

// SignUpOutcome is the value of a successful SignUp.
type SignUpOutcome struct {
	User                User
	Session             *Session
	ConfirmationPending bool
}

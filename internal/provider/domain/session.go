package domain

import "time"

// Session is a sign-in that outlives individual access tokens. Deleting it
// invalidates every refresh token issued for it.
type Session struct {
	ID        string // uuid, carried in the session_id claim
	UserID    string
	AAL       string // aal1 or aal2
	Method    string // first authentication method (password, otp, recovery)
	FactorID  string // factor that stepped the session up to aal2
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RefreshToken is one link in a session's rotation chain.
type RefreshToken struct {
	ID        string
	SessionID string
	UserID    string
	TokenHash string // base64url SHA-256 fingerprint of the opaque token
	Parent    string // id of the token this one replaced
	Revoked   bool
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

package domain

import "time"

const (
	FactorTypeTOTP       = "totp"
	FactorStatusVerified = "verified"
	FactorStatusPending  = "unverified"
)

type Factor struct {
	ID           string
	UserID       string
	FriendlyName string
	FactorType   string
	Status       string
	Secret       string // base32 TOTP secret
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (f Factor) Verified() bool { return f.Status == FactorStatusVerified }

// Challenge is a single-use permission to verify one code against a factor.
type Challenge struct {
	ID         string // ULID
	FactorID   string
	ExpiresAt  time.Time
	VerifiedAt *time.Time
	CreatedAt  time.Time
}

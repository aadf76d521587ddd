package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// Authenticator assurance levels.
const (
	AAL1 = "aal1"
	AAL2 = "aal2"
)

// Authentication method references.
const (
	AMRPassword = "password"
	AMRTOTP     = "totp"
	AMRRecovery = "recovery"
	AMRSignup   = "otp"
)

// AMREntry records how and when the session was authenticated.
type AMREntry struct {
	Method    string `json:"method"`
	Timestamp int64  `json:"timestamp"`
}

// Claims are the access-token claims issued by a GoTrue-compatible provider.
type Claims struct {
	jwt.RegisteredClaims

	Email     string     `json:"email,omitempty"`
	Role      string     `json:"role,omitempty"`
	AAL       string     `json:"aal,omitempty"`
	AMR       []AMREntry `json:"amr,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
}

// NewAccessClaims builds the claims for a freshly issued access token.
func NewAccessClaims(
	subject, email, sessionID, aal string,
	amr []AMREntry,
	issuer string,
	ttl time.Duration,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Email:     email,
		Role:      "authenticated",
		AAL:       aal,
		AMR:       amr,
		SessionID: sessionID,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// Expiry returns the exp claim, or the zero time when absent.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// HasMethod reports whether the session was authenticated with method.
func (c *Claims) HasMethod(method string) bool {
	for _, e := range c.AMR {
		if e.Method == method {
			return true
		}
	}
	return false
}

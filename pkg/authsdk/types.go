package authsdk

import "time"

// ============================================================================
// User Types
// ============================================================================

// User is the provider's user record.
type User struct {
	ID                 string     `json:"id"`
	Aud                string     `json:"aud,omitempty"`
	Role               string     `json:"role,omitempty"`
	Email              string     `json:"email"`
	EmailConfirmedAt   *time.Time `json:"email_confirmed_at,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	ConfirmationSentAt *time.Time `json:"confirmation_sent_at,omitempty"`
	RecoverySentAt     *time.Time `json:"recovery_sent_at,omitempty"`
	LastSignInAt       *time.Time `json:"last_sign_in_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Factors            []Factor   `json:"factors,omitempty"`
}

// Confirmed reports whether the email address has been confirmed.
func (u User) Confirmed() bool {
	return u.EmailConfirmedAt != nil || u.ConfirmedAt != nil
}

// UserAttributes is the body of PUT /user. Empty fields are left unchanged.
type UserAttributes struct {
	Email    string         `json:"email,omitempty"`
	Password string         `json:"password,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// ============================================================================
// Token Types
// ============================================================================

// TokenResponse is the session document returned by /token, /signup (when
// auto-confirmed) and /factors/{id}/verify.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// PasswordCredentials is the body of POST /token?grant_type=password.
type PasswordCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshTokenRequest is the body of POST /token?grant_type=refresh_token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SignUpRequest is the body of POST /signup.
type SignUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Data     map[string]any `json:"data,omitempty"`
}

// RecoverRequest is the body of POST /recover.
type RecoverRequest struct {
	Email string `json:"email"`
}

// ============================================================================
// MFA Types
// ============================================================================

const (
	FactorTypeTOTP       = "totp"
	FactorStatusVerified = "verified"
	FactorStatusPending  = "unverified"
)

// Factor is an enrolled MFA factor.
type Factor struct {
	ID           string    `json:"id"`
	FriendlyName string    `json:"friendly_name,omitempty"`
	FactorType   string    `json:"factor_type"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EnrollFactorRequest is the body of POST /factors.
type EnrollFactorRequest struct {
	FactorType   string `json:"factor_type"`
	FriendlyName string `json:"friendly_name,omitempty"`
	Issuer       string `json:"issuer,omitempty"`
}

// TOTPEnrollment carries the shared secret of a new TOTP factor.
type TOTPEnrollment struct {
	QRCode string `json:"qr_code" example:"data:image/png;base64,iVBORw0KGgo..."`
	Secret string `json:"secret" example:"JBSWY3DPEHPK3PXP"`
	URI    string `json:"uri" example:"otpauth://totp/issuer:user@example.com?secret=JBSWY3DPEHPK3PXP&issuer=issuer"`
}

// EnrollFactorResponse is returned by POST /factors.
type EnrollFactorResponse struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	FriendlyName string         `json:"friendly_name,omitempty"`
	TOTP         TOTPEnrollment `json:"totp"`
}

// ChallengeResponse is returned by POST /factors/{id}/challenge.
type ChallengeResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type,omitempty"`
	ExpiresAt int64  `json:"expires_at"`
}

// VerifyFactorRequest is the body of POST /factors/{id}/verify.
type VerifyFactorRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

// UnenrollResponse is returned by DELETE /factors/{id}.
type UnenrollResponse struct {
	ID string `json:"id"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Version     string `json:"version"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

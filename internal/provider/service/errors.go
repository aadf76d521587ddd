package service

import "errors"

// Sentinel errors returned by the services. The HTTP layer maps each to a
// provider error document.
var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrEmailNotConfirmed  = errors.New("email_not_confirmed")
	ErrInvalidEmail       = errors.New("email_address_invalid")
	ErrUserExists         = errors.New("user_already_exists")
	ErrWeakPassword       = errors.New("weak_password")
	ErrSamePassword       = errors.New("same_password")
	ErrValidation         = errors.New("validation_failed")
	ErrUnsupportedGrant   = errors.New("unsupported_grant_type")
	ErrRefreshNotFound    = errors.New("refresh_token_not_found")
	ErrRefreshReused      = errors.New("refresh_token_already_used")
	ErrSessionNotFound    = errors.New("session_not_found")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrEmailRateLimited   = errors.New("over_email_send_rate_limit")
	ErrFactorNotFound     = errors.New("mfa_factor_not_found")
	ErrTooManyFactors     = errors.New("too_many_enrolled_mfa_factors")
	ErrChallengeExpired   = errors.New("mfa_challenge_expired")
	ErrInvalidCode        = errors.New("mfa_verification_failed")
)

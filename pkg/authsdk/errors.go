package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/authclient/pkg/httpx"
)

// ============================================================================
// Provider Error Codes
// ============================================================================

const (
	ErrorCodeInvalidCredentials        = "invalid_credentials"
	ErrorCodeEmailNotConfirmed         = "email_not_confirmed"
	ErrorCodeUserAlreadyExists         = "user_already_exists"
	ErrorCodeEmailExists               = "email_exists"
	ErrorCodeUserNotFound              = "user_not_found"
	ErrorCodeWeakPassword              = "weak_password"
	ErrorCodeSamePassword              = "same_password"
	ErrorCodeValidationFailed          = "validation_failed"
	ErrorCodeBadJSON                   = "bad_json"
	ErrorCodeBadJWT                    = "bad_jwt"
	ErrorCodeNoAuthorization           = "no_authorization"
	ErrorCodeSessionNotFound           = "session_not_found"
	ErrorCodeRefreshTokenNotFound      = "refresh_token_not_found"
	ErrorCodeRefreshTokenAlreadyUsed   = "refresh_token_already_used"
	ErrorCodeOTPExpired                = "otp_expired"
	ErrorCodeFlowStateExpired          = "flow_state_expired"
	ErrorCodeMFAVerificationFailed     = "mfa_verification_failed"
	ErrorCodeMFAChallengeExpired       = "mfa_challenge_expired"
	ErrorCodeMFAFactorNotFound         = "mfa_factor_not_found"
	ErrorCodeTooManyEnrolledMFAFactors = "too_many_enrolled_mfa_factors"
	ErrorCodeOverRequestRateLimit      = "over_request_rate_limit"
	ErrorCodeOverEmailSendRateLimit    = "over_email_send_rate_limit"
	ErrorCodeUnexpectedFailure         = "unexpected_failure"
	ErrorCodeInvalidGrant              = "invalid_grant"
	ErrorCodeUnsupportedGrantType      = "unsupported_grant_type"
	ErrorCodeMFATOTPEnrollNotEnabled   = "mfa_totp_enroll_not_enabled"
	ErrorCodeEmailAddressInvalid       = "email_address_invalid"
	ErrorCodeSignupDisabled            = "signup_disabled"
	ErrorCodeUnknown                   = "unknown"
)

// ============================================================================
// APIError
// ============================================================================

// APIError is an error document returned by the provider. The SDK returns
// it from every call that got a response, and the development provider
// writes it.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Is matches another *APIError by code, so predefined values work with errors.Is.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WriteError writes e as a provider error document.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteError(w, e.StatusCode, e.Code, e.Message)
}

// NewAPIError creates an APIError with a custom message.
func NewAPIError(statusCode int, code, message string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Message: message}
}

// ErrorCode returns the provider error code carried by err, or "".
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	ErrInvalidCredentials = &APIError{http.StatusBadRequest, ErrorCodeInvalidCredentials, "Invalid login credentials"}
	ErrEmailNotConfirmed  = &APIError{http.StatusBadRequest, ErrorCodeEmailNotConfirmed, "Email not confirmed"}
	ErrUserAlreadyExists  = &APIError{http.StatusUnprocessableEntity, ErrorCodeUserAlreadyExists, "User already registered"}
	ErrWeakPassword       = &APIError{http.StatusUnprocessableEntity, ErrorCodeWeakPassword, "Password should be at least 6 characters."}
	ErrSamePassword       = &APIError{http.StatusUnprocessableEntity, ErrorCodeSamePassword, "New password should be different from the old password."}
	ErrValidationFailed   = &APIError{http.StatusBadRequest, ErrorCodeValidationFailed, "Invalid request"}
	ErrBadJSON            = &APIError{http.StatusBadRequest, ErrorCodeBadJSON, "Could not parse request body as JSON"}
	ErrSessionNotFound    = &APIError{http.StatusForbidden, ErrorCodeSessionNotFound, "Session from session_id claim in JWT does not exist"}
	ErrRefreshNotFound    = &APIError{http.StatusBadRequest, ErrorCodeRefreshTokenNotFound, "Invalid Refresh Token: Refresh Token Not Found"}
	ErrRefreshAlreadyUsed = &APIError{http.StatusBadRequest, ErrorCodeRefreshTokenAlreadyUsed, "Invalid Refresh Token: Already Used"}
	ErrOTPExpired         = &APIError{http.StatusForbidden, ErrorCodeOTPExpired, "Email link is invalid or has expired"}
	ErrMFAVerifyFailed    = &APIError{http.StatusUnprocessableEntity, ErrorCodeMFAVerificationFailed, "Invalid TOTP code entered"}
	ErrMFAChallengeExpire = &APIError{http.StatusUnprocessableEntity, ErrorCodeMFAChallengeExpired, "MFA challenge has expired, verify against another challenge or create a new factor."}
	ErrMFAFactorNotFound  = &APIError{http.StatusNotFound, ErrorCodeMFAFactorNotFound, "Factor not found"}
	ErrTooManyFactors     = &APIError{http.StatusUnprocessableEntity, ErrorCodeTooManyEnrolledMFAFactors, "Maximum number of verified factors reached, unenroll to continue"}
	ErrUnsupportedGrant   = &APIError{http.StatusBadRequest, ErrorCodeUnsupportedGrantType, "unsupported_grant_type"}
	ErrUnexpectedFailure  = &APIError{http.StatusInternalServerError, ErrorCodeUnexpectedFailure, "Unexpected failure, please check server logs for more information"}
)

// ============================================================================
// Transport Errors
// ============================================================================

// ErrNoSession is returned when a session is required but none exists.
var ErrNoSession = errors.New("authsdk: no session")

// TransportError wraps failures that happened before a response was read:
// DNS, TCP, TLS, timeouts, context cancellation.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx response into an *APIError. It accepts
// the current {"code","error_code","msg"} document, the older
// {"error","error_description"} form, and bare bodies.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var doc struct {
		Code             json.RawMessage `json:"code"`
		ErrorCode        string          `json:"error_code"`
		Msg              string          `json:"msg"`
		Message          string          `json:"message"`
		Error            string          `json:"error"`
		ErrorDescription string          `json:"error_description"`
	}
	if err := json.Unmarshal(body, &doc); err == nil {
		msg := firstNonEmpty(doc.Msg, doc.Message, doc.ErrorDescription)
		switch {
		case doc.ErrorCode != "":
			return &APIError{StatusCode: resp.StatusCode, Code: doc.ErrorCode, Message: msg}
		case doc.Error != "":
			return &APIError{StatusCode: resp.StatusCode, Code: doc.Error, Message: msg}
		case len(doc.Code) > 0 && doc.Code[0] == '"':
			var code string
			_ = json.Unmarshal(doc.Code, &code)
			return &APIError{StatusCode: resp.StatusCode, Code: code, Message: msg}
		case msg != "":
			return &APIError{StatusCode: resp.StatusCode, Code: codeForStatus(resp.StatusCode), Message: msg}
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       codeForStatus(resp.StatusCode),
		Message:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorCodeOverRequestRateLimit
	case status == http.StatusUnauthorized:
		return ErrorCodeNoAuthorization
	case status >= 500:
		return ErrorCodeUnexpectedFailure
	default:
		return ErrorCodeUnknown
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

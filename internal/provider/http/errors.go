package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/authclient/internal/provider/service"
	"github.com/aussiebroadwan/authclient/pkg/authsdk"
	"github.com/aussiebroadwan/authclient/pkg/httpx"
	"github.com/aussiebroadwan/authclient/pkg/slogx"
)

var (
	errInvalidEmail = authsdk.NewAPIError(http.StatusBadRequest, authsdk.ErrorCodeEmailAddressInvalid,
		"Unable to validate email address: invalid format")
	errUserNotFound = authsdk.NewAPIError(http.StatusNotFound, authsdk.ErrorCodeUserNotFound,
		"User not found")
	errEmailRateLimited = authsdk.NewAPIError(http.StatusTooManyRequests, authsdk.ErrorCodeOverEmailSendRateLimit,
		"For security purposes, you can only request this after a short delay")
)

var serviceErrors = []struct {
	err error
	api *authsdk.APIError
}{
	{service.ErrInvalidCredentials, authsdk.ErrInvalidCredentials},
	{service.ErrEmailNotConfirmed, authsdk.ErrEmailNotConfirmed},
	{service.ErrInvalidEmail, errInvalidEmail},
	{service.ErrUserExists, authsdk.ErrUserAlreadyExists},
	{service.ErrWeakPassword, authsdk.ErrWeakPassword},
	{service.ErrSamePassword, authsdk.ErrSamePassword},
	{service.ErrValidation, authsdk.ErrValidationFailed},
	{service.ErrUnsupportedGrant, authsdk.ErrUnsupportedGrant},
	{service.ErrRefreshNotFound, authsdk.ErrRefreshNotFound},
	{service.ErrRefreshReused, authsdk.ErrRefreshAlreadyUsed},
	{service.ErrSessionNotFound, authsdk.ErrSessionNotFound},
	{service.ErrUserNotFound, errUserNotFound},
	{service.ErrEmailRateLimited, errEmailRateLimited},
	{service.ErrFactorNotFound, authsdk.ErrMFAFactorNotFound},
	{service.ErrTooManyFactors, authsdk.ErrTooManyFactors},
	{service.ErrChallengeExpired, authsdk.ErrMFAChallengeExpire},
	{service.ErrInvalidCode, authsdk.ErrMFAVerifyFailed},
}

// writeServiceError maps a service error to its provider error document.
// Anything unmapped is logged and reported as an unexpected failure.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			m.api.WriteError(w)
			return
		}
	}
	slogx.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
	authsdk.ErrUnexpectedFailure.WriteError(w)
}

// decodeBody reports a bad_json error and returns false on malformed input.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httpx.DecodeJSON(r, v); err != nil {
		slogx.FromContext(r.Context()).Warn("failed to parse request", "err", err)
		authsdk.ErrBadJSON.WriteError(w)
		return false
	}
	return true
}

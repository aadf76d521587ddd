package http

import (
	"net/http"

	"github.com/aussiebroadwan/authclient/internal/provider/service"
	"github.com/aussiebroadwan/authclient/pkg/authsdk"
	"github.com/aussiebroadwan/authclient/pkg/httpx"
)

// TokenHandler serves POST /token for the password and refresh_token grants.
type TokenHandler struct {
	Tokens *service.TokenService
}

// ServeHTTP handles POST /token
//
//	@Summary		Issue a session
//	@Description	grant_type=password takes {email,password}; grant_type=refresh_token takes {refresh_token} and rotates it.
//	@Tags			Auth
//	@Security		APIKey
//	@Accept			json
//	@Produce		json
//	@Param			grant_type	query		string								true	"password or refresh_token"
//	@Param			request		body		authsdk.PasswordCredentials			false	"Password grant body"
//	@Success		200			{object}	authsdk.TokenResponse				"Session"
//	@Failure		400			{object}	httpx.ErrorBody						"invalid_credentials, email_not_confirmed, refresh_token_not_found, refresh_token_already_used"
//	@Failure		429			{object}	httpx.ErrorBody						"over_request_rate_limit"
//	@Router			/token [post].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var (
		resp *authsdk.TokenResponse
		err  error
	)

	switch r.URL.Query().Get("grant_type") {
	case "password":
		var req authsdk.PasswordCredentials
		if !decodeBody(w, r, &req) {
			return
		}
		resp, err = h.Tokens.PasswordGrant(r.Context(), req.Email, req.Password)
	case "refresh_token":
		var req authsdk.RefreshTokenRequest
		if !decodeBody(w, r, &req) {
			return
		}
		resp, err = h.Tokens.RefreshGrant(r.Context(), req.RefreshToken)
	default:
		err = service.ErrUnsupportedGrant
	}

	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// LogoutHandler serves POST /logout.
type LogoutHandler struct {
	Tokens *service.TokenService
}

// ServeHTTP handles POST /logout
//
//	@Summary		Sign out
//	@Description	Deletes the caller's session and every refresh token issued for it.
//	@Tags			Auth
//	@Security		APIKey
//	@Security		BearerAuth
//	@Param			scope	query	string	false	"local (default)"
//	@Success		204		"Signed out"
//	@Failure		401		{object}	httpx.ErrorBody	"no_authorization, bad_jwt"
//	@Failure		403		{object}	httpx.ErrorBody	"session_not_found"
//	@Router			/logout [post].
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpx.ClaimsFromContext(r.Context())
	if err := h.Tokens.Logout(r.Context(), claims.SessionID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

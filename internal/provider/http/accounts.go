package http

import (
	"net/http"

	"github.com/aussiebroadwan/authclient/internal/provider/service"
	"github.com/aussiebroadwan/authclient/pkg/authsdk"
	"github.com/aussiebroadwan/authclient/pkg/httpx"
	"github.com/aussiebroadwan/authclient/pkg/slogx"
)

// SignUpHandler serves POST /signup.
type SignUpHandler struct {
	Users *service.UserService
}

// ServeHTTP handles POST /signup
//
//	@Summary		Create an account
//	@Description	Returns the pending user and mails a confirmation link, or a session when auto-confirm is on.
//	@Tags			Accounts
//	@Security		APIKey
//	@Accept			json
//	@Produce		json
//	@Param			redirect_to	query		string					false	"Where the confirmation link lands"
//	@Param			request		body		authsdk.SignUpRequest	true	"Credentials"
//	@Success		200			{object}	authsdk.User			"Pending user (or authsdk.TokenResponse when auto-confirmed)"
//	@Failure		400			{object}	httpx.ErrorBody			"email_address_invalid, bad_json"
//	@Failure		422			{object}	httpx.ErrorBody			"user_already_exists, weak_password"
//	@Router			/signup [post].
func (h *SignUpHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SignUpRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.Users.SignUp(r.Context(), req.Email, req.Password, r.URL.Query().Get("redirect_to"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if res.Session != nil {
		httpx.WriteJSON(w, http.StatusOK, res.Session)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res.User)
}

// RecoverHandler serves POST /recover.
type RecoverHandler struct {
	Users *service.UserService
}

// ServeHTTP handles POST /recover
//
//	@Summary		Request a password recovery link
//	@Description	Always succeeds for unknown addresses so accounts cannot be enumerated.
//	@Tags			Accounts
//	@Security		APIKey
//	@Accept			json
//	@Produce		json
//	@Param			redirect_to	query		string					false	"Where the recovery link lands"
//	@Param			request		body		authsdk.RecoverRequest	true	"Address"
//	@Success		200			{object}	map[string]any			"Empty object"
//	@Failure		429			{object}	httpx.ErrorBody			"over_email_send_rate_limit, over_request_rate_limit"
//	@Router			/recover [post].
func (h *RecoverHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RecoverRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.Users.Recover(r.Context(), req.Email, r.URL.Query().Get("redirect_to")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{})
}

// VerifyHandler serves the links mailed by /signup and /recover.
type VerifyHandler struct {
	Users *service.UserService
}

// ServeHTTP handles GET /verify
//
//	@Summary		Follow an emailed link
//	@Description	Redirects to redirect_to with the session in the URL fragment, or with error=access_denied&error_code=otp_expired when the link is unusable.
//	@Tags			Accounts
//	@Param			token		query	string	true	"One-time token"
//	@Param			type		query	string	true	"signup or recovery"
//	@Param			redirect_to	query	string	false	"Landing page"
//	@Success		303			"Redirect with fragment"
//	@Failure		400			{object}	httpx.ErrorBody	"validation_failed"
//	@Router			/verify [get].
func (h *VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	location, err := h.Users.Verify(r.Context(), q.Get("token"), q.Get("type"), q.Get("redirect_to"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	slogx.FromContext(r.Context()).Debug("verify redirect", "type", q.Get("type"))
	httpx.NoCache(w)
	http.Redirect(w, r, location, http.StatusSeeOther)
}

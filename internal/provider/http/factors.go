package http

import (
	"net/http"

	"github.com/aussiebroadwan/authclient/internal/provider/service"
	"github.com/aussiebroadwan/authclient/pkg/authsdk"
	"github.com/aussiebroadwan/authclient/pkg/httpx"
)

// FactorsHandler handles all MFA factor endpoints.
type FactorsHandler struct {
	MFA *service.MFAService
}

// HandleEnroll handles POST /factors
//
//	@Summary		Enroll a TOTP factor
//	@Description	Creates an unverified factor and returns its secret, otpauth URI and QR code.
//	@Tags			MFA
//	@Security		APIKey
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.EnrollFactorRequest		true	"Factor"
//	@Success		200		{object}	authsdk.EnrollFactorResponse	"New factor"
//	@Failure		422		{object}	httpx.ErrorBody					"too_many_enrolled_mfa_factors"
//	@Router			/factors [post].
func (h *FactorsHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpx.ClaimsFromContext(r.Context())

	var req authsdk.EnrollFactorRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.MFA.Enroll(r.Context(), claims.Subject, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleChallenge handles POST /factors/{id}/challenge
//
//	@Summary	Challenge a factor
//	@Tags		MFA
//	@Security	APIKey
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id	path		string						true	"Factor ID"
//	@Success	200	{object}	authsdk.ChallengeResponse	"Challenge"
//	@Failure	404	{object}	httpx.ErrorBody				"mfa_factor_not_found"
//	@Router		/factors/{id}/challenge [post].
func (h *FactorsHandler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpx.ClaimsFromContext(r.Context())

	resp, err := h.MFA.Challenge(r.Context(), claims.Subject, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleVerify handles POST /factors/{id}/verify
//
//	@Summary		Verify a challenge
//	@Description	Verifies the factor on first use and steps the session up to aal2.
//	@Tags			MFA
//	@Security		APIKey
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Factor ID"
//	@Param			request	body		authsdk.VerifyFactorRequest	true	"Challenge and code"
//	@Success		200		{object}	authsdk.TokenResponse		"aal2 session"
//	@Failure		422		{object}	httpx.ErrorBody				"mfa_verification_failed, mfa_challenge_expired"
//	@Router			/factors/{id}/verify [post].
func (h *FactorsHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpx.ClaimsFromContext(r.Context())

	var req authsdk.VerifyFactorRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := h.MFA.Verify(r.Context(), claims.Subject, claims.SessionID, r.PathValue("id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleUnenroll handles DELETE /factors/{id}
//
//	@Summary	Remove a factor
//	@Tags		MFA
//	@Security	APIKey
//	@Security	BearerAuth
//	@Produce	json
//	@Param		id	path		string						true	"Factor ID"
//	@Success	200	{object}	authsdk.UnenrollResponse	"Removed factor"
//	@Failure	404	{object}	httpx.ErrorBody				"mfa_factor_not_found"
//	@Router		/factors/{id} [delete].
func (h *FactorsHandler) HandleUnenroll(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpx.ClaimsFromContext(r.Context())

	resp, err := h.MFA.Unenroll(r.Context(), claims.Subject, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

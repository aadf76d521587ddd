package http

import (
	"net/http"

	"github.com/aussiebroadwan/authclient/internal/provider/service"
	"github.com/aussiebroadwan/authclient/pkg/authsdk"
	"github.com/aussiebroadwan/authclient/pkg/httpx"
)

// UserHandler serves the caller's own user document.
type UserHandler struct {
	Users *service.UserService
}

// HandleGet handles GET /user
//
//	@Summary	Current user
//	@Tags		User
//	@Security	APIKey
//	@Security	BearerAuth
//	@Produce	json
//	@Success	200	{object}	authsdk.User	"User with factors"
//	@Failure	401	{object}	httpx.ErrorBody	"no_authorization, bad_jwt"
//	@Failure	403	{object}	httpx.ErrorBody	"session_not_found"
//	@Router		/user [get].
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpx.ClaimsFromContext(r.Context())
	u, err := h.Users.GetUser(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

// HandleUpdate handles PUT /user
//
//	@Summary		Update the current user
//	@Description	Only password changes are supported.
//	@Tags			User
//	@Security		APIKey
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.UserAttributes	true	"Attributes"
//	@Success		200		{object}	authsdk.User			"Updated user"
//	@Failure		422		{object}	httpx.ErrorBody			"weak_password, same_password"
//	@Router			/user [put].
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	claims, _ := httpx.ClaimsFromContext(r.Context())

	var attrs authsdk.UserAttributes
	if !decodeBody(w, r, &attrs) {
		return
	}

	u, err := h.Users.UpdateUser(r.Context(), claims.Subject, attrs)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, u)
}

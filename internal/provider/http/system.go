package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/authclient/internal/provider/service"
	"github.com/aussiebroadwan/authclient/internal/provider/store"
	"github.com/aussiebroadwan/authclient/pkg/authsdk"
	"github.com/aussiebroadwan/authclient/pkg/httpx"
	"github.com/aussiebroadwan/authclient/pkg/slogx"
)

// HealthHandler handles GET /health
//
//	@Summary		Health check
//	@Description	Reports the build and pings the database.
//	@Tags			System
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"Healthy"
//	@Failure		500	{object}	httpx.ErrorBody			"Database unreachable"
//	@Router			/health [get].
func HealthHandler(buildVersion string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			slogx.FromContext(ctx).Error("health check failed", "err", err)
			authsdk.ErrUnexpectedFailure.WriteError(w)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{
			Version:     buildVersion,
			Name:        "devprovider",
			Description: "authclient development identity provider",
		})
	}
}

// OutboxHandler handles GET /_dev/outbox?email=
//
//	@Summary		Development outbox
//	@Description	Lists the confirmation and recovery mails sent to an address, oldest first.
//	@Tags			System
//	@Produce		json
//	@Param			email	query	string	false	"Recipient"
//	@Success		200		{array}	domain.Mail	"Mails"
//	@Router			/_dev/outbox [get].
func OutboxHandler(outbox *service.Outbox) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, outbox.List(r.URL.Query().Get("email")))
	}
}

package http

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/authclient/internal/provider/service"
	"github.com/aussiebroadwan/authclient/internal/provider/store"
	"github.com/aussiebroadwan/authclient/pkg/authsdk"
	"github.com/aussiebroadwan/authclient/pkg/httpx"
	"github.com/aussiebroadwan/authclient/pkg/jwtx"
	"github.com/aussiebroadwan/authclient/pkg/slogx"

	_ "github.com/aussiebroadwan/authclient/api/provider" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

const maxBodyBytes = 64 << 10

// Limits are the rate limit profiles applied per endpoint group.
type Limits struct {
	Auth   httpx.RateLimitConfig // /token, /signup
	Email  httpx.RateLimitConfig // /recover, keyed by IP and email
	MFA    httpx.RateLimitConfig // factor verification, keyed by user
	Public httpx.RateLimitConfig // everything else
}

// DefaultLimits uses the shared profiles, which honour RATELIMIT_* overrides.
func DefaultLimits() Limits {
	return Limits{
		Auth:   httpx.StrictLimit,
		Email:  httpx.StrictLimit,
		MFA:    httpx.StrictLimit,
		Public: httpx.LenientLimit,
	}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	apiKey       string
	buildVersion string
	store        store.Store
	logger       *slog.Logger

	Limits       Limits
	TokenService *service.TokenService
	UserService  *service.UserService
	MFAService   *service.MFAService
	Outbox       *service.Outbox // nil disables GET /_dev/outbox
}

func NewRouter(
	verifier jwtx.Verifier,
	apiKey, buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		apiKey:       apiKey,
		buildVersion: buildVersion,
		store:        st,
		logger:       logger,
		Limits:       DefaultLimits(),
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.MaxBodyBytes(maxBodyBytes),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerTokens()
	r.registerAccounts()
	r.registerUser()
	r.registerFactors()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			authclient development provider
//	@version		0.1.0
//	@description	GoTrue-compatible identity provider used for local development and tests.
//	@description	Access tokens are HS256 JWTs carrying aal, amr and session_id claims.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/authclient
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:9999
//	@BasePath		/
//
//	@schemes		http https
//
//	@securityDefinitions.apikey	APIKey
//	@in							header
//	@name						apikey
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// authenticated is the chain shared by every bearer endpoint.
func (r *Router) authenticated(h http.Handler, limit httpx.RateLimitConfig) http.Handler {
	return httpx.Chain(h,
		r.requireAPIKey(),
		httpx.AuthnMiddleware(r.verifier),
		r.requireSession(),
		httpx.RateLimitByUser(limit),
	)
}

func (r *Router) registerTokens() {
	tokenHandler := &TokenHandler{Tokens: r.TokenService}
	r.Mux.Handle("POST /token",
		httpx.Chain(tokenHandler,
			r.requireAPIKey(),
			httpx.RateLimitByIPAndJSONField(r.Limits.Auth, "email"),
		),
	)

	logoutHandler := &LogoutHandler{Tokens: r.TokenService}
	r.Mux.Handle("POST /logout", r.authenticated(logoutHandler, r.Limits.Public))
}

func (r *Router) registerAccounts() {
	r.Mux.Handle("POST /signup",
		httpx.Chain(&SignUpHandler{Users: r.UserService},
			r.requireAPIKey(),
			httpx.RateLimitByIP(r.Limits.Auth),
		),
	)

	r.Mux.Handle("POST /recover",
		httpx.Chain(&RecoverHandler{Users: r.UserService},
			r.requireAPIKey(),
			httpx.RateLimitByIPAndJSONField(r.Limits.Email, "email"),
		),
	)

	// Opened from emailed links, so no apikey.
	r.Mux.Handle("GET /verify",
		httpx.Chain(&VerifyHandler{Users: r.UserService},
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
}

func (r *Router) registerUser() {
	h := &UserHandler{Users: r.UserService}
	r.Mux.Handle("GET /user", r.authenticated(http.HandlerFunc(h.HandleGet), r.Limits.Public))
	r.Mux.Handle("PUT /user", r.authenticated(http.HandlerFunc(h.HandleUpdate), r.Limits.Auth))
}

func (r *Router) registerFactors() {
	h := &FactorsHandler{MFA: r.MFAService}
	r.Mux.Handle("POST /factors", r.authenticated(http.HandlerFunc(h.HandleEnroll), r.Limits.Public))
	r.Mux.Handle("POST /factors/{id}/challenge", r.authenticated(http.HandlerFunc(h.HandleChallenge), r.Limits.Public))
	r.Mux.Handle("POST /factors/{id}/verify", r.authenticated(http.HandlerFunc(h.HandleVerify), r.Limits.MFA))
	r.Mux.Handle("DELETE /factors/{id}", r.authenticated(http.HandlerFunc(h.HandleUnenroll), r.Limits.Public))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /health",
		httpx.Chain(HealthHandler(r.buildVersion, r.store),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)

	if r.Outbox != nil {
		r.Mux.Handle("GET /_dev/outbox", OutboxHandler(r.Outbox))
	}
}

// requireAPIKey checks the apikey header when the provider was configured
// with one.
func (r *Router) requireAPIKey() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		if r.apiKey == "" {
			return next
		}
		want := []byte(r.apiKey)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if subtle.ConstantTimeCompare([]byte(req.Header.Get("apikey")), want) != 1 {
				authsdk.NewAPIError(http.StatusUnauthorized, authsdk.ErrorCodeNoAuthorization,
					"Invalid API key").WriteError(w)
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

// requireSession rejects tokens whose session has been signed out.
func (r *Router) requireSession() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			claims, ok := httpx.ClaimsFromContext(req.Context())
			if !ok {
				authsdk.ErrSessionNotFound.WriteError(w)
				return
			}
			if _, err := r.TokenService.RequireSession(req.Context(), claims.SessionID, claims.Subject); err != nil {
				writeServiceError(w, req, err)
				return
			}
			ctx := slogx.With(req.Context(), "user_id", claims.Subject, "session_id", claims.SessionID)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

package authstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aussiebroadwan/authclient/pkg/authsdk"
)

const tracerName = "github.com/aussiebroadwan/authclient/pkg/authstate"

// GoTrueGateway implements Gateway on top of an authsdk.SDKClient. It owns
// the provider-side token holder (an *authsdk.Session) and translates its
// refresh events into Gateway events.
type GoTrueGateway struct {
	client *authsdk.SDKClient
	logger *slog.Logger
	tracer trace.Tracer

	mu      sync.RWMutex
	session *authsdk.Session

	refresher *authsdk.AutoRefresher
}

// NewGoTrueGateway wraps client.
func NewGoTrueGateway(client *authsdk.SDKClient, logger *slog.Logger) *GoTrueGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoTrueGateway{
		client: client,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

func (g *GoTrueGateway) current() *authsdk.Session {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.session
}

func (g *GoTrueGateway) setCurrent(s *authsdk.Session) {
	g.mu.Lock()
	g.session = s
	g.mu.Unlock()
}

func (g *GoTrueGateway) requireSession() (*authsdk.Session, error) {
	s := g.current()
	if s == nil || s.RefreshToken() == "" {
		return nil, NewError(KindNoActiveSession, authsdk.ErrNoSession)
	}
	return s, nil
}

func (g *GoTrueGateway) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return g.tracer.Start(ctx, "authclient.gateway."+op)
}

// end records err on span and returns it normalised.
func end(span trace.Span, err error) error {
	defer span.End()
	if err == nil {
		return nil
	}
	e := normalize(err)
	span.RecordError(err)
	span.SetAttributes(attribute.String("auth.error_kind", string(e.Kind)))
	span.SetStatus(codes.Error, string(e.Kind))
	return e
}

// ============================================================================
// Credentials
// ============================================================================

func (g *GoTrueGateway) SignIn(ctx context.Context, email, password string) (Session, error) {
	ctx, span := g.start(ctx, "sign_in")
	s, err := g.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return Session{}, end(span, err)
	}
	sess, err := g.snapshot(ctx, s)
	if err != nil {
		return Session{}, end(span, err)
	}
	g.setCurrent(s)
	return sess, end(span, nil)
}

func (g *GoTrueGateway) SignUp(ctx context.Context, email, password, redirectTo string) (SignUpOutcome, error) {
	ctx, span := g.start(ctx, "sign_up")
	res, err := g.client.SignUp(ctx, authsdk.SignUpRequest{Email: email, Password: password}, redirectTo)
	if err != nil {
		return SignUpOutcome{}, end(span, err)
	}

	out := SignUpOutcome{User: userFromSDK(res.User)}
	if res.Session == nil {
		out.ConfirmationPending = true
		return out, end(span, nil)
	}

	sess, err := g.snapshot(ctx, res.Session)
	if err != nil {
		return SignUpOutcome{}, end(span, err)
	}
	g.setCurrent(res.Session)
	out.Session = &sess
	out.User = sess.User
	return out, end(span, nil)
}

func (g *GoTrueGateway) SignOut(ctx context.Context) error {
	ctx, span := g.start(ctx, "sign_out")

	g.mu.Lock()
	s := g.session
	g.session = nil
	g.mu.Unlock()

	if s == nil {
		return end(span, nil)
	}
	return end(span, s.Logout(ctx))
}

func (g *GoTrueGateway) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	ctx, span := g.start(ctx, "recover")
	return end(span, g.client.Recover(ctx, email, redirectTo))
}

func (g *GoTrueGateway) UpdatePassword(ctx context.Context, password string) (User, error) {
	ctx, span := g.start(ctx, "update_password")
	s, err := g.requireSession()
	if err != nil {
		return User{}, end(span, err)
	}
	u, err := s.UpdateUser(ctx, authsdk.UserAttributes{Password: password})
	if err != nil {
		return User{}, end(span, err)
	}
	return userFromSDK(*u), end(span, nil)
}

// ============================================================================
// Sessions
// ============================================================================

func (g *GoTrueGateway) GetSession(ctx context.Context) (*Session, error) {
	ctx, span := g.start(ctx, "get_session")

	s := g.current()
	if s == nil {
		restored, err := g.client.RestoreSession(ctx)
		if errors.Is(err, authsdk.ErrNoSession) {
			return nil, end(span, nil)
		}
		if err != nil {
			return nil, end(span, err)
		}
		s = restored
	}

	sess, err := g.snapshot(ctx, s)
	if err != nil {
		return nil, end(span, err)
	}
	g.setCurrent(s)
	return &sess, end(span, nil)
}

func (g *GoTrueGateway) SessionFromFragment(ctx context.Context, f authsdk.Fragment) (Session, error) {
	ctx, span := g.start(ctx, "session_from_fragment")
	span.SetAttributes(attribute.String("auth.link_type", f.Type))

	s, err := g.client.SessionFromFragment(ctx, f)
	if err != nil {
		return Session{}, end(span, err)
	}
	sess, err := g.snapshot(ctx, s)
	if err != nil {
		return Session{}, end(span, err)
	}
	g.setCurrent(s)
	return sess, end(span, nil)
}

func (g *GoTrueGateway) OnSessionChange(fn func(ev Event, session *Session)) (unsubscribe func()) {
	return g.client.OnAuthStateChange(func(ev authsdk.Event) {
		// Events for sessions this gateway no longer holds are stale.
		if ev.Session == nil || ev.Session != g.current() {
			return
		}

		switch ev.Type {
		case authsdk.EventSignedOut:
			g.setCurrent(nil)
			fn(EventSignedOut, nil)
		case authsdk.EventTokenRefreshed:
			snap := ev.Session.Snapshot()
			if snap.User == nil {
				g.logger.Warn("refreshed session has no user")
				return
			}
			sess, err := sessionFromStored(snap)
			if err != nil {
				g.logger.Warn("refreshed session is incomplete", "err", err)
				return
			}
			fn(EventTokenRefreshed, &sess)
		}
	})
}

// StartAutoRefresh refreshes the held session in the background, every
// interval, ahead of expiry. The returned function stops it.
func (g *GoTrueGateway) StartAutoRefresh(interval time.Duration) (stop func()) {
	r := authsdk.NewAutoRefresher(g.current, g.logger, interval)
	r.Start()

	var once sync.Once
	return func() { once.Do(r.Stop) }
}

// ============================================================================
// MFA
// ============================================================================

func (g *GoTrueGateway) EnrollTOTP(ctx context.Context, params EnrollParams) (EnrollmentChallenge, error) {
	ctx, span := g.start(ctx, "mfa_enroll")
	s, err := g.requireSession()
	if err != nil {
		return EnrollmentChallenge{}, end(span, err)
	}

	resp, err := s.Enroll(ctx, authsdk.EnrollFactorRequest{
		FactorType:   authsdk.FactorTypeTOTP,
		FriendlyName: params.FriendlyName,
		Issuer:       params.Issuer,
	})
	if err != nil {
		return EnrollmentChallenge{}, end(span, err)
	}

	return EnrollmentChallenge{
		FactorID: resp.ID,
		Secret:   resp.TOTP.Secret,
		URI:      resp.TOTP.URI,
		QRCode:   resp.TOTP.QRCode,
	}, end(span, nil)
}

func (g *GoTrueGateway) VerifyTOTP(ctx context.Context, factorID, code string) (Factor, Session, error) {
	ctx, span := g.start(ctx, "mfa_verify")
	s, err := g.requireSession()
	if err != nil {
		return Factor{}, Session{}, end(span, err)
	}

	if err := s.ChallengeAndVerify(ctx, factorID, code); err != nil {
		return Factor{}, Session{}, end(span, err)
	}

	user, err := s.GetUser(ctx)
	if err != nil {
		return Factor{}, Session{}, end(span, err)
	}

	var factor Factor
	for _, f := range user.Factors {
		if f.ID == factorID {
			factor = factorFromSDK(f)
		}
	}
	if factor.ID == "" {
		return Factor{}, Session{}, end(span, authsdk.ErrMFAFactorNotFound)
	}

	sess, err := g.snapshot(ctx, s)
	if err != nil {
		return Factor{}, Session{}, end(span, err)
	}
	return factor, sess, end(span, nil)
}

func (g *GoTrueGateway) UnenrollFactor(ctx context.Context, factorID string) error {
	ctx, span := g.start(ctx, "mfa_unenroll")
	s, err := g.requireSession()
	if err != nil {
		return end(span, err)
	}
	_, err = s.Unenroll(ctx, factorID)
	return end(span, err)
}

func (g *GoTrueGateway) ListFactors(ctx context.Context) ([]Factor, error) {
	ctx, span := g.start(ctx, "mfa_list_factors")
	s, err := g.requireSession()
	if err != nil {
		return nil, end(span, err)
	}

	factors, err := s.ListFactors(ctx)
	if err != nil {
		return nil, end(span, err)
	}

	out := make([]Factor, 0, len(factors))
	for _, f := range factors {
		out = append(out, factorFromSDK(f))
	}
	return out, end(span, nil)
}

// ============================================================================
// Conversion
// ============================================================================

// snapshot converts the token holder into a Session, fetching the user
// when the holder has not seen one yet.
func (g *GoTrueGateway) snapshot(ctx context.Context, s *authsdk.Session) (Session, error) {
	if _, ok := s.User(); !ok {
		if _, err := s.GetUser(ctx); err != nil {
			return Session{}, err
		}
	}
	return sessionFromStored(s.Snapshot())
}

func sessionFromStored(st authsdk.StoredSession) (Session, error) {
	if st.User == nil {
		return Session{}, errNoUser
	}
	sess, err := NewSession(userFromSDK(*st.User), st.AccessToken, st.RefreshToken, st.TokenType, st.ExpiresAt)
	if err != nil {
		return Session{}, fmt.Errorf("failed to build session: %w", err)
	}
	return sess, nil
}

func userFromSDK(u authsdk.User) User {
	out := User{
		ID:            u.ID,
		Email:         u.Email,
		EmailVerified: u.Confirmed(),
		CreatedAt:     u.CreatedAt,
	}
	switch {
	case u.EmailConfirmedAt != nil:
		out.ConfirmedAt = *u.EmailConfirmedAt
	case u.ConfirmedAt != nil:
		out.ConfirmedAt = *u.ConfirmedAt
	}
	return out
}

func factorFromSDK(f authsdk.Factor) Factor {
	return Factor{
		ID:           f.ID,
		Type:         f.FactorType,
		FriendlyName: f.FriendlyName,
		Status:       f.Status,
		CreatedAt:    f.CreatedAt,
	}
}

// ============================================================================
// Error normalisation
// ============================================================================

// normalize maps transport and provider failures onto ErrorKind. The
// provider code is kept on the Error and the original error as its cause.
func normalize(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	if authsdk.IsTransport(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindProviderUnavailable, err)
	}
	if errors.Is(err, authsdk.ErrNoSession) {
		return NewError(KindNoActiveSession, err)
	}

	var apiErr *authsdk.APIError
	if !errors.As(err, &apiErr) {
		return NewError(KindUnknown, err)
	}

	out := NewError(kindForCode(apiErr.Code, apiErr.StatusCode), err)
	out.Code = apiErr.Code
	return out
}

func kindForCode(code string, status int) ErrorKind {
	switch code {
	case authsdk.ErrorCodeInvalidCredentials, authsdk.ErrorCodeInvalidGrant:
		return KindInvalidCredentials
	case authsdk.ErrorCodeEmailNotConfirmed:
		return KindEmailNotConfirmed
	case authsdk.ErrorCodeUserAlreadyExists, authsdk.ErrorCodeEmailExists:
		return KindAccountExists
	case authsdk.ErrorCodeWeakPassword:
		return KindWeakPassword
	case authsdk.ErrorCodeSamePassword, authsdk.ErrorCodeValidationFailed,
		authsdk.ErrorCodeBadJSON, authsdk.ErrorCodeEmailAddressInvalid:
		return KindInvalidInput
	case authsdk.ErrorCodeMFAVerificationFailed, authsdk.ErrorCodeMFAChallengeExpired:
		// Wrong digits and a stale challenge stay indistinguishable.
		return KindInvalidCode
	case authsdk.ErrorCodeTooManyEnrolledMFAFactors, authsdk.ErrorCodeMFATOTPEnrollNotEnabled:
		return KindEnrollmentFailed
	case authsdk.ErrorCodeMFAFactorNotFound:
		return KindFactorNotFound
	case authsdk.ErrorCodeSessionNotFound, authsdk.ErrorCodeRefreshTokenNotFound,
		authsdk.ErrorCodeRefreshTokenAlreadyUsed, authsdk.ErrorCodeNoAuthorization,
		authsdk.ErrorCodeBadJWT:
		return KindNoActiveSession
	case authsdk.ErrorCodeOTPExpired, authsdk.ErrorCodeFlowStateExpired:
		return KindExpiredOrInvalidLink
	case authsdk.ErrorCodeOverRequestRateLimit, authsdk.ErrorCodeOverEmailSendRateLimit:
		return KindRateLimited
	}

	switch {
	case status == http.StatusUnauthorized:
		return KindNoActiveSession
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindProviderUnavailable
	}
	return KindUnknown
}

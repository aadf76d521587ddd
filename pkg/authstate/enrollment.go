package authstate

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// EnrollmentState is a state of the TOTP enrollment machine.
type EnrollmentState int

const (
	Unenrolled EnrollmentState = iota
	Enrolling
	AwaitingVerification
	Enrolled
	Removed
)

var allEnrollmentStates = []EnrollmentState{Unenrolled, Enrolling, AwaitingVerification, Enrolled, Removed}

func (s EnrollmentState) String() string {
	switch s {
	case Unenrolled:
		return "unenrolled"
	case Enrolling:
		return "enrolling"
	case AwaitingVerification:
		return "awaiting_verification"
	case Enrolled:
		return "enrolled"
	case Removed:
		return "removed"
	}
	return fmt.Sprintf("EnrollmentState(%d)", int(s))
}

// EnrollOption adjusts a new factor.
type EnrollOption func(*EnrollParams)

// WithFriendlyName labels the factor in authenticator apps and listings.
func WithFriendlyName(name string) EnrollOption {
	return func(p *EnrollParams) { p.FriendlyName = name }
}

// WithIssuer sets the issuer shown by authenticator apps.
func WithIssuer(issuer string) EnrollOption {
	return func(p *EnrollParams) { p.Issuer = issuer }
}

// Enrollment drives TOTP enrollment for the signed-in user:
//
//	Unenrolled -> Enrolling -> AwaitingVerification -> Enrolled
//	Enrolled -> Removed (last factor unenrolled)
//
// Methods called in a state that does not allow them fail with
// KindInvalidState and leave the state as it was.
type Enrollment struct {
	gw    Gateway
	store *Store
	cfg   config

	mu       sync.Mutex
	state    EnrollmentState
	previous EnrollmentState
	factors  []Factor
	pending  *EnrollmentChallenge
}

// NewEnrollment starts in Unenrolled; call ListFactors to load the real
// state.
func NewEnrollment(gw Gateway, store *Store, opts ...Option) *Enrollment {
	e := &Enrollment{gw: gw, store: store, cfg: newConfig(opts)}
	e.cfg.metrics.enrollmentState(Unenrolled)
	return e
}

// State returns the current state.
func (e *Enrollment) State() EnrollmentState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Factors returns the verified factors from the last listing.
func (e *Enrollment) Factors() []Factor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.factors)
}

// Pending returns the outstanding challenge, if any.
func (e *Enrollment) Pending() (EnrollmentChallenge, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending == nil {
		return EnrollmentChallenge{}, false
	}
	return *e.pending, true
}

// ListFactors fetches the user's verified TOTP factors. Outside an
// enrollment in progress it also settles the state: Enrolled when any
// factor exists, otherwise Unenrolled (or Removed, if that is where the
// machine is).
func (e *Enrollment) ListFactors(ctx context.Context) Result[[]Factor] {
	all, err := e.gw.ListFactors(ctx)
	if err != nil {
		return fail[[]Factor](e.cfg, "mfa_list_factors", err)
	}

	verified := make([]Factor, 0, len(all))
	for _, f := range all {
		if f.Type == "totp" && f.Verified() {
			verified = append(verified, f)
		}
	}

	e.mu.Lock()
	e.factors = verified
	if e.state != Enrolling && e.state != AwaitingVerification {
		switch {
		case len(verified) > 0:
			e.setStateLocked(Enrolled)
		case e.state != Removed:
			e.setStateLocked(Unenrolled)
		}
	}
	e.mu.Unlock()

	e.cfg.metrics.operation("mfa_list_factors", nil)
	return ok(slices.Clone(verified))
}

// Enroll requests a new TOTP secret. It is allowed from Unenrolled and
// Removed, and moves to AwaitingVerification on success.
func (e *Enrollment) Enroll(ctx context.Context, opts ...EnrollOption) Result[EnrollmentChallenge] {
	e.mu.Lock()
	if e.state != Unenrolled && e.state != Removed {
		state := e.state
		e.mu.Unlock()
		return fail[EnrollmentChallenge](e.cfg, "mfa_enroll", invalidState("enroll", state))
	}
	e.previous = e.state
	e.setStateLocked(Enrolling)
	e.mu.Unlock()

	var params EnrollParams
	for _, opt := range opts {
		opt(&params)
	}

	challenge, err := e.gw.EnrollTOTP(ctx, params)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.setStateLocked(e.previous)
		ae := asError(err)
		switch ae.Kind {
		case KindProviderUnavailable, KindNoActiveSession, KindRateLimited:
		default:
			ae = &Error{Kind: KindEnrollmentFailed, Code: ae.Code, cause: err}
		}
		return fail[EnrollmentChallenge](e.cfg, "mfa_enroll", ae)
	}

	e.pending = &challenge
	e.setStateLocked(AwaitingVerification)
	e.cfg.metrics.operation("mfa_enroll", nil)
	return ok(challenge)
}

// Verify submits code for the pending challenge. A wrong or stale code
// fails with KindInvalidCode and keeps the challenge for another attempt.
// On success the factor is Enrolled, the challenge is dropped, the Store
// receives the stepped-up Session and the factor list is refreshed.
func (e *Enrollment) Verify(ctx context.Context, challenge EnrollmentChallenge, code string) Result[Factor] {
	e.mu.Lock()
	if e.state != AwaitingVerification || e.pending == nil || e.pending.FactorID != challenge.FactorID {
		state := e.state
		e.mu.Unlock()
		return fail[Factor](e.cfg, "mfa_verify", invalidState("verify", state))
	}
	e.mu.Unlock()

	factor, sess, err := e.gw.VerifyTOTP(ctx, challenge.FactorID, code)
	if err != nil {
		return fail[Factor](e.cfg, "mfa_verify", err)
	}

	e.mu.Lock()
	if e.pending != nil && e.pending.FactorID == challenge.FactorID {
		e.pending = nil
		e.setStateLocked(Enrolled)
	}
	e.mu.Unlock()

	// A sign-out that finished while the code was in flight stays signed out.
	if !e.store.update(EventMFAVerified, sess) {
		e.cfg.logger.Debug("stepped-up session dropped, store no longer holds it")
	}
	e.cfg.metrics.operation("mfa_verify", nil)

	if res := e.ListFactors(ctx); !res.OK() {
		e.cfg.logger.Warn("factor list refresh after verify failed", "kind", res.Err.Kind)
		e.mu.Lock()
		if !slices.ContainsFunc(e.factors, func(f Factor) bool { return f.ID == factor.ID }) {
			e.factors = append(e.factors, factor)
		}
		e.mu.Unlock()
	}
	return ok(factor)
}

// Abandon drops the pending challenge and returns to the state before
// Enroll. The unverified factor is deleted on a best-effort basis.
func (e *Enrollment) Abandon(ctx context.Context) Result[struct{}] {
	e.mu.Lock()
	if e.state != AwaitingVerification || e.pending == nil {
		state := e.state
		e.mu.Unlock()
		return fail[struct{}](e.cfg, "mfa_abandon", invalidState("abandon", state))
	}
	factorID := e.pending.FactorID
	e.pending = nil
	e.setStateLocked(e.previous)
	e.mu.Unlock()

	if err := e.gw.UnenrollFactor(ctx, factorID); err != nil {
		e.cfg.logger.Info("could not delete abandoned factor", "factor_id", factorID, "kind", KindOf(err))
	}

	e.cfg.metrics.operation("mfa_abandon", nil)
	return ok(struct{}{})
}

// Unenroll removes a factor. It is allowed from Enrolled only; an unknown
// id fails with KindFactorNotFound. Afterwards the state is Removed if no
// factors remain, Enrolled otherwise. Asking the user for confirmation is
// the caller's job.
func (e *Enrollment) Unenroll(ctx context.Context, factorID string) Result[struct{}] {
	e.mu.Lock()
	if e.state != Enrolled {
		state := e.state
		e.mu.Unlock()
		return fail[struct{}](e.cfg, "mfa_unenroll", invalidState("unenroll", state))
	}
	e.mu.Unlock()

	if err := e.gw.UnenrollFactor(ctx, factorID); err != nil {
		return fail[struct{}](e.cfg, "mfa_unenroll", err)
	}

	remaining := e.refreshAfterRemoval(ctx, factorID)

	e.mu.Lock()
	if e.state == Enrolled && len(remaining) == 0 {
		e.setStateLocked(Removed)
	}
	e.mu.Unlock()

	e.cfg.metrics.operation("mfa_unenroll", nil)
	return ok(struct{}{})
}

// refreshAfterRemoval reloads the factor list, falling back to dropping
// the removed factor from the cached list when the reload fails.
func (e *Enrollment) refreshAfterRemoval(ctx context.Context, factorID string) []Factor {
	all, err := e.gw.ListFactors(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err != nil {
		e.cfg.logger.Warn("factor list refresh after unenroll failed", "kind", KindOf(err))
		e.factors = slices.DeleteFunc(e.factors, func(f Factor) bool { return f.ID == factorID })
		return slices.Clone(e.factors)
	}

	verified := make([]Factor, 0, len(all))
	for _, f := range all {
		if f.Type == "totp" && f.Verified() {
			verified = append(verified, f)
		}
	}
	e.factors = verified
	return slices.Clone(verified)
}

func (e *Enrollment) setStateLocked(s EnrollmentState) {
	if e.state != s {
		e.cfg.logger.Debug("mfa enrollment state", "from", e.state, "to", s)
	}
	e.state = s
	e.cfg.metrics.enrollmentState(s)
}

func invalidState(op string, s EnrollmentState) *Error {
	return NewError(KindInvalidState, fmt.Errorf("%s not allowed in state %s", op, s))
}

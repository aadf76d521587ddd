package authstate

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/authclient/pkg/authsdk"
)

// Operations is the stateless facade for credentialed operations. Each
// method is one Gateway call; successful results are written to the Store.
//
// Operations holds no locks and never retries. Overlapping calls are all
// sent; the last to resolve determines the Store's Session.
type Operations struct {
	gw    Gateway
	store *Store
	cfg   config
}

// NewOperations binds gw and store.
func NewOperations(gw Gateway, store *Store, opts ...Option) *Operations {
	return &Operations{gw: gw, store: store, cfg: newConfig(opts)}
}

// SignIn authenticates with email and password and makes the new Session
// current.
func (o *Operations) SignIn(ctx context.Context, email, password string) Result[Session] {
	sess, err := o.gw.SignIn(ctx, email, password)
	if err != nil {
		return fail[Session](o.cfg, "sign_in", err)
	}

	o.store.set(EventSignedIn, sess)
	o.done("sign_in")
	return ok(sess)
}

// SignUp registers an account. When the provider requires email
// confirmation the outcome has ConfirmationPending set and the Store is
// untouched.
func (o *Operations) SignUp(ctx context.Context, email, password string, opts ...RedirectOption) Result[SignUpOutcome] {
	out, err := o.gw.SignUp(ctx, email, password, redirectTarget(opts))
	if err != nil {
		return fail[SignUpOutcome](o.cfg, "sign_up", err)
	}

	if out.Session != nil {
		o.store.set(EventSignedIn, *out.Session)
	}
	o.done("sign_up")
	return ok(out)
}

// SignOut ends the session. It succeeds when already signed out, and the
// local Session is cleared even if the provider cannot be reached.
func (o *Operations) SignOut(ctx context.Context) Result[struct{}] {
	err := o.gw.SignOut(ctx)
	o.store.clear()

	if err != nil {
		e := asError(err)
		switch e.Kind {
		case KindNoActiveSession:
			// The provider already forgot the session.
		default:
			return fail[struct{}](o.cfg, "sign_out", e)
		}
	}

	o.done("sign_out")
	return ok(struct{}{})
}

// ResetPassword asks the provider to email a recovery link. The result is
// success for unknown addresses too; only malformed addresses, transport
// failures and rate limits are reported.
func (o *Operations) ResetPassword(ctx context.Context, email string, opts ...RedirectOption) Result[struct{}] {
	err := o.gw.RequestPasswordReset(ctx, email, redirectTarget(opts))
	if err != nil {
		e := asError(err)
		switch e.Kind {
		case KindInvalidInput, KindProviderUnavailable, KindRateLimited:
			return fail[struct{}](o.cfg, "reset_password", e)
		}
		o.cfg.logger.Debug("password reset error hidden from caller", "kind", e.Kind, "code", e.Code)
	}

	o.done("reset_password")
	return ok(struct{}{})
}

// UpdatePassword sets a new password. It is only allowed while rc
// authorises it and the Store holds an unexpired Session;
// otherwise it fails with KindNoActiveSession without calling the
// provider.
func (o *Operations) UpdatePassword(ctx context.Context, rc RecoveryContext, password string) Result[User] {
	cur, present := o.store.Current()
	if !rc.Authorized() || !present || cur.Expired(o.cfg.now()) {
		return fail[User](o.cfg, "update_password", NewError(KindNoActiveSession, authsdk.ErrNoSession))
	}

	user, err := o.gw.UpdatePassword(ctx, password)
	if err != nil {
		return fail[User](o.cfg, "update_password", err)
	}

	// The tokens are unchanged; only the user snapshot is new.
	if latest, ok := o.store.Current(); ok && latest.User.ID == user.ID {
		o.store.update(EventUserUpdated, latest.withUser(user))
	}
	o.done("update_password")
	return ok(user)
}

func (o *Operations) done(op string) {
	o.cfg.metrics.operation(op, nil)
	o.cfg.logger.Debug("auth operation succeeded", "op", op)
}

// fail converts err into a localised failed Result and records it.
func fail[T any](cfg config, op string, err error) Result[T] {
	e := cfg.messages.localize(asError(err))

	cfg.metrics.operation(op, e)
	level := cfg.logger.Info
	if e.Kind == KindProviderUnavailable || e.Kind == KindUnknown {
		level = cfg.logger.Warn
	}
	level("auth operation failed", "op", op, "kind", e.Kind, "code", e.Code, "err", errors.Unwrap(e))

	return failed[T](e)
}

package authstate

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/aussiebroadwan/authclient/pkg/authsdk"
)

// RecoveryContext is what Recovery derived from the landing address. It is
// read-only.
type RecoveryContext struct {
	active    bool
	session   *Session
	condition *Error
}

// Active reports whether the load came from a recovery link.
func (rc RecoveryContext) Active() bool { return rc.active }

// Session returns the session the recovery link established.
func (rc RecoveryContext) Session() (Session, bool) {
	if rc.session == nil {
		return Session{}, false
	}
	return *rc.session, true
}

// Condition returns why the link cannot be used, or nil. It is set when
// the link carried an error, or recovery was signalled without a usable
// session; its kind is KindExpiredOrInvalidLink.
func (rc RecoveryContext) Condition() *Error { return rc.condition }

// Authorized reports whether rc allows a password update.
func (rc RecoveryContext) Authorized() bool {
	return rc.active && rc.session != nil && rc.condition == nil
}

// Recovery derives a RecoveryContext once per load and gates
// UpdatePassword on it.
type Recovery struct {
	ops *Operations

	once sync.Once
	rc   atomic.Pointer[RecoveryContext]
}

// NewRecovery creates a Recovery that updates passwords through ops.
func NewRecovery(ops *Operations) *Recovery {
	return &Recovery{ops: ops}
}

// Derive inspects address. Only the first call does any work; later calls
// return the first result regardless of their argument.
//
// A type=recovery fragment activates recovery mode. Fragment tokens are
// exchanged for a session, which becomes current with
// EventPasswordRecovery. Without tokens the Store's current session is
// used if it is live. An error fragment (an expired or reused link), or
// recovery without any usable session, sets the ExpiredOrInvalidLink
// condition. A non-recovery address with tokens, such as a sign-up
// confirmation, signs the user in.
func (r *Recovery) Derive(ctx context.Context, address string) RecoveryContext {
	r.once.Do(func() {
		rc := r.derive(ctx, address)
		r.rc.Store(&rc)
	})
	return r.Context()
}

// Context returns the derived context; the zero value before Derive.
func (r *Recovery) Context() RecoveryContext {
	if rc := r.rc.Load(); rc != nil {
		return *rc
	}
	return RecoveryContext{}
}

// UpdatePassword changes the password under the derived context.
func (r *Recovery) UpdatePassword(ctx context.Context, password string) Result[User] {
	return r.ops.UpdatePassword(ctx, r.Context(), password)
}

func (r *Recovery) derive(ctx context.Context, address string) RecoveryContext {
	cfg := r.ops.cfg
	store := r.ops.store

	frag, err := authsdk.ParseFragment(address)
	if err != nil {
		cfg.logger.Info("landing address not parseable", "err", err)
		return RecoveryContext{}
	}

	if linkErr := frag.Err(); linkErr != nil {
		cfg.metrics.operation("recovery_derive", NewError(KindExpiredOrInvalidLink, nil))
		return RecoveryContext{
			active:    frag.IsRecovery(),
			condition: r.linkCondition(linkErr),
		}
	}

	if !frag.IsRecovery() {
		if frag.HasTokens() {
			r.signInFromLink(ctx, frag)
		}
		return RecoveryContext{}
	}

	rc := RecoveryContext{active: true}

	if frag.HasTokens() {
		sess, err := r.ops.gw.SessionFromFragment(ctx, frag)
		if err != nil {
			rc.condition = r.linkCondition(err)
			cfg.metrics.operation("recovery_derive", rc.condition)
			return rc
		}
		store.set(EventPasswordRecovery, sess)
		rc.session = &sess
		cfg.metrics.operation("recovery_derive", nil)
		return rc
	}

	if cur, ok := store.Current(); ok && !cur.Expired(cfg.now()) {
		rc.session = &cur
		cfg.metrics.operation("recovery_derive", nil)
		return rc
	}

	rc.condition = r.linkCondition(authsdk.ErrNoSession)
	cfg.metrics.operation("recovery_derive", rc.condition)
	return rc
}

func (r *Recovery) signInFromLink(ctx context.Context, frag authsdk.Fragment) {
	sess, err := r.ops.gw.SessionFromFragment(ctx, frag)
	if err != nil {
		r.ops.cfg.logger.Info("link session rejected", "type", frag.Type, "kind", KindOf(err))
		return
	}
	r.ops.store.set(EventSignedIn, sess)
}

func (r *Recovery) linkCondition(cause error) *Error {
	e := &Error{Kind: KindExpiredOrInvalidLink, cause: cause}
	if ae := asError(cause); ae != nil {
		e.Code = ae.Code
	}
	if e.Code == "" {
		e.Code = authsdk.ErrorCode(cause)
	}
	return r.ops.cfg.messages.localize(e)
}

package authstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/aussiebroadwan/authclient/pkg/authsdk"
	"github.com/aussiebroadwan/authclient/pkg/slogx"
)

// fakeGateway is a scriptable Gateway. Unset hooks fall back to simple
// defaults; the MFA methods run a real TOTP exchange in memory.
type fakeGateway struct {
	signIn         func(ctx context.Context, email, password string) (Session, error)
	signUp         func(ctx context.Context, email, password, redirectTo string) (SignUpOutcome, error)
	signOut        func(ctx context.Context) error
	reset          func(ctx context.Context, email, redirectTo string) error
	updatePassword func(ctx context.Context, password string) (User, error)
	getSession     func(ctx context.Context) (*Session, error)
	fromFragment   func(ctx context.Context, f authsdk.Fragment) (Session, error)
	beforeVerify   func()
	enrollErr      error
	listErr        error

	mu        sync.Mutex
	calls     map[string]int
	listeners map[int]func(Event, *Session)
	nextID    int
	factors   []Factor
	secrets   map[string]string
	seq       int
	user      User
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		calls:     make(map[string]int),
		listeners: make(map[int]func(Event, *Session)),
		secrets:   make(map[string]string),
		user:      User{ID: "user-1", Email: "a@b.com", EmailVerified: true},
	}
}

func (f *fakeGateway) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeGateway) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// push delivers a provider-initiated event to every listener.
func (f *fakeGateway) push(ev Event, s *Session) {
	f.mu.Lock()
	fns := make([]func(Event, *Session), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(ev, s)
	}
}

func (f *fakeGateway) SignIn(ctx context.Context, email, password string) (Session, error) {
	f.count("sign_in")
	if f.signIn != nil {
		return f.signIn(ctx, email, password)
	}
	return testSession(f.user.ID, "access", time.Hour), nil
}

func (f *fakeGateway) SignUp(ctx context.Context, email, password, redirectTo string) (SignUpOutcome, error) {
	f.count("sign_up")
	if f.signUp != nil {
		return f.signUp(ctx, email, password, redirectTo)
	}
	return SignUpOutcome{User: User{ID: "new-user", Email: email}, ConfirmationPending: true}, nil
}

func (f *fakeGateway) SignOut(ctx context.Context) error {
	f.count("sign_out")
	if f.signOut != nil {
		return f.signOut(ctx)
	}
	return nil
}

func (f *fakeGateway) RequestPasswordReset(ctx context.Context, email, redirectTo string) error {
	f.count("reset")
	if f.reset != nil {
		return f.reset(ctx, email, redirectTo)
	}
	return nil
}

func (f *fakeGateway) UpdatePassword(ctx context.Context, password string) (User, error) {
	f.count("update_password")
	if f.updatePassword != nil {
		return f.updatePassword(ctx, password)
	}
	u := f.user
	u.Email = "updated@b.com"
	return u, nil
}

func (f *fakeGateway) GetSession(ctx context.Context) (*Session, error) {
	f.count("get_session")
	if f.getSession != nil {
		return f.getSession(ctx)
	}
	return nil, nil
}

func (f *fakeGateway) SessionFromFragment(ctx context.Context, frag authsdk.Fragment) (Session, error) {
	f.count("from_fragment")
	if f.fromFragment != nil {
		return f.fromFragment(ctx, frag)
	}
	return testSession(f.user.ID, frag.AccessToken, time.Duration(frag.ExpiresIn)*time.Second), nil
}

func (f *fakeGateway) OnSessionChange(fn func(Event, *Session)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *fakeGateway) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *fakeGateway) EnrollTOTP(_ context.Context, params EnrollParams) (EnrollmentChallenge, error) {
	f.count("enroll")
	if f.enrollErr != nil {
		return EnrollmentChallenge{}, f.enrollErr
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "authclient-test",
		AccountName: f.user.Email,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return EnrollmentChallenge{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := fmt.Sprintf("factor-%d", f.seq)
	f.secrets[id] = key.Secret()
	f.factors = append(f.factors, Factor{ID: id, Type: "totp", FriendlyName: params.FriendlyName, Status: "unverified"})

	return EnrollmentChallenge{FactorID: id, Secret: key.Secret(), URI: key.URL(), QRCode: "data:image/png;base64,"}, nil
}

func (f *fakeGateway) VerifyTOTP(_ context.Context, factorID, code string) (Factor, Session, error) {
	f.count("verify")
	if f.beforeVerify != nil {
		f.beforeVerify()
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	secret, ok := f.secrets[factorID]
	if !ok {
		return Factor{}, Session{}, &Error{Kind: KindFactorNotFound, Code: authsdk.ErrorCodeMFAFactorNotFound}
	}
	if !totp.Validate(code, secret) {
		return Factor{}, Session{}, &Error{Kind: KindInvalidCode, Code: authsdk.ErrorCodeMFAVerificationFailed}
	}

	for i := range f.factors {
		if f.factors[i].ID == factorID {
			f.factors[i].Status = "verified"
			return f.factors[i], testSession(f.user.ID, "access-aal2", time.Hour), nil
		}
	}
	return Factor{}, Session{}, &Error{Kind: KindFactorNotFound}
}

func (f *fakeGateway) UnenrollFactor(_ context.Context, factorID string) error {
	f.count("unenroll")
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.factors {
		if f.factors[i].ID == factorID {
			f.factors = append(f.factors[:i], f.factors[i+1:]...)
			delete(f.secrets, factorID)
			return nil
		}
	}
	return &Error{Kind: KindFactorNotFound, Code: authsdk.ErrorCodeMFAFactorNotFound}
}

func (f *fakeGateway) ListFactors(context.Context) ([]Factor, error) {
	f.count("list_factors")
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Factor, len(f.factors))
	copy(out, f.factors)
	return out, nil
}

func testSession(userID, token string, ttl time.Duration) Session {
	s, err := NewSession(User{ID: userID, Email: userID + "@example.com"}, token, "refresh-"+token, "bearer", time.Now().Add(ttl))
	if err != nil {
		panic(err)
	}
	return s
}

// newTestCore wires a Store and Operations to gw with logging discarded.
func newTestCore(gw Gateway, opts ...Option) (*Store, *Operations) {
	opts = append([]Option{WithLogger(slogx.Nop())}, opts...)
	store := NewStore(gw, opts...)
	return store, NewOperations(gw, store, opts...)
}

// recorder collects Store changes.
type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) record(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, 0, len(r.changes))
	for _, c := range r.changes {
		out = append(out, c.Event)
	}
	return out
}

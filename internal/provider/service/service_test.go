package service_test

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/authclient/internal/provider/domain"
	"github.com/aussiebroadwan/authclient/internal/provider/service"
	"github.com/aussiebroadwan/authclient/internal/provider/store/drivers/sqlite"
	"github.com/aussiebroadwan/authclient/pkg/authsdk"
	"github.com/aussiebroadwan/authclient/pkg/cryptox"
	"github.com/aussiebroadwan/authclient/pkg/jwtx"
	"github.com/aussiebroadwan/authclient/pkg/slogx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "an-hs256-secret-that-is-long-enough-for-tests"
	siteURL    = "http://app.test/"
)

type fixture struct {
	store  *sqlite.Store
	signer *jwtx.HS256
	outbox *service.Outbox
	tokens *service.TokenService
	users  *service.UserService
	mfa    *service.MFAService
}

func newFixture(t *testing.T, autoConfirm bool) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(sqlite.DSN(filepath.Join(t.TempDir(), "provider.db")))
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	signer, err := jwtx.NewHS256(testSecret, "test-provider")
	require.NoError(t, err)

	hasher := cryptox.PasswordHasher{Pepper: "pepper"}
	outbox := service.NewOutbox(slogx.Nop())
	tokens := &service.TokenService{
		Store:      st,
		Signer:     signer,
		Hasher:     hasher,
		Issuer:     "test-provider",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}
	return &fixture{
		store:  st,
		signer: signer,
		outbox: outbox,
		tokens: tokens,
		users: &service.UserService{
			Store:         st,
			Tokens:        tokens,
			Hasher:        hasher,
			Mailer:        outbox,
			ExternalURL:   "http://provider.test",
			SiteURL:       siteURL,
			AutoConfirm:   autoConfirm,
			LinkTTL:       time.Hour,
			EmailInterval: time.Minute,
		},
		mfa: &service.MFAService{
			Store:        st,
			Tokens:       tokens,
			Issuer:       "test-provider",
			MaxFactors:   1,
			ChallengeTTL: time.Minute,
		},
	}
}

// confirmedUser signs up, follows the confirmation link and signs in.
func (f *fixture) confirmedUser(t *testing.T, email, password string) *authsdk.TokenResponse {
	t.Helper()
	ctx := t.Context()

	res, err := f.users.SignUp(ctx, email, password, "")
	require.NoError(t, err)

	if res.Session == nil {
		m, ok := f.outbox.Latest(email, domain.TokenTypeSignup)
		require.True(t, ok)
		_, err = f.users.Verify(ctx, linkToken(t, m.Link), domain.TokenTypeSignup, "")
		require.NoError(t, err)
	}

	session, err := f.tokens.PasswordGrant(ctx, email, password)
	require.NoError(t, err)
	return session
}

func linkToken(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	require.Equal(t, "/verify", u.Path)
	return u.Query().Get("token")
}

func fragment(t *testing.T, location string) url.Values {
	t.Helper()
	_, frag, ok := strings.Cut(location, "#")
	require.True(t, ok, "location %q has no fragment", location)
	v, err := url.ParseQuery(frag)
	require.NoError(t, err)
	return v
}

func TestSignUpRequiresConfirmation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	ctx := t.Context()

	res, err := f.users.SignUp(ctx, "Alice@Example.com", "secret1", "http://app.test/welcome")
	require.NoError(t, err)
	require.Nil(t, res.Session)
	require.Equal(t, "alice@example.com", res.User.Email)
	require.False(t, res.User.Confirmed())

	_, err = f.tokens.PasswordGrant(ctx, "alice@example.com", "secret1")
	require.ErrorIs(t, err, service.ErrEmailNotConfirmed)

	_, err = f.tokens.PasswordGrant(ctx, "alice@example.com", "wrong-password")
	require.ErrorIs(t, err, service.ErrInvalidCredentials, "password is checked before confirmation")

	m, ok := f.outbox.Latest("alice@example.com", domain.TokenTypeSignup)
	require.True(t, ok)
	require.Contains(t, m.Link, "redirect_to=")

	location, err := f.users.Verify(ctx, linkToken(t, m.Link), domain.TokenTypeSignup, "")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(location, "http://app.test/welcome#"), location)

	frag := fragment(t, location)
	require.Equal(t, "signup", frag.Get("type"))
	require.NotEmpty(t, frag.Get("access_token"))
	require.NotEmpty(t, frag.Get("refresh_token"))

	session, err := f.tokens.PasswordGrant(ctx, " ALICE@example.com ", "secret1")
	require.NoError(t, err)
	require.Equal(t, "bearer", session.TokenType)
	require.True(t, session.User.Confirmed())

	claims, err := f.signer.Verify(session.AccessToken)
	require.NoError(t, err)
	require.Equal(t, session.User.ID, claims.Subject)
	require.Equal(t, jwtx.AAL1, claims.AAL)
	require.True(t, claims.HasMethod(jwtx.AMRPassword))

	again, err := f.users.Verify(ctx, linkToken(t, m.Link), domain.TokenTypeSignup, "")
	require.NoError(t, err)
	require.Equal(t, authsdk.ErrorCodeOTPExpired, fragment(t, again).Get("error_code"), "links are single use")
}

func TestSignUpAutoConfirm(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	res, err := f.users.SignUp(t.Context(), "bob@example.com", "secret1", "")
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	require.True(t, res.User.Confirmed())
	require.Empty(t, f.outbox.List("bob@example.com"))
}

func TestSignUpRejections(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := t.Context()

	_, err := f.users.SignUp(ctx, "carol@example.com", "secret1", "")
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"duplicate", "CAROL@example.com", "secret1", service.ErrUserExists},
		{"short password", "new@example.com", "12345", service.ErrWeakPassword},
		{"bad address", "not-an-address", "secret1", service.ErrInvalidEmail},
		{"empty address", "", "secret1", service.ErrInvalidEmail},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.users.SignUp(ctx, tc.email, tc.password, "")
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPasswordGrantUnknownUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)

	_, err := f.tokens.PasswordGrant(t.Context(), "nobody@example.com", "secret1")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestRefreshRotation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := t.Context()

	first := f.confirmedUser(t, "dave@example.com", "secret1")

	second, err := f.tokens.RefreshGrant(ctx, first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	c1, err := f.signer.Verify(first.AccessToken)
	require.NoError(t, err)
	c2, err := f.signer.Verify(second.AccessToken)
	require.NoError(t, err)
	require.Equal(t, c1.SessionID, c2.SessionID, "rotation keeps the session")

	_, err = f.tokens.RefreshGrant(ctx, first.RefreshToken)
	require.ErrorIs(t, err, service.ErrRefreshReused)

	_, err = f.tokens.RefreshGrant(ctx, second.RefreshToken)
	require.ErrorIs(t, err, service.ErrRefreshNotFound, "reuse revokes the whole session")

	_, err = f.tokens.RefreshGrant(ctx, "never-issued")
	require.ErrorIs(t, err, service.ErrRefreshNotFound)
}

func TestLogout(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := t.Context()

	session := f.confirmedUser(t, "erin@example.com", "secret1")
	claims, err := f.signer.Verify(session.AccessToken)
	require.NoError(t, err)

	_, err = f.tokens.RequireSession(ctx, claims.SessionID, claims.Subject)
	require.NoError(t, err)
	_, err = f.tokens.RequireSession(ctx, claims.SessionID, "someone-else")
	require.ErrorIs(t, err, service.ErrSessionNotFound)

	require.NoError(t, f.tokens.Logout(ctx, claims.SessionID))
	require.ErrorIs(t, f.tokens.Logout(ctx, claims.SessionID), service.ErrSessionNotFound)

	_, err = f.tokens.RequireSession(ctx, claims.SessionID, claims.Subject)
	require.ErrorIs(t, err, service.ErrSessionNotFound)
	_, err = f.tokens.RefreshGrant(ctx, session.RefreshToken)
	require.ErrorIs(t, err, service.ErrRefreshNotFound)
}

func TestRecover(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := t.Context()

	f.confirmedUser(t, "frank@example.com", "secret1")

	require.NoError(t, f.users.Recover(ctx, "ghost@example.com", ""))
	require.ErrorIs(t, f.users.Recover(ctx, "not-an-address", ""), service.ErrInvalidEmail)
	require.Empty(t, f.outbox.List("ghost@example.com"), "unknown addresses get no mail")

	require.NoError(t, f.users.Recover(ctx, "frank@example.com", "http://app.test/reset"))
	require.ErrorIs(t, f.users.Recover(ctx, "frank@example.com", ""), service.ErrEmailRateLimited)

	m, ok := f.outbox.Latest("frank@example.com", domain.TokenTypeRecovery)
	require.True(t, ok)

	location, err := f.users.Verify(ctx, linkToken(t, m.Link), domain.TokenTypeRecovery, "")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(location, "http://app.test/reset#"), location)

	frag := fragment(t, location)
	require.Equal(t, "recovery", frag.Get("type"))
	claims, err := f.signer.Verify(frag.Get("access_token"))
	require.NoError(t, err)
	require.True(t, claims.HasMethod(jwtx.AMRRecovery))

	bad, err := f.users.Verify(ctx, "bogus", domain.TokenTypeRecovery, "http://app.test/reset")
	require.NoError(t, err)
	errFrag := fragment(t, bad)
	require.Equal(t, "access_denied", errFrag.Get("error"))
	require.Equal(t, authsdk.ErrorCodeOTPExpired, errFrag.Get("error_code"))

	_, err = f.users.Verify(ctx, "bogus", "magiclink", "")
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestUpdateUserPassword(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := t.Context()

	session := f.confirmedUser(t, "gina@example.com", "secret1")
	id := session.User.ID

	_, err := f.users.UpdateUser(ctx, id, authsdk.UserAttributes{Password: "12345"})
	require.ErrorIs(t, err, service.ErrWeakPassword)
	_, err = f.users.UpdateUser(ctx, id, authsdk.UserAttributes{Password: "secret1"})
	require.ErrorIs(t, err, service.ErrSamePassword)
	_, err = f.users.UpdateUser(ctx, id, authsdk.UserAttributes{Email: "other@example.com"})
	require.ErrorIs(t, err, service.ErrValidation)

	u, err := f.users.UpdateUser(ctx, id, authsdk.UserAttributes{Password: "secret2"})
	require.NoError(t, err)
	require.Equal(t, "gina@example.com", u.Email)

	_, err = f.tokens.PasswordGrant(ctx, "gina@example.com", "secret1")
	require.ErrorIs(t, err, service.ErrInvalidCredentials)
	_, err = f.tokens.PasswordGrant(ctx, "gina@example.com", "secret2")
	require.NoError(t, err)
}

// wrongCode returns a six digit code that is valid in none of the
// windows totp.Validate accepts around now.
func wrongCode(t *testing.T, secret string) string {
	t.Helper()
	now := time.Now()
	valid := map[string]bool{}
	for _, d := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		code, err := totp.GenerateCode(secret, now.Add(d))
		require.NoError(t, err)
		valid[code] = true
	}
	for i := 0; ; i++ {
		code := fmt.Sprintf("%06d", i)
		if !valid[code] {
			return code
		}
	}
}

func TestMFALifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := t.Context()

	session := f.confirmedUser(t, "hank@example.com", "secret1")
	claims, err := f.signer.Verify(session.AccessToken)
	require.NoError(t, err)
	userID, sessionID := claims.Subject, claims.SessionID

	_, err = f.mfa.Enroll(ctx, userID, authsdk.EnrollFactorRequest{FactorType: "phone"})
	require.ErrorIs(t, err, service.ErrValidation)

	enrolled, err := f.mfa.Enroll(ctx, userID, authsdk.EnrollFactorRequest{
		FactorType:   authsdk.FactorTypeTOTP,
		FriendlyName: "phone",
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(enrolled.TOTP.QRCode, "data:image/png;base64,"))
	require.True(t, strings.HasPrefix(enrolled.TOTP.URI, "otpauth://totp/"))
	secret := enrolled.TOTP.Secret

	ch, err := f.mfa.Challenge(ctx, userID, enrolled.ID)
	require.NoError(t, err)
	require.Greater(t, ch.ExpiresAt, time.Now().Unix())

	_, err = f.mfa.Verify(ctx, userID, sessionID, enrolled.ID, authsdk.VerifyFactorRequest{
		ChallengeID: ch.ID,
		Code:        wrongCode(t, secret),
	})
	require.ErrorIs(t, err, service.ErrInvalidCode)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	stepped, err := f.mfa.Verify(ctx, userID, sessionID, enrolled.ID, authsdk.VerifyFactorRequest{
		ChallengeID: ch.ID,
		Code:        code,
	})
	require.NoError(t, err, "a wrong code keeps the challenge usable")

	up, err := f.signer.Verify(stepped.AccessToken)
	require.NoError(t, err)
	require.Equal(t, jwtx.AAL2, up.AAL)
	require.True(t, up.HasMethod(jwtx.AMRTOTP))
	require.Equal(t, sessionID, up.SessionID)

	_, err = f.mfa.Verify(ctx, userID, sessionID, enrolled.ID, authsdk.VerifyFactorRequest{
		ChallengeID: ch.ID,
		Code:        code,
	})
	require.ErrorIs(t, err, service.ErrChallengeExpired, "challenges are single use")

	user, err := f.users.GetUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, user.Factors, 1)
	require.Equal(t, authsdk.FactorStatusVerified, user.Factors[0].Status)

	_, err = f.mfa.Enroll(ctx, userID, authsdk.EnrollFactorRequest{FactorType: authsdk.FactorTypeTOTP})
	require.ErrorIs(t, err, service.ErrTooManyFactors)

	other := f.confirmedUser(t, "ivy@example.com", "secret1")
	_, err = f.mfa.Unenroll(ctx, other.User.ID, enrolled.ID)
	require.ErrorIs(t, err, service.ErrFactorNotFound, "factors of other users are invisible")

	res, err := f.mfa.Unenroll(ctx, userID, enrolled.ID)
	require.NoError(t, err)
	require.Equal(t, enrolled.ID, res.ID)

	_, err = f.mfa.Unenroll(ctx, userID, enrolled.ID)
	require.ErrorIs(t, err, service.ErrFactorNotFound)

	sess, err := f.tokens.RequireSession(ctx, sessionID, userID)
	require.NoError(t, err)
	require.Equal(t, jwtx.AAL1, sess.AAL, "unenroll drops stepped-up sessions to aal1")
}

func TestHousekeepingCleanup(t *testing.T) {
	t.Parallel()
	f := newFixture(t, true)
	ctx := t.Context()

	session := f.confirmedUser(t, "jack@example.com", "secret1")

	hk := service.NewHousekeepingService(f.store, slogx.Nop(), time.Hour)
	hk.Cleanup(ctx, time.Now().Add(48*time.Hour))

	_, err := f.tokens.RefreshGrant(ctx, session.RefreshToken)
	require.ErrorIs(t, err, service.ErrRefreshNotFound)
}

func TestOutbox(t *testing.T) {
	t.Parallel()
	o := service.NewOutbox(slogx.Nop())
	ctx := t.Context()

	require.NoError(t, o.Send(ctx, domain.Mail{To: "A@example.com", Kind: "signup", Link: "l1"}))
	require.NoError(t, o.Send(ctx, domain.Mail{To: "a@example.com", Kind: "recovery", Link: "l2"}))
	require.NoError(t, o.Send(ctx, domain.Mail{To: "b@example.com", Kind: "recovery", Link: "l3"}))

	require.Len(t, o.List("a@example.com"), 2)
	require.Len(t, o.List(""), 3)

	m, ok := o.Latest("A@EXAMPLE.COM", "recovery")
	require.True(t, ok)
	require.Equal(t, "l2", m.Link)

	_, ok = o.Latest("b@example.com", "signup")
	require.False(t, ok)
}

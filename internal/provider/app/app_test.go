package app_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/authclient/internal/provider/app"
	"github.com/aussiebroadwan/authclient/internal/provider/domain"
	httpapi "github.com/aussiebroadwan/authclient/internal/provider/http"
	"github.com/aussiebroadwan/authclient/pkg/authsdk"
	"github.com/aussiebroadwan/authclient/pkg/httpx"
	"github.com/aussiebroadwan/authclient/pkg/jwtx"
	"github.com/aussiebroadwan/authclient/pkg/slogx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey = "test-anon-key"
	testSecret = "an-hs256-secret-that-is-long-enough-for-tests"
)

var lenient = httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}

type provider struct {
	t      *testing.T
	url    string
	client *http.Client
}

func newProvider(t *testing.T, mutate func(*app.Config)) *provider {
	t.Helper()

	cfg := app.Config{
		Issuer:        "test-provider",
		SiteURL:       "http://app.test/",
		ExternalURL:   "http://provider.test",
		APIKey:        testAPIKey,
		JWTSecret:     testSecret,
		Pepper:        "pepper",
		DatabaseFile:  filepath.Join(t.TempDir(), "provider.db"),
		DevOutbox:     true,
		EmailInterval: time.Minute,
		MaxFactors:    10,
		Limits:        &httpapi.Limits{Auth: lenient, Email: lenient, MFA: lenient, Public: lenient},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	a, err := app.NewWithLogger(cfg, slogx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	return &provider{
		t:   t,
		url: srv.URL,
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}
}

// do sends a request with the apikey header and decodes a JSON response
// into out when it is non-nil.
func (p *provider) do(method, path, bearer string, body, out any) *http.Response {
	p.t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(p.t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(p.t.Context(), method, p.url+path, rdr)
	require.NoError(p.t, err)
	req.Header.Set("apikey", testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.client.Do(req)
	require.NoError(p.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(p.t, err)
	if out != nil && len(raw) > 0 {
		require.NoError(p.t, json.Unmarshal(raw, out), string(raw))
	}
	return resp
}

func (p *provider) errorCode(resp *http.Response, body httpx.ErrorBody) string {
	p.t.Helper()
	require.Equal(p.t, resp.StatusCode, body.Code)
	return body.ErrorCode
}

// follow requests the path and query of an emailed link against the test
// server and returns the decoded redirect fragment.
func (p *provider) follow(link string) url.Values {
	p.t.Helper()

	u, err := url.Parse(link)
	require.NoError(p.t, err)
	resp := p.do(http.MethodGet, u.Path+"?"+u.RawQuery, "", nil, nil)
	require.Equal(p.t, http.StatusSeeOther, resp.StatusCode)

	_, frag, ok := strings.Cut(resp.Header.Get("Location"), "#")
	require.True(p.t, ok)
	v, err := url.ParseQuery(frag)
	require.NoError(p.t, err)
	return v
}

func (p *provider) latestMail(email, kind string) domain.Mail {
	p.t.Helper()

	var mails []domain.Mail
	resp := p.do(http.MethodGet, "/_dev/outbox?email="+url.QueryEscape(email), "", nil, &mails)
	require.Equal(p.t, http.StatusOK, resp.StatusCode)
	for i := len(mails) - 1; i >= 0; i-- {
		if mails[i].Kind == kind {
			return mails[i]
		}
	}
	p.t.Fatalf("no %s mail for %s", kind, email)
	return domain.Mail{}
}

func (p *provider) signIn(email, password string) authsdk.TokenResponse {
	p.t.Helper()

	var tok authsdk.TokenResponse
	resp := p.do(http.MethodPost, "/token?grant_type=password", "",
		authsdk.PasswordCredentials{Email: email, Password: password}, &tok)
	require.Equal(p.t, http.StatusOK, resp.StatusCode)
	return tok
}

func TestHealthAndSwagger(t *testing.T) {
	t.Parallel()
	p := newProvider(t, nil)

	var health authsdk.HealthResponse
	resp := p.do(http.MethodGet, "/health", "", nil, &health)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, app.BuildVersion, health.Version)

	resp = p.do(http.MethodGet, "/swagger/doc.json", "", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIKeyRequired(t *testing.T) {
	t.Parallel()
	p := newProvider(t, nil)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, p.url+"/token?grant_type=password",
		strings.NewReader(`{"email":"a@example.com","password":"secret1"}`))
	require.NoError(t, err)
	resp, err := p.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body httpx.ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, authsdk.ErrorCodeNoAuthorization, body.ErrorCode)
}

func TestSignUpConfirmAndSignIn(t *testing.T) {
	t.Parallel()
	p := newProvider(t, nil)
	const email, password = "carol@example.com", "secret1"

	var user authsdk.User
	resp := p.do(http.MethodPost, "/signup?redirect_to="+url.QueryEscape("http://app.test/welcome"), "",
		authsdk.SignUpRequest{Email: email, Password: password}, &user)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, email, user.Email)
	require.False(t, user.Confirmed())
	require.NotNil(t, user.ConfirmationSentAt)

	var errBody httpx.ErrorBody
	resp = p.do(http.MethodPost, "/token?grant_type=password", "",
		authsdk.PasswordCredentials{Email: email, Password: password}, &errBody)
	require.Equal(t, authsdk.ErrorCodeEmailNotConfirmed, p.errorCode(resp, errBody))

	resp = p.do(http.MethodPost, "/signup", "", authsdk.SignUpRequest{Email: email, Password: password}, &errBody)
	require.Equal(t, authsdk.ErrorCodeUserAlreadyExists, p.errorCode(resp, errBody))

	frag := p.follow(p.latestMail(email, domain.TokenTypeSignup).Link)
	require.Equal(t, "signup", frag.Get("type"))
	require.NotEmpty(t, frag.Get("access_token"))
	require.NotEmpty(t, frag.Get("refresh_token"))

	tok := p.signIn(email, password)
	require.Equal(t, "bearer", tok.TokenType)
	require.NotNil(t, tok.User)
	require.True(t, tok.User.Confirmed())

	var me authsdk.User
	resp = p.do(http.MethodGet, "/user", tok.AccessToken, nil, &me)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, email, me.Email)
}

func TestRefreshRotationAndReuse(t *testing.T) {
	t.Parallel()
	p := newProvider(t, func(c *app.Config) { c.AutoConfirm = true })
	const email, password = "dave@example.com", "secret1"

	var first authsdk.TokenResponse
	resp := p.do(http.MethodPost, "/signup", "", authsdk.SignUpRequest{Email: email, Password: password}, &first)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, first.RefreshToken)

	var second authsdk.TokenResponse
	resp = p.do(http.MethodPost, "/token?grant_type=refresh_token", "",
		authsdk.RefreshTokenRequest{RefreshToken: first.RefreshToken}, &second)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	var errBody httpx.ErrorBody
	resp = p.do(http.MethodPost, "/token?grant_type=refresh_token", "",
		authsdk.RefreshTokenRequest{RefreshToken: first.RefreshToken}, &errBody)
	require.Equal(t, authsdk.ErrorCodeRefreshTokenAlreadyUsed, p.errorCode(resp, errBody))

	// Reuse revoked the whole session.
	resp = p.do(http.MethodGet, "/user", second.AccessToken, nil, &errBody)
	require.Equal(t, authsdk.ErrorCodeSessionNotFound, p.errorCode(resp, errBody))

	resp = p.do(http.MethodPost, "/token?grant_type=client_credentials", "", map[string]string{}, &errBody)
	require.Equal(t, authsdk.ErrorCodeUnsupportedGrantType, p.errorCode(resp, errBody))
}

func TestLogout(t *testing.T) {
	t.Parallel()
	p := newProvider(t, func(c *app.Config) { c.AutoConfirm = true })

	var tok authsdk.TokenResponse
	resp := p.do(http.MethodPost, "/signup", "", authsdk.SignUpRequest{Email: "erin@example.com", Password: "secret1"}, &tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = p.do(http.MethodPost, "/logout", tok.AccessToken, nil, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	var errBody httpx.ErrorBody
	resp = p.do(http.MethodPost, "/token?grant_type=refresh_token", "",
		authsdk.RefreshTokenRequest{RefreshToken: tok.RefreshToken}, &errBody)
	require.Equal(t, authsdk.ErrorCodeRefreshTokenNotFound, p.errorCode(resp, errBody))

	resp = p.do(http.MethodPost, "/logout", "", nil, &errBody)
	require.Equal(t, authsdk.ErrorCodeNoAuthorization, p.errorCode(resp, errBody))
}

func TestRecoveryLink(t *testing.T) {
	t.Parallel()
	p := newProvider(t, func(c *app.Config) { c.AutoConfirm = true })
	const email = "frank@example.com"

	resp := p.do(http.MethodPost, "/signup", "", authsdk.SignUpRequest{Email: email, Password: "secret1"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = p.do(http.MethodPost, "/recover", "", authsdk.RecoverRequest{Email: "nobody@example.com"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = p.do(http.MethodPost, "/recover?redirect_to="+url.QueryEscape("http://app.test/reset"), "",
		authsdk.RecoverRequest{Email: email}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var errBody httpx.ErrorBody
	resp = p.do(http.MethodPost, "/recover", "", authsdk.RecoverRequest{Email: email}, &errBody)
	require.Equal(t, authsdk.ErrorCodeOverEmailSendRateLimit, p.errorCode(resp, errBody))

	link := p.latestMail(email, domain.TokenTypeRecovery).Link
	frag := p.follow(link)
	require.Equal(t, "recovery", frag.Get("type"))
	access := frag.Get("access_token")

	claims, err := jwtx.ParseUnverified(access)
	require.NoError(t, err)
	require.True(t, claims.HasMethod(jwtx.AMRRecovery))

	var updated authsdk.User
	resp = p.do(http.MethodPut, "/user", access, authsdk.UserAttributes{Password: "new-secret"}, &updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	p.signIn(email, "new-secret")

	// The link is single use.
	frag = p.follow(link)
	require.Equal(t, authsdk.ErrorCodeOTPExpired, frag.Get("error_code"))
}

func TestVerifyUnknownLink(t *testing.T) {
	t.Parallel()
	p := newProvider(t, nil)

	resp := p.do(http.MethodGet, "/verify?token=bogus&type=signup&redirect_to="+url.QueryEscape("http://app.test/cb"), "", nil, nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "app.test", loc.Host)
	frag, err := url.ParseQuery(loc.Fragment)
	require.NoError(t, err)
	require.Equal(t, "access_denied", frag.Get("error"))
	require.Equal(t, authsdk.ErrorCodeOTPExpired, frag.Get("error_code"))

	var errBody httpx.ErrorBody
	resp = p.do(http.MethodGet, "/verify?token=bogus&type=magiclink", "", nil, &errBody)
	require.Equal(t, authsdk.ErrorCodeValidationFailed, p.errorCode(resp, errBody))
}

func TestMFAOverHTTP(t *testing.T) {
	t.Parallel()
	p := newProvider(t, func(c *app.Config) {
		c.AutoConfirm = true
		c.MaxFactors = 1
	})

	var tok authsdk.TokenResponse
	resp := p.do(http.MethodPost, "/signup", "", authsdk.SignUpRequest{Email: "grace@example.com", Password: "secret1"}, &tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var enrolled authsdk.EnrollFactorResponse
	resp = p.do(http.MethodPost, "/factors", tok.AccessToken,
		authsdk.EnrollFactorRequest{FactorType: "totp", FriendlyName: "phone"}, &enrolled)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.HasPrefix(enrolled.TOTP.QRCode, "data:image/png;base64,"))
	require.True(t, strings.HasPrefix(enrolled.TOTP.URI, "otpauth://totp/"))

	var challenge authsdk.ChallengeResponse
	resp = p.do(http.MethodPost, "/factors/"+enrolled.ID+"/challenge", tok.AccessToken, nil, &challenge)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	code, err := totp.GenerateCode(enrolled.TOTP.Secret, time.Now())
	require.NoError(t, err)

	var stepped authsdk.TokenResponse
	resp = p.do(http.MethodPost, "/factors/"+enrolled.ID+"/verify", tok.AccessToken,
		authsdk.VerifyFactorRequest{ChallengeID: challenge.ID, Code: code}, &stepped)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	claims, err := jwtx.ParseUnverified(stepped.AccessToken)
	require.NoError(t, err)
	require.Equal(t, jwtx.AAL2, claims.AAL)
	require.True(t, claims.HasMethod(jwtx.AMRTOTP))

	var errBody httpx.ErrorBody
	resp = p.do(http.MethodPost, "/factors/"+enrolled.ID+"/verify", stepped.AccessToken,
		authsdk.VerifyFactorRequest{ChallengeID: challenge.ID, Code: code}, &errBody)
	require.Equal(t, authsdk.ErrorCodeMFAChallengeExpired, p.errorCode(resp, errBody))

	resp = p.do(http.MethodPost, "/factors", stepped.AccessToken, authsdk.EnrollFactorRequest{FactorType: "totp"}, &errBody)
	require.Equal(t, authsdk.ErrorCodeTooManyEnrolledMFAFactors, p.errorCode(resp, errBody))

	var removed authsdk.UnenrollResponse
	resp = p.do(http.MethodDelete, "/factors/"+enrolled.ID, stepped.AccessToken, nil, &removed)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, enrolled.ID, removed.ID)

	resp = p.do(http.MethodPost, "/factors/"+enrolled.ID+"/challenge", stepped.AccessToken, nil, &errBody)
	require.Equal(t, authsdk.ErrorCodeMFAFactorNotFound, p.errorCode(resp, errBody))
}

func TestSignInRateLimit(t *testing.T) {
	t.Parallel()
	tight := httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}
	p := newProvider(t, func(c *app.Config) {
		c.Limits = &httpapi.Limits{Auth: tight, Email: lenient, MFA: lenient, Public: lenient}
	})

	creds := authsdk.PasswordCredentials{Email: "heidi@example.com", Password: "wrong-password"}
	for range 2 {
		var errBody httpx.ErrorBody
		resp := p.do(http.MethodPost, "/token?grant_type=password", "", creds, &errBody)
		require.Equal(t, authsdk.ErrorCodeInvalidCredentials, p.errorCode(resp, errBody))
	}

	var errBody httpx.ErrorBody
	resp := p.do(http.MethodPost, "/token?grant_type=password", "", creds, &errBody)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, authsdk.ErrorCodeOverRequestRateLimit, errBody.ErrorCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Limits are keyed by address, so another account is unaffected.
	resp = p.do(http.MethodPost, "/token?grant_type=password", "",
		authsdk.PasswordCredentials{Email: "ivan@example.com", Password: "x"}, &errBody)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

/*
Package authsdk provides a client SDK for GoTrue-compatible authentication providers.

# Overview

The authsdk package speaks the provider's HTTP API. It provides unauthenticated
operations (via SDKClient) and authenticated operations (via Session) with automatic
token refresh and optional persistence.

# SDKClient vs Session

The package is organized around two main types:

  - SDKClient: unauthenticated operations, and the factory for Sessions
  - Session: authenticated operations with automatic token refresh

Create an SDKClient with the provider URL and its anon key:

	client := authsdk.NewSDKClient("https://auth.example.com",
		authsdk.WithAPIKey(anonKey),
		authsdk.WithStorage(tokenstore.NewFile(path)),
	)

	// Sign in
	session, err := client.SignInWithPassword(ctx, "a@b.com", "secret1")

	// Sign up; Session is nil until the address is confirmed
	result, err := client.SignUp(ctx, authsdk.SignUpRequest{Email: email, Password: pw}, redirectTo)

	// Request a recovery link
	err = client.Recover(ctx, email, redirectTo)

Use a Session for authenticated operations:

	user, err := session.GetUser(ctx)
	user, err = session.UpdateUser(ctx, authsdk.UserAttributes{Password: newPassword})

	enrollment, err := session.Enroll(ctx, authsdk.EnrollFactorRequest{FriendlyName: "phone"})
	err = session.ChallengeAndVerify(ctx, enrollment.ID, code)

	err = session.Logout(ctx)

# Automatic Token Refresh

All Session methods call getValidToken() internally, which:

 1. Checks if the access token is still valid, less the client's RefreshBuffer (30s default)
 2. If not, uses the refresh token to obtain a new token pair
 3. Persists the new pair and emits EventTokenRefreshed

If the provider rejects the refresh token the session is cleared, the persisted copy
is deleted and EventSignedOut is emitted. AutoRefresher runs the same check on a ticker.

# Links and Fragments

Confirmation and recovery links point at the provider's /verify endpoint, which
redirects to the caller's landing address with the session in the fragment:

	loc, err := client.FollowVerifyLink(ctx, link)
	frag, err := authsdk.ParseFragment(loc.String())
	if frag.IsRecovery() {
		session, err = client.SessionFromFragment(ctx, frag)
	}

An expired link yields a fragment whose Err() is an *APIError with code otp_expired.

# Error Handling

Every call that received a response returns an *APIError carrying the provider's
error_code. Predefined values work with errors.Is:

	if errors.Is(err, authsdk.ErrInvalidCredentials) {
		// wrong email or password
	}

Failures before a response (DNS, TLS, timeouts, cancellation) are *TransportError.

# Thread Safety

Sessions are safe for concurrent use. Token reads take a read lock and refreshes take
the write lock with a double check, so concurrent callers trigger a single refresh.
*/
package authsdk

package provider_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authclient/pkg/authsdk"
)

// TestRefreshRotation verifies refresh tokens rotate and a reused token
// is rejected.
func TestRefreshRotation(t *testing.T) {
	baseURL := setupProvider(t, relaxedLimits)
	session := signUpConfirmed(t, baseURL, "dan@example.com")
	client := newClient(baseURL)
	ctx := t.Context()

	first := session.RefreshToken()
	require.NoError(t, session.Refresh(ctx))
	require.NotEqual(t, first, session.RefreshToken())

	_, err := session.GetUser(ctx)
	require.NoError(t, err)

	_, err = client.RefreshGrant(ctx, first)
	assertAPIError(t, err, http.StatusBadRequest, authsdk.ErrorCodeRefreshTokenAlreadyUsed)
}

// TestLogoutEndsSession verifies tokens stop working after logout.
func TestLogoutEndsSession(t *testing.T) {
	baseURL := setupProvider(t, relaxedLimits)
	session := signUpConfirmed(t, baseURL, "eve@example.com")
	client := newClient(baseURL)
	ctx := t.Context()

	refresh := session.RefreshToken()
	require.NoError(t, session.Logout(ctx))

	_, err := client.RefreshGrant(ctx, refresh)
	require.Error(t, err)
}

package provider_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/authclient/pkg/authsdk"
)

// TestTOTPLifecycle enrolls, verifies and removes a TOTP factor.
func TestTOTPLifecycle(t *testing.T) {
	baseURL := setupProvider(t, relaxedLimits)
	session := signUpConfirmed(t, baseURL, "fay@example.com")
	ctx := t.Context()

	enrolled, err := session.Enroll(ctx, authsdk.EnrollFactorRequest{FactorType: "totp", FriendlyName: "phone"})
	require.NoError(t, err)
	require.NotEmpty(t, enrolled.TOTP.Secret)
	require.Contains(t, enrolled.TOTP.URI, "otpauth://totp/")
	require.Contains(t, enrolled.TOTP.QRCode, "data:image/png;base64,")

	err = session.ChallengeAndVerify(ctx, enrolled.ID, "000000x")
	assertAPIError(t, err, http.StatusUnprocessableEntity, authsdk.ErrorCodeMFAVerificationFailed)

	code, err := totp.GenerateCode(enrolled.TOTP.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, session.ChallengeAndVerify(ctx, enrolled.ID, code))

	factors, err := session.ListFactors(ctx)
	require.NoError(t, err)
	require.Len(t, factors, 1)
	require.Equal(t, "verified", factors[0].Status)

	_, err = session.Unenroll(ctx, enrolled.ID)
	require.NoError(t, err)

	_, err = session.Unenroll(ctx, enrolled.ID)
	assertAPIError(t, err, http.StatusNotFound, authsdk.ErrorCodeMFAFactorNotFound)
}

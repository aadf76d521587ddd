package authstate

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestMessagesLanguageSelection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefs []string
		want  language.Tag
	}{
		{nil, language.German},
		{[]string{"de-AT"}, language.German},
		{[]string{"en-GB"}, language.English},
		{[]string{"fr-FR, en;q=0.8"}, language.English},
		{[]string{"ja"}, language.German},
	}

	for _, tt := range tests {
		m := NewMessages(tt.prefs...)
		require.Equal(t, tt.want, m.Language(), "prefs %v", tt.prefs)
	}
}

func TestMessagesEveryKindHasText(t *testing.T) {
	t.Parallel()

	kinds := []ErrorKind{
		KindInvalidCredentials, KindAccountExists, KindWeakPassword, KindInvalidCode,
		KindEnrollmentFailed, KindNoActiveSession, KindExpiredOrInvalidLink,
		KindProviderUnavailable, KindUnknown, KindEmailNotConfirmed, KindInvalidInput,
		KindRateLimited, KindFactorNotFound, KindInvalidState,
	}

	for _, tag := range []string{"de", "en"} {
		m := NewMessages(tag)
		for _, k := range kinds {
			msg := m.For(k)
			require.NotEmpty(t, msg)
			require.NotEqual(t, string(k), msg, "%s has no %s text", k, tag)
		}
	}

	require.Equal(t, NewMessages().For(KindUnknown), NewMessages().For(ErrorKind("Bogus")))
}

func TestValidationHelpers(t *testing.T) {
	t.Parallel()

	m := NewMessages("de")

	require.Nil(t, m.ValidateEmail("a@b.com"))
	require.NotNil(t, m.ValidateEmail(""))
	require.NotNil(t, m.ValidateEmail("not-an-address"))
	require.NotNil(t, m.ValidateEmail("Alice <a@b.com>"))

	require.Nil(t, m.ValidatePassword("secret1"))
	require.Nil(t, m.ValidatePassword("äöüßéè"))
	e := m.ValidatePassword("12345")
	require.Equal(t, KindWeakPassword, e.Kind)
	require.Equal(t, "Passwort muss mindestens 6 Zeichen lang sein.", e.Message)

	require.Nil(t, m.ConfirmPasswords("secret1", "secret1"))
	require.Equal(t, "Passwörter stimmen nicht überein.", m.ConfirmPasswords("secret1", "secret2").Message)
}

func TestSubmitGuard(t *testing.T) {
	t.Parallel()

	var g SubmitGuard
	release, ok := g.TryAcquire()
	require.True(t, ok)
	require.True(t, g.Busy())

	_, ok = g.TryAcquire()
	require.False(t, ok)

	release()
	release()
	require.False(t, g.Busy())

	release2, ok := g.TryAcquire()
	require.True(t, ok)
	release()
	require.True(t, g.Busy(), "stale release must not free a newer acquisition")
	release2()
}

package authstate

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys for non-error texts shown by consumers.
const (
	MsgSignedIn         = "signed_in"
	MsgSignUpPending    = "signup_pending"
	MsgResetSent        = "reset_sent"
	MsgPasswordUpdated  = "password_updated"
	MsgMFAEnabled       = "mfa_enabled"
	MsgMFADisabled      = "mfa_disabled"
	MsgMFAConfirmRemove = "mfa_confirm_remove"
	MsgPasswordTooShort = "password_too_short"
	MsgPasswordMismatch = "password_mismatch"
	MsgEmailInvalid     = "email_invalid"
	MsgLoading          = "loading"
)

var supported = []language.Tag{language.German, language.English}

var translations = map[language.Tag]map[string]string{
	language.German: {
		string(KindInvalidCredentials):   "Ungültige Anmeldedaten.",
		string(KindAccountExists):        "Für diese E-Mail-Adresse existiert bereits ein Konto.",
		string(KindWeakPassword):         "Passwort muss mindestens 6 Zeichen lang sein.",
		string(KindInvalidCode):          "Ungültiger Code. Bitte versuche es erneut.",
		string(KindEnrollmentFailed):     "Fehler beim Einrichten der 2FA.",
		string(KindNoActiveSession):      "Keine aktive Sitzung. Bitte melde dich erneut an.",
		string(KindExpiredOrInvalidLink): "Ungültiger oder abgelaufener Reset-Link. Bitte fordere einen neuen an.",
		string(KindProviderUnavailable):  "Der Anmeldedienst ist nicht erreichbar. Bitte versuche es später erneut.",
		string(KindUnknown):              "Ein Fehler ist aufgetreten.",
		string(KindEmailNotConfirmed):    "Bitte bestätige zuerst deine E-Mail-Adresse.",
		string(KindInvalidInput):         "Ungültige Eingabe.",
		string(KindRateLimited):          "Zu viele Anfragen. Bitte warte einen Moment.",
		string(KindFactorNotFound):       "Dieser Faktor existiert nicht.",
		string(KindInvalidState):         "Diese Aktion ist gerade nicht möglich.",

		MsgSignedIn:         "Erfolgreich eingeloggt!",
		MsgSignUpPending:    "Registrierung erfolgreich! Bitte überprüfe deine E-Mail zur Bestätigung.",
		MsgResetSent:        "Passwort-Reset-Link wurde an deine E-Mail gesendet. Bitte überprüfe dein Postfach.",
		MsgPasswordUpdated:  "Passwort erfolgreich geändert!",
		MsgMFAEnabled:       "2FA erfolgreich aktiviert!",
		MsgMFADisabled:      "2FA deaktiviert.",
		MsgMFAConfirmRemove: "Möchtest du die 2FA wirklich deaktivieren?",
		MsgPasswordTooShort: "Passwort muss mindestens 6 Zeichen lang sein.",
		MsgPasswordMismatch: "Passwörter stimmen nicht überein.",
		MsgEmailInvalid:     "Bitte gib eine gültige E-Mail-Adresse ein.",
		MsgLoading:          "Lädt...",
	},
	language.English: {
		string(KindInvalidCredentials):   "Invalid login credentials.",
		string(KindAccountExists):        "An account with this email address already exists.",
		string(KindWeakPassword):         "Password must be at least 6 characters long.",
		string(KindInvalidCode):          "Invalid code. Please try again.",
		string(KindEnrollmentFailed):     "Could not set up two-factor authentication.",
		string(KindNoActiveSession):      "No active session. Please sign in again.",
		string(KindExpiredOrInvalidLink): "Invalid or expired reset link. Please request a new one.",
		string(KindProviderUnavailable):  "The sign-in service is unreachable. Please try again later.",
		string(KindUnknown):              "Something went wrong.",
		string(KindEmailNotConfirmed):    "Please confirm your email address first.",
		string(KindInvalidInput):         "Invalid input.",
		string(KindRateLimited):          "Too many requests. Please wait a moment.",
		string(KindFactorNotFound):       "This factor does not exist.",
		string(KindInvalidState):         "This action is not available right now.",

		MsgSignedIn:         "Signed in.",
		MsgSignUpPending:    "Sign-up complete. Please check your email to confirm your address.",
		MsgResetSent:        "A password reset link has been sent to your email.",
		MsgPasswordUpdated:  "Password changed.",
		MsgMFAEnabled:       "Two-factor authentication enabled.",
		MsgMFADisabled:      "Two-factor authentication disabled.",
		MsgMFAConfirmRemove: "Do you really want to disable two-factor authentication?",
		MsgPasswordTooShort: "Password must be at least 6 characters long.",
		MsgPasswordMismatch: "Passwords do not match.",
		MsgEmailInvalid:     "Please enter a valid email address.",
		MsgLoading:          "Loading...",
	},
}

var messageCatalog = func() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.German))
	for tag, msgs := range translations {
		for key, msg := range msgs {
			// Keys and texts are static; SetString only fails on malformed input.
			if err := b.SetString(tag, key, msg); err != nil {
				panic(err)
			}
		}
	}
	return b
}()

var matcher = language.NewMatcher(supported)

// Messages renders user-facing texts in one language. The zero value is
// not usable; use NewMessages.
type Messages struct {
	tag     language.Tag
	printer *message.Printer
}

// NewMessages picks the best supported language for the given preferences
// (BCP 47 tags or Accept-Language style lists). German is the default.
func NewMessages(prefs ...string) *Messages {
	tag, _ := language.MatchStrings(matcher, prefs...)
	base, _ := tag.Base()
	for _, t := range supported {
		if b, _ := t.Base(); b == base {
			tag = t
			break
		}
	}
	return &Messages{
		tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(messageCatalog)),
	}
}

// Language returns the selected language.
func (m *Messages) Language() language.Tag { return m.tag }

// Text returns the text for key, or key itself when unknown.
func (m *Messages) Text(key string) string {
	return m.printer.Sprintf(key)
}

// For returns the message for an error kind.
func (m *Messages) For(k ErrorKind) string {
	if _, ok := translations[language.German][string(k)]; !ok {
		k = KindUnknown
	}
	return m.Text(string(k))
}

// localize returns e with Message filled in. e itself is not modified.
func (m *Messages) localize(e *Error) *Error {
	if e == nil || e.Message != "" {
		return e
	}
	cp := *e
	cp.Message = m.For(e.Kind)
	return &cp
}

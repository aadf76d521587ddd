package authstate

import (
	"net/mail"
	"strings"
)

// MinPasswordLength is the shortest password the provider accepts.
const MinPasswordLength = 6

// The checks below are offered to callers that want to reject input
// before submitting it. Operations do not run them.

// ValidateEmail checks that email is a bare address.
func (m *Messages) ValidateEmail(email string) *Error {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if email == "" || err != nil || addr.Address != email {
		return &Error{Kind: KindInvalidInput, Message: m.Text(MsgEmailInvalid), cause: err}
	}
	return nil
}

// ValidatePassword checks the minimum length.
func (m *Messages) ValidatePassword(password string) *Error {
	if len([]rune(password)) < MinPasswordLength {
		return &Error{Kind: KindWeakPassword, Message: m.Text(MsgPasswordTooShort)}
	}
	return nil
}

// ConfirmPasswords checks that a password and its confirmation match.
func (m *Messages) ConfirmPasswords(password, confirmation string) *Error {
	if password != confirmation {
		return &Error{Kind: KindInvalidInput, Message: m.Text(MsgPasswordMismatch)}
	}
	return nil
}

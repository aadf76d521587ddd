package authsdk

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Fragment holds the session or error parameters a provider redirect
// appends to the landing address.
type Fragment struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Type         string
	ExpiresIn    int
	ExpiresAt    int64

	Error            string
	ErrorCode        string
	ErrorDescription string
}

// ParseFragment reads the fragment of address. Error parameters are also
// read from the query string, where some provider versions put them.
func ParseFragment(address string) (Fragment, error) {
	u, err := url.Parse(address)
	if err != nil {
		return Fragment{}, fmt.Errorf("failed to parse address: %w", err)
	}

	frag, err := url.ParseQuery(u.EscapedFragment())
	if err != nil {
		return Fragment{}, fmt.Errorf("failed to parse fragment: %w", err)
	}
	query := u.Query()

	get := func(key string) string {
		if v := frag.Get(key); v != "" {
			return v
		}
		return query.Get(key)
	}

	f := Fragment{
		AccessToken:      frag.Get("access_token"),
		RefreshToken:     frag.Get("refresh_token"),
		TokenType:        frag.Get("token_type"),
		Type:             get("type"),
		Error:            get("error"),
		ErrorCode:        get("error_code"),
		ErrorDescription: get("error_description"),
	}
	if v := frag.Get("expires_in"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.ExpiresIn = n
		}
	}
	if v := frag.Get("expires_at"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.ExpiresAt = n
		}
	}
	return f, nil
}

// HasTokens reports whether both tokens are present.
func (f Fragment) HasTokens() bool {
	return f.AccessToken != "" && f.RefreshToken != ""
}

// IsRecovery reports whether the address came from a recovery link.
func (f Fragment) IsRecovery() bool {
	return f.Type == "recovery"
}

// Err returns the error the redirect carried, or nil.
func (f Fragment) Err() error {
	if f.Error == "" && f.ErrorCode == "" {
		return nil
	}
	code := f.ErrorCode
	if code == "" {
		code = f.Error
	}
	status := http.StatusBadRequest
	if code == ErrorCodeOTPExpired || f.Error == "access_denied" {
		status = http.StatusForbidden
	}
	return &APIError{StatusCode: status, Code: code, Message: f.ErrorDescription}
}

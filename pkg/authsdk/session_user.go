package authsdk

import (
	"context"
	"net/http"
)

// GetUser fetches the user behind the session's access token. It is also
// how a session is validated against the provider.
func (s *Session) GetUser(ctx context.Context) (*User, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/user", nil)
	if err != nil {
		return nil, err
	}

	var user User
	if err := decodeJSON(resp, &user); err != nil {
		return nil, err
	}

	s.setUser(ctx, &user)
	return &user, nil
}

// UpdateUser changes the user's attributes, typically the password.
func (s *Session) UpdateUser(ctx context.Context, attrs UserAttributes) (*User, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPut, "/user", attrs)
	if err != nil {
		return nil, err
	}

	var user User
	if err := decodeJSON(resp, &user); err != nil {
		return nil, err
	}

	s.setUser(ctx, &user)
	return &user, nil
}

package authsdk

import (
	"context"
	"time"
)

// StoredSession is the persisted form of a Session.
type StoredSession struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user,omitempty"`
}

// Storage persists the current session between process runs. Load returns
// ErrNoSession when nothing is stored.
type Storage interface {
	Load(ctx context.Context) (*StoredSession, error)
	Save(ctx context.Context, s StoredSession) error
	Delete(ctx context.Context) error
}

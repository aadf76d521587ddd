package domain

import "time"

// One-time token purposes. They double as the "type" query parameter of
// /verify links.
const (
	TokenTypeSignup   = "signup"
	TokenTypeRecovery = "recovery"
)

// OneTimeToken backs an emailed link. Only the fingerprint is stored.
type OneTimeToken struct {
	ID         string // ULID
	UserID     string
	TokenType  string
	TokenHash  string
	RedirectTo string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Mail is a message the provider would have sent. The development outbox
// keeps them so tests and humans can follow the links.
type Mail struct {
	To     string    `json:"to"`
	Kind   string    `json:"kind"`
	Link   string    `json:"link"`
	SentAt time.Time `json:"sent_at"`
}

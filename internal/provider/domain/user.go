package domain

import "time"

type User struct {
	ID                 string // uuid
	Email              string // lower-cased, unique
	PasswordHash       string // argon2id PHC string
	EmailConfirmedAt   *time.Time
	ConfirmationSentAt *time.Time
	RecoverySentAt     *time.Time
	LastSignInAt       *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (u User) Confirmed() bool { return u.EmailConfirmedAt != nil }

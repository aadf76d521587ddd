package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/aussiebroadwan/authclient/internal/provider/domain"
)

type usersRepo struct {
	q querier
}

const userColumns = `id, email, password_hash, email_confirmed_at, confirmation_sent_at,
	recovery_sent_at, last_sign_in_at, created_at, updated_at`

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u                                    domain.User
		confirmed, confSent, recSent, signIn sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &confirmed, &confSent,
		&recSent, &signIn, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.EmailConfirmedAt = mapNullTimePtr(confirmed)
	u.ConfirmationSentAt = mapNullTimePtr(confSent)
	u.RecoverySentAt = mapNullTimePtr(recSent)
	u.LastSignInAt = mapNullTimePtr(signIn)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(email)))
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, strings.ToLower(u.Email), u.PasswordHash,
		mapOptionalTime(u.EmailConfirmedAt),
		mapOptionalTime(u.ConfirmationSentAt),
		mapOptionalTime(u.RecoverySentAt),
		mapOptionalTime(u.LastSignInAt),
		utc(u.CreatedAt), utc(u.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *usersRepo) ConfirmEmail(ctx context.Context, userID string, at time.Time) error {
	return r.setTime(ctx, "email_confirmed_at", userID, at)
}

func (r *usersRepo) SetConfirmationSentAt(ctx context.Context, userID string, at time.Time) error {
	return r.setTime(ctx, "confirmation_sent_at", userID, at)
}

func (r *usersRepo) SetRecoverySentAt(ctx context.Context, userID string, at time.Time) error {
	return r.setTime(ctx, "recovery_sent_at", userID, at)
}

func (r *usersRepo) SetLastSignInAt(ctx context.Context, userID string, at time.Time) error {
	return r.setTime(ctx, "last_sign_in_at", userID, at)
}

// setTime only ever receives one of the fixed column names above.
func (r *usersRepo) setTime(ctx context.Context, column, userID string, at time.Time) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE users SET `+column+` = ?, updated_at = ? WHERE id = ?`,
		utc(at), utc(at), userID))
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, utc(time.Now()), userID))
}

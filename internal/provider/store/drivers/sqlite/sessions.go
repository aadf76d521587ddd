package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/authclient/internal/provider/domain"
)

type sessionsRepo struct {
	q querier
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, aal, method, factor_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.AAL, s.Method, s.FactorID, utc(s.CreatedAt), utc(s.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *sessionsRepo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	var s domain.Session
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, aal, method, factor_id, created_at, updated_at
		FROM sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.UserID, &s.AAL, &s.Method, &s.FactorID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	return s, nil
}

func (r *sessionsRepo) UpdateSessionAAL(ctx context.Context, id, aal, factorID string) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE sessions SET aal = ?, factor_id = ?, updated_at = ? WHERE id = ?`,
		aal, factorID, utc(time.Now()), id))
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, id string) error {
	return expectOne(r.q.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id))
}

func (r *sessionsRepo) DowngradeFactorSessions(ctx context.Context, factorID string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE sessions SET aal = ?, factor_id = '', updated_at = ? WHERE factor_id = ?`,
		"aal1", utc(time.Now()), factorID)
	return err
}

func (r *sessionsRepo) DeleteIdleSessions(ctx context.Context, now time.Time) (int64, error) {
	return affected(r.q.ExecContext(ctx, `
		DELETE FROM sessions WHERE id NOT IN (
			SELECT session_id FROM refresh_tokens WHERE revoked = 0 AND expires_at > ?
		)`, utc(now)))
}

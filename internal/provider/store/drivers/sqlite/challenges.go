package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/authclient/internal/provider/domain"
)

type challengesRepo struct {
	q querier
}

func (r *challengesRepo) CreateChallenge(ctx context.Context, c domain.Challenge) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO mfa_challenges (id, factor_id, expires_at, verified_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.FactorID, utc(c.ExpiresAt), mapOptionalTime(c.VerifiedAt), utc(c.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *challengesRepo) GetChallenge(ctx context.Context, id string) (domain.Challenge, error) {
	var (
		c        domain.Challenge
		verified sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, `
		SELECT id, factor_id, expires_at, verified_at, created_at
		FROM mfa_challenges WHERE id = ?`, id,
	).Scan(&c.ID, &c.FactorID, &c.ExpiresAt, &verified, &c.CreatedAt)
	if err != nil {
		return domain.Challenge{}, mapNotFound(err)
	}
	c.VerifiedAt = mapNullTimePtr(verified)
	return c, nil
}

// MarkChallengeVerified only succeeds once per challenge.
func (r *challengesRepo) MarkChallengeVerified(ctx context.Context, id string, at time.Time) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE mfa_challenges SET verified_at = ? WHERE id = ? AND verified_at IS NULL`,
		utc(at), id))
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	return affected(r.q.ExecContext(ctx,
		`DELETE FROM mfa_challenges WHERE expires_at <= ? OR verified_at IS NOT NULL`, utc(now)))
}

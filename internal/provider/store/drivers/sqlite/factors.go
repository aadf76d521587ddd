package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/authclient/internal/provider/domain"
)

type factorsRepo struct {
	q querier
}

const factorColumns = `id, user_id, friendly_name, factor_type, status, secret, created_at, updated_at`

func (r *factorsRepo) CreateFactor(ctx context.Context, f domain.Factor) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO mfa_factors (`+factorColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.UserID, f.FriendlyName, f.FactorType, f.Status, f.Secret,
		utc(f.CreatedAt), utc(f.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *factorsRepo) GetFactor(ctx context.Context, id string) (domain.Factor, error) {
	var f domain.Factor
	err := r.q.QueryRowContext(ctx,
		`SELECT `+factorColumns+` FROM mfa_factors WHERE id = ?`, id,
	).Scan(&f.ID, &f.UserID, &f.FriendlyName, &f.FactorType, &f.Status, &f.Secret,
		&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return domain.Factor{}, mapNotFound(err)
	}
	return f, nil
}

func (r *factorsRepo) ListFactorsByUser(ctx context.Context, userID string) ([]domain.Factor, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+factorColumns+` FROM mfa_factors WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Factor
	for rows.Next() {
		var f domain.Factor
		if err := rows.Scan(&f.ID, &f.UserID, &f.FriendlyName, &f.FactorType, &f.Status,
			&f.Secret, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *factorsRepo) MarkFactorVerified(ctx context.Context, id string, at time.Time) error {
	return expectOne(r.q.ExecContext(ctx,
		`UPDATE mfa_factors SET status = ?, updated_at = ? WHERE id = ?`,
		domain.FactorStatusVerified, utc(at), id))
}

func (r *factorsRepo) DeleteFactor(ctx context.Context, id string) error {
	return expectOne(r.q.ExecContext(ctx, `DELETE FROM mfa_factors WHERE id = ?`, id))
}

func (r *factorsRepo) DeleteUnverifiedFactorsBefore(ctx context.Context, before time.Time) (int64, error) {
	return affected(r.q.ExecContext(ctx,
		`DELETE FROM mfa_factors WHERE status = ? AND created_at < ?`,
		domain.FactorStatusPending, utc(before)))
}

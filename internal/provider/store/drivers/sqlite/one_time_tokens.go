package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/authclient/internal/provider/domain"
)

type oneTimeTokensRepo struct {
	q querier
}

func (r *oneTimeTokensRepo) CreateOneTimeToken(ctx context.Context, t domain.OneTimeToken) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO one_time_tokens (id, user_id, token_type, token_hash, redirect_to, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.TokenType, t.TokenHash, t.RedirectTo, utc(t.ExpiresAt), utc(t.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *oneTimeTokensRepo) GetOneTimeTokenByHash(
	ctx context.Context,
	tokenType, hash string,
) (domain.OneTimeToken, error) {
	var t domain.OneTimeToken
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, token_type, token_hash, redirect_to, expires_at, created_at
		FROM one_time_tokens WHERE token_type = ? AND token_hash = ?`, tokenType, hash,
	).Scan(&t.ID, &t.UserID, &t.TokenType, &t.TokenHash, &t.RedirectTo, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return domain.OneTimeToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r *oneTimeTokensRepo) DeleteOneTimeToken(ctx context.Context, id string) error {
	return expectOne(r.q.ExecContext(ctx, `DELETE FROM one_time_tokens WHERE id = ?`, id))
}

func (r *oneTimeTokensRepo) DeleteUserOneTimeTokens(ctx context.Context, userID, tokenType string) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM one_time_tokens WHERE user_id = ? AND token_type = ?`, userID, tokenType)
	return err
}

func (r *oneTimeTokensRepo) DeleteExpiredOneTimeTokens(ctx context.Context, now time.Time) (int64, error) {
	return affected(r.q.ExecContext(ctx,
		`DELETE FROM one_time_tokens WHERE expires_at <= ?`, utc(now)))
}

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
	"github.com/todoapp/auth-service/internal/domain/models"
	"github.com/todoapp/auth-service/internal/domain/repository"
)

// pgxOneTimeTokenRepository implements repository.OneTimeTokenRepository
// using pgx.
type pgxOneTimeTokenRepository struct {
	db *pgxpool.Pool
}

func NewPgxOneTimeTokenRepository(db *pgxpool.Pool) repository.OneTimeTokenRepository {
	return &pgxOneTimeTokenRepository{db: db}
}

// Replace keeps at most one live token per (user, purpose): prior rows are
// removed in the same transaction that inserts the new one.
func (r *pgxOneTimeTokenRepository) Replace(ctx context.Context, token *models.OneTimeToken) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin token replace transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`DELETE FROM one_time_tokens WHERE user_id = $1 AND purpose = $2`,
		token.UserID, token.Purpose,
	)
	if err != nil {
		return fmt.Errorf("failed to invalidate prior tokens: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO one_time_tokens (id, user_id, purpose, token_hash, expires_at, consumed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		token.ID, token.UserID, token.Purpose, token.TokenHash,
		token.ExpiresAt, token.ConsumedAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert one-time token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit token replace transaction: %w", err)
	}
	return nil
}

func (r *pgxOneTimeTokenRepository) GetByHash(ctx context.Context, purpose models.TokenPurpose, tokenHash string) (*models.OneTimeToken, error) {
	token := &models.OneTimeToken{}
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, purpose, token_hash, expires_at, consumed_at, created_at
		FROM one_time_tokens
		WHERE purpose = $1 AND token_hash = $2`,
		purpose, tokenHash,
	).Scan(
		&token.ID, &token.UserID, &token.Purpose, &token.TokenHash,
		&token.ExpiresAt, &token.ConsumedAt, &token.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find one-time token: %w", err)
	}
	return token, nil
}

func (r *pgxOneTimeTokenRepository) MarkConsumed(ctx context.Context, id uuid.UUID, at time.Time) error {
	commandTag, err := r.db.Exec(ctx,
		`UPDATE one_time_tokens SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("failed to mark token consumed: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return domainErrors.ErrTokenConsumed
	}
	return nil
}

func (r *pgxOneTimeTokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	commandTag, err := r.db.Exec(ctx, `DELETE FROM one_time_tokens WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return commandTag.RowsAffected(), nil
}

var _ repository.OneTimeTokenRepository = (*pgxOneTimeTokenRepository)(nil)

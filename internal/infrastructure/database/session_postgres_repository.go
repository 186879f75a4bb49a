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

const sessionColumns = `
	id, user_id, refresh_token_hash, user_agent, ip_address,
	expires_at, revoked_at, created_at`

// pgxSessionRepository implements repository.SessionRepository using pgx.
type pgxSessionRepository struct {
	db *pgxpool.Pool
}

func NewPgxSessionRepository(db *pgxpool.Pool) repository.SessionRepository {
	return &pgxSessionRepository{db: db}
}

func scanSession(row pgx.Row) (*models.RefreshSession, error) {
	session := &models.RefreshSession{}
	err := row.Scan(
		&session.ID, &session.UserID, &session.RefreshTokenHash,
		&session.UserAgent, &session.IPAddress,
		&session.ExpiresAt, &session.RevokedAt, &session.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (r *pgxSessionRepository) Create(ctx context.Context, session *models.RefreshSession) error {
	query := `
		INSERT INTO refresh_sessions (` + sessionColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, query,
		session.ID, session.UserID, session.RefreshTokenHash,
		session.UserAgent, session.IPAddress,
		session.ExpiresAt, session.RevokedAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create refresh session: %w", err)
	}
	return nil
}

// LookupActive returns the session only when the hash matches, the session
// is unrevoked, and the expiry lies in the future.
func (r *pgxSessionRepository) LookupActive(ctx context.Context, tokenHash string) (*models.RefreshSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM refresh_sessions
		WHERE refresh_token_hash = $1 AND revoked_at IS NULL AND expires_at > now()`
	session, err := scanSession(r.db.QueryRow(ctx, query, tokenHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to look up refresh session: %w", err)
	}
	return session, nil
}

// Revoke sets the revocation timestamp. Revoking an already revoked or
// unknown token is a no-op.
func (r *pgxSessionRepository) Revoke(ctx context.Context, tokenHash string) error {
	query := `
		UPDATE refresh_sessions SET revoked_at = $2
		WHERE refresh_token_hash = $1 AND revoked_at IS NULL`
	if _, err := r.db.Exec(ctx, query, tokenHash, time.Now()); err != nil {
		return fmt.Errorf("failed to revoke refresh session: %w", err)
	}
	return nil
}

// RevokeAll revokes every still-active session for the user and returns how
// many were revoked.
func (r *pgxSessionRepository) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `
		UPDATE refresh_sessions SET revoked_at = $2
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > now()`
	commandTag, err := r.db.Exec(ctx, query, userID, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to revoke user sessions: %w", err)
	}
	return commandTag.RowsAffected(), nil
}

// Rotate revokes the old session and persists the replacement in one
// transaction. The old session is matched with the same active predicate as
// LookupActive so a replayed or revoked token aborts the whole rotation.
func (r *pgxSessionRepository) Rotate(ctx context.Context, oldTokenHash string, next *models.RefreshSession) (*models.RefreshSession, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin rotation transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	revokeQuery := `
		UPDATE refresh_sessions SET revoked_at = now()
		WHERE refresh_token_hash = $1 AND revoked_at IS NULL AND expires_at > now()
		RETURNING ` + sessionColumns
	revoked, err := scanSession(tx.QueryRow(ctx, revokeQuery, oldTokenHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to revoke rotated session: %w", err)
	}

	insertQuery := `
		INSERT INTO refresh_sessions (` + sessionColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = tx.Exec(ctx, insertQuery,
		next.ID, next.UserID, next.RefreshTokenHash,
		next.UserAgent, next.IPAddress,
		next.ExpiresAt, next.RevokedAt, next.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert rotated session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit rotation transaction: %w", err)
	}
	return revoked, nil
}

// DeleteExpired removes sessions whose expiry predates the cutoff,
// regardless of revocation state.
func (r *pgxSessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	commandTag, err := r.db.Exec(ctx, `DELETE FROM refresh_sessions WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return commandTag.RowsAffected(), nil
}

var _ repository.SessionRepository = (*pgxSessionRepository)(nil)

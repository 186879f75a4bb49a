package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
	"github.com/todoapp/auth-service/internal/domain/models"
	"github.com/todoapp/auth-service/internal/domain/repository"
)

const userColumns = `
	id, full_name, role, email_verified_at,
	local_enabled, local_username, local_password_hash,
	google_sub, google_email,
	ms_object_id, ms_tenant_id, ms_email,
	created_at, updated_at`

// pgxUserRepository implements repository.UserRepository using pgx.
type pgxUserRepository struct {
	db *pgxpool.Pool
}

func NewPgxUserRepository(db *pgxpool.Pool) repository.UserRepository {
	return &pgxUserRepository{db: db}
}

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.FullName, &user.Role, &user.EmailVerifiedAt,
		&user.LocalEnabled, &user.LocalUsername, &user.LocalPasswordHash,
		&user.GoogleSub, &user.GoogleEmail,
		&user.MSObjectID, &user.MSTenantID, &user.MSEmail,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// mapUniqueViolation translates a 23505 into the identity-specific domain
// error based on the violated constraint.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	switch {
	case strings.Contains(pgErr.ConstraintName, "users_local_username_key"):
		return domainErrors.ErrUsernameExists
	case strings.Contains(pgErr.ConstraintName, "users_google_sub_key"),
		strings.Contains(pgErr.ConstraintName, "users_ms_identity_key"):
		return domainErrors.ErrIdentityExists
	}
	return fmt.Errorf("unique constraint violated: %s: %w", pgErr.ConstraintName, domainErrors.ErrConflict)
}

func (r *pgxUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.FullName, user.Role, user.EmailVerifiedAt,
		user.LocalEnabled, user.LocalUsername, user.LocalPasswordHash,
		user.GoogleSub, user.GoogleEmail,
		user.MSObjectID, user.MSTenantID, user.MSEmail,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *pgxUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by id: %w", err)
	}
	return user, nil
}

func (r *pgxUserRepository) GetByLocalUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(local_username) = lower($1)`
	user, err := scanUser(r.db.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by username: %w", err)
	}
	return user, nil
}

func (r *pgxUserRepository) GetByGoogleSub(ctx context.Context, sub string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE google_sub = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, sub))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by google subject: %w", err)
	}
	return user, nil
}

func (r *pgxUserRepository) GetByMicrosoftID(ctx context.Context, tenantID, objectID uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ms_tenant_id = $1 AND ms_object_id = $2`
	user, err := scanUser(r.db.QueryRow(ctx, query, tenantID, objectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by microsoft identity: %w", err)
	}
	return user, nil
}

func (r *pgxUserRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET
			full_name = $2, role = $3, email_verified_at = $4,
			local_enabled = $5, local_username = $6, local_password_hash = $7,
			google_sub = $8, google_email = $9,
			ms_object_id = $10, ms_tenant_id = $11, ms_email = $12,
			updated_at = $13
		WHERE id = $1`
	commandTag, err := r.db.Exec(ctx, query,
		user.ID, user.FullName, user.Role, user.EmailVerifiedAt,
		user.LocalEnabled, user.LocalUsername, user.LocalPasswordHash,
		user.GoogleSub, user.GoogleEmail,
		user.MSObjectID, user.MSTenantID, user.MSEmail,
		time.Now(),
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return domainErrors.ErrUserNotFound
	}
	return nil
}

func (r *pgxUserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	commandTag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return domainErrors.ErrUserNotFound
	}
	return nil
}

func (r *pgxUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}
	return users, nil
}

// Merge deletes the source user and writes the destination aggregate in one
// transaction. The source row must go first so its identity columns free up
// before the destination claims them.
func (r *pgxUserRepository) Merge(ctx context.Context, destination *models.User, sourceID uuid.UUID) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin merge transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	commandTag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, sourceID)
	if err != nil {
		return fmt.Errorf("failed to delete merge source: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return domainErrors.ErrUserNotFound
	}

	query := `
		UPDATE users SET
			full_name = $2, role = $3, email_verified_at = $4,
			local_enabled = $5, local_username = $6, local_password_hash = $7,
			google_sub = $8, google_email = $9,
			ms_object_id = $10, ms_tenant_id = $11, ms_email = $12,
			updated_at = $13
		WHERE id = $1`
	commandTag, err = tx.Exec(ctx, query,
		destination.ID, destination.FullName, destination.Role, destination.EmailVerifiedAt,
		destination.LocalEnabled, destination.LocalUsername, destination.LocalPasswordHash,
		destination.GoogleSub, destination.GoogleEmail,
		destination.MSObjectID, destination.MSTenantID, destination.MSEmail,
		time.Now(),
	)
	if err != nil {
		if mapped := mapUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to update merge destination: %w", err)
	}
	if commandTag.RowsAffected() == 0 {
		return domainErrors.ErrUserNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit merge transaction: %w", err)
	}
	return nil
}

var _ repository.UserRepository = (*pgxUserRepository)(nil)

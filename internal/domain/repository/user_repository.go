package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/todoapp/auth-service/internal/domain/models"
)

// UserRepository is the persistence port for the user aggregate. Uniqueness
// of local_username, google_sub and (ms_tid, ms_oid) is enforced by the
// store; Create and Update surface ErrUsernameExists / ErrIdentityExists on
// violation.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByLocalUsername(ctx context.Context, username string) (*models.User, error)
	GetByGoogleSub(ctx context.Context, sub string) (*models.User, error)
	GetByMicrosoftID(ctx context.Context, tenantID, objectID uuid.UUID) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*models.User, error)

	// Merge applies an already-validated account merge atomically: the
	// destination row is updated and the source row deleted in one
	// transaction, so a failed merge leaves both users untouched.
	Merge(ctx context.Context, destination *models.User, sourceID uuid.UUID) error
}

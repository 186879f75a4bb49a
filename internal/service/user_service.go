package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
	"github.com/todoapp/auth-service/internal/domain/models"
	"github.com/todoapp/auth-service/internal/domain/repository"
	domainService "github.com/todoapp/auth-service/internal/domain/service"
)

// UserService exposes the administrative user operations. Every method is
// called with the already-authenticated actor; role checks run through the
// authorization engine.
type UserService struct {
	users  repository.UserRepository
	authz  *domainService.AuthzService
	audit  *AuditService
	logger *zap.Logger
}

func NewUserService(
	users repository.UserRepository,
	authz *domainService.AuthzService,
	audit *AuditService,
	logger *zap.Logger,
) *UserService {
	return &UserService{users: users, authz: authz, audit: audit, logger: logger}
}

// GetUser returns a user record. Admins may view anyone; everyone may view
// themselves.
func (s *UserService) GetUser(ctx context.Context, actor *models.User, targetID uuid.UUID, meta ClientMeta) (*models.User, error) {
	if actor.ID != targetID {
		if err := s.authz.RequireAdmin(actor); err != nil {
			return nil, err
		}
	}
	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if actor.ID != targetID {
		s.audit.RecordEntity(&actor.ID, models.AuditAdminUserViewed, "user", targetID, nil, meta.IP, meta.UserAgent)
	}
	return target, nil
}

// ListUsers returns a page of user records, admin only.
func (s *UserService) ListUsers(ctx context.Context, actor *models.User, limit, offset int) ([]*models.User, error) {
	if err := s.authz.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.users.List(ctx, limit, offset)
}

// UpdateUserRole changes a user's role. Only sysadmins may grant or revoke
// the sysadmin role, and an admin cannot touch a sysadmin account.
func (s *UserService) UpdateUserRole(ctx context.Context, actor *models.User, targetID uuid.UUID, role models.Role, meta ClientMeta) (*models.User, error) {
	if err := s.authz.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, domainErrors.NewValidationError("invalid role", []string{"unknown role"})
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	if target.Role == models.RoleSysadmin || role == models.RoleSysadmin {
		if err := s.authz.RequireSysadmin(actor); err != nil {
			return nil, err
		}
	}
	if actor.ID == targetID && role.Level() < actor.Role.Level() {
		return nil, fmt.Errorf("%w: cannot demote your own account", domainErrors.ErrInvalidInput)
	}

	previous := target.Role
	target.Role = role
	if err := s.users.Update(ctx, target); err != nil {
		return nil, err
	}

	s.audit.RecordEntity(&actor.ID, models.AuditAdminUserUpdated, "user", targetID,
		map[string]any{"previous_role": previous, "new_role": role}, meta.IP, meta.UserAgent)
	return target, nil
}

// DeleteUser removes a user account. Deletion cascades the user's sessions,
// one-time tokens and todos. Admins cannot delete sysadmins, and nobody
// deletes their own account through the admin surface.
func (s *UserService) DeleteUser(ctx context.Context, actor *models.User, targetID uuid.UUID, meta ClientMeta) error {
	if err := s.authz.RequireAdmin(actor); err != nil {
		return err
	}
	if actor.ID == targetID {
		return fmt.Errorf("%w: cannot delete your own account", domainErrors.ErrInvalidInput)
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target.Role == models.RoleSysadmin {
		if err := s.authz.RequireSysadmin(actor); err != nil {
			return err
		}
	}

	if err := s.users.Delete(ctx, targetID); err != nil {
		return err
	}

	s.audit.RecordEntity(&actor.ID, models.AuditAdminUserDeleted, "user", targetID, nil, meta.IP, meta.UserAgent)
	return nil
}

package service

import (
	"github.com/google/uuid"

	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
	"github.com/todoapp/auth-service/internal/domain/models"
)

// Ownable is any resource with an owning user.
type Ownable interface {
	OwnerID() uuid.UUID
}

// AuthzService evaluates role and ownership predicates. All methods are pure
// functions over the actor's role and the resource owner; they perform no I/O.
type AuthzService struct{}

func NewAuthzService() *AuthzService {
	return &AuthzService{}
}

// RequireAdmin fails with ErrForbidden unless the actor holds at least the
// admin role.
func (s *AuthzService) RequireAdmin(actor *models.User) error {
	if !actor.Role.AtLeast(models.RoleAdmin) {
		return domainErrors.ErrForbidden
	}
	return nil
}

// RequireSysadmin fails with ErrForbidden unless the actor is a sysadmin.
func (s *AuthzService) RequireSysadmin(actor *models.User) error {
	if !actor.Role.AtLeast(models.RoleSysadmin) {
		return domainErrors.ErrForbidden
	}
	return nil
}

// CanAccessResource permits the owner, and otherwise requires the admin role.
func (s *AuthzService) CanAccessResource(actor *models.User, resource Ownable) error {
	if resource.OwnerID() == actor.ID {
		return nil
	}
	return s.RequireAdmin(actor)
}

// CanModifyResource permits the owner, and otherwise requires the sysadmin
// role. Admins may read other users' resources but not write them; only a
// sysadmin may write another user's resource.
func (s *AuthzService) CanModifyResource(actor *models.User, resource Ownable) error {
	if resource.OwnerID() == actor.ID {
		return nil
	}
	return s.RequireSysadmin(actor)
}

// CanModifyUser permits a user to modify their own account, and otherwise
// requires the sysadmin role.
func (s *AuthzService) CanModifyUser(actor *models.User, targetID uuid.UUID) error {
	if actor.ID == targetID {
		return nil
	}
	return s.RequireSysadmin(actor)
}

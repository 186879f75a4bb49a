package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/todoapp/auth-service/internal/domain/errors"
	"github.com/todoapp/auth-service/internal/domain/models"
	"github.com/todoapp/auth-service/internal/domain/repository"
	"github.com/todoapp/auth-service/internal/handler/http/middleware"
	"github.com/todoapp/auth-service/internal/service"
)

// AdminHandler serves the user management surface. Routes are mounted
// behind the admin role middleware; the services re-check permissions per
// operation because some rules depend on the target, not just the caller.
type AdminHandler struct {
	users    *service.UserService
	identity *service.IdentityService
	auditLog repository.AuditLogRepository
	logger   *zap.Logger
}

func NewAdminHandler(
	users *service.UserService,
	identity *service.IdentityService,
	auditLog repository.AuditLogRepository,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		users:    users,
		identity: identity,
		auditLog: auditLog,
		logger:   logger.Named("admin_handler"),
	}
}

func (h *AdminHandler) actor(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		RespondWithError(c, domainErrors.ErrUnauthorized, h.logger)
	}
	return user, ok
}

func pathUserID(c *gin.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("user_id"))
}

// ListUsers handles GET /api/v1/admin/users.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	users, err := h.users.ListUsers(c.Request.Context(), actor, limit, offset)
	if err != nil {
		RespondWithError(c, err, h.logger)
		return
	}

	infos := make([]models.UserInfo, 0, len(users))
	for _, u := range users {
		infos = append(infos, models.NewUserInfo(u))
	}
	RespondWithData(c, http.StatusOK, gin.H{"users": infos})
}

// GetUser handles GET /api/v1/admin/users/:user_id.
func (h *AdminHandler) GetUser(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	targetID, err := pathUserID(c)
	if err != nil {
		RespondWithError(c, domainErrors.NewValidationError("invalid user id", nil), h.logger)
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), actor, targetID, clientMeta(c))
	if err != nil {
		RespondWithError(c, err, h.logger)
		return
	}
	RespondWithData(c, http.StatusOK, models.NewUserInfo(user))
}

type updateRoleRequest struct {
	Role models.Role `json:"role" binding:"required"`
}

// UpdateRole handles PUT /api/v1/admin/users/:user_id/role.
func (h *AdminHandler) UpdateRole(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	targetID, err := pathUserID(c)
	if err != nil {
		RespondWithError(c, domainErrors.NewValidationError("invalid user id", nil), h.logger)
		return
	}

	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, domainErrors.NewValidationError("invalid request payload", nil), h.logger)
		return
	}

	user, err := h.users.UpdateUserRole(c.Request.Context(), actor, targetID, req.Role, clientMeta(c))
	if err != nil {
		RespondWithError(c, err, h.logger)
		return
	}
	RespondWithData(c, http.StatusOK, models.NewUserInfo(user))
}

// DeleteUser handles DELETE /api/v1/admin/users/:user_id.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	targetID, err := pathUserID(c)
	if err != nil {
		RespondWithError(c, domainErrors.NewValidationError("invalid user id", nil), h.logger)
		return
	}

	if err := h.users.DeleteUser(c.Request.Context(), actor, targetID, clientMeta(c)); err != nil {
		RespondWithError(c, err, h.logger)
		return
	}
	c.Status(http.StatusNoContent)
}

type mergeRequest struct {
	DestinationUserID uuid.UUID `json:"destinationUserId" binding:"required"`
	SourceUserID      uuid.UUID `json:"sourceUserId" binding:"required"`
}

// MergeUsers handles POST /api/v1/admin/users/merge. Mounted behind the
// sysadmin role middleware.
func (h *AdminHandler) MergeUsers(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, domainErrors.NewValidationError("invalid request payload", nil), h.logger)
		return
	}

	err := h.identity.MergeAccounts(c.Request.Context(), &actor.ID,
		req.DestinationUserID, req.SourceUserID, clientMeta(c))
	if err != nil {
		RespondWithError(c, err, h.logger)
		return
	}
	RespondWithMessage(c, http.StatusOK, "accounts merged")
}

// UserAuditLog handles GET /api/v1/admin/users/:user_id/audit-log.
func (h *AdminHandler) UserAuditLog(c *gin.Context) {
	if _, ok := h.actor(c); !ok {
		return
	}
	targetID, err := pathUserID(c)
	if err != nil {
		RespondWithError(c, domainErrors.NewValidationError("invalid user id", nil), h.logger)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	entries, err := h.auditLog.ListForUser(c.Request.Context(), targetID, limit)
	if err != nil {
		RespondWithError(c, err, h.logger)
		return
	}
	RespondWithData(c, http.StatusOK, gin.H{"entries": entries})
}

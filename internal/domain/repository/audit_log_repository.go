package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/todoapp/auth-service/internal/domain/models"
)

// AuditLogRepository is the append-only port for audit entries. The core
// never updates or deletes entries; retention is an operational concern.
type AuditLogRepository interface {
	Append(ctx context.Context, entry *models.AuditLogEntry) error
	ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuditLogEntry, error)
}

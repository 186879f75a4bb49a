// Package service contains the core business logic of the auth service. It
// orchestrates repositories, the password hasher, the token signer and the
// outbound adapters (mailer, event producer) to implement registration,
// login, token rotation, identity linking and the verification flows.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/todoapp/auth-service/internal/domain/models"
	"github.com/todoapp/auth-service/internal/domain/repository"
)

const auditQueueSize = 256

// AuditService records security-relevant events. Record is fire-and-forget:
// entries are handed to a background worker over a bounded queue and
// persistence failures are logged locally, never propagated, so an audit
// outage cannot block the operation it documents.
type AuditService struct {
	repo   repository.AuditLogRepository
	logger *zap.Logger

	queue   chan *models.AuditLogEntry
	dropped int64
	closed  bool
	mu      sync.Mutex
	done    chan struct{}
	once    sync.Once
}

func NewAuditService(repo repository.AuditLogRepository, logger *zap.Logger) *AuditService {
	s := &AuditService{
		repo:   repo,
		logger: logger,
		queue:  make(chan *models.AuditLogEntry, auditQueueSize),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Record enqueues an audit entry. When the queue is full the entry is
// dropped and counted; the caller is never blocked.
func (s *AuditService) Record(actorID *uuid.UUID, action string, metadata map[string]any, ip, userAgent string) {
	entry := &models.AuditLogEntry{
		ID:        uuid.New(),
		UserID:    actorID,
		Action:    action,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	if ip != "" {
		entry.IPAddress = &ip
	}
	if userAgent != "" {
		entry.UserAgent = &userAgent
	}
	s.enqueue(entry)
}

// RecordEntity enqueues an audit entry that references a target entity.
func (s *AuditService) RecordEntity(actorID *uuid.UUID, action, entityType string, entityID uuid.UUID, metadata map[string]any, ip, userAgent string) {
	entry := &models.AuditLogEntry{
		ID:         uuid.New(),
		UserID:     actorID,
		Action:     action,
		EntityType: &entityType,
		EntityID:   &entityID,
		Metadata:   metadata,
		CreatedAt:  time.Now(),
	}
	if ip != "" {
		entry.IPAddress = &ip
	}
	if userAgent != "" {
		entry.UserAgent = &userAgent
	}
	s.enqueue(entry)
}

func (s *AuditService) enqueue(entry *models.AuditLogEntry) {
	s.mu.Lock()
	if s.closed {
		s.dropped++
		s.mu.Unlock()
		return
	}
	select {
	case s.queue <- entry:
		s.mu.Unlock()
	default:
		s.dropped++
		dropped := s.dropped
		s.mu.Unlock()
		s.logger.Warn("audit queue full, entry dropped",
			zap.String("action", entry.Action),
			zap.Int64("dropped_total", dropped))
	}
}

// Dropped reports how many entries were discarded because the queue was full.
func (s *AuditService) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close drains the queue and stops the worker. Entries recorded after Close
// are dropped.
func (s *AuditService) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.queue)
		<-s.done
	})
}

func (s *AuditService) run() {
	defer close(s.done)
	for entry := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.repo.Append(ctx, entry); err != nil {
			s.logger.Error("failed to persist audit entry",
				zap.String("action", entry.Action),
				zap.Error(err))
		}
		cancel()
	}
}

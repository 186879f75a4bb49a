package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/todoapp/auth-service/internal/domain/repository"
)

// Sweeper periodically deletes expired refresh sessions and one-time
// tokens. Expired rows are already treated as invalid on lookup; sweeping
// only keeps the tables from growing without bound.
type Sweeper struct {
	sessions repository.SessionRepository
	tokens   repository.OneTimeTokenRepository
	interval time.Duration
	logger   *zap.Logger
}

func NewSweeper(
	sessions repository.SessionRepository,
	tokens repository.OneTimeTokenRepository,
	interval time.Duration,
	logger *zap.Logger,
) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{sessions: sessions, tokens: tokens, interval: interval, logger: logger}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now()

	sessions, err := s.sessions.DeleteExpired(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to sweep expired sessions", zap.Error(err))
	}
	tokens, err := s.tokens.DeleteExpired(ctx, cutoff)
	if err != nil {
		s.logger.Error("failed to sweep expired tokens", zap.Error(err))
	}

	if sessions > 0 || tokens > 0 {
		s.logger.Info("swept expired rows",
			zap.Int64("sessions", sessions),
			zap.Int64("tokens", tokens))
	}
}

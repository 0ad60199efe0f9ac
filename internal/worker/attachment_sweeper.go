package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AttachmentPurger removes pending uploads that were never linked to a ticket.
type AttachmentPurger interface {
	CleanUpDerelictAttachments(ctx context.Context, hoursOld int) (bool, error)
}

// AttachmentSweeper periodically purges derelict attachments.
type AttachmentSweeper struct {
	purger   AttachmentPurger
	maxAge   int
	interval time.Duration
	logger   *zap.Logger
}

// NewAttachmentSweeper creates a sweeper removing uploads older than maxAgeHours.
func NewAttachmentSweeper(purger AttachmentPurger, maxAgeHours int, interval time.Duration, logger *zap.Logger) *AttachmentSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttachmentSweeper{purger: purger, maxAge: maxAgeHours, interval: interval, logger: logger}
}

// Sweep runs one purge pass.
func (s *AttachmentSweeper) Sweep(ctx context.Context) bool {
	removed, err := s.purger.CleanUpDerelictAttachments(ctx, s.maxAge)
	if err != nil {
		s.logger.Warn("attachment sweep failed", zap.Error(err))
		return false
	}
	if removed {
		s.logger.Info("derelict attachments purged", zap.Int("max_age_hours", s.maxAge))
	}
	return removed
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (s *AttachmentSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

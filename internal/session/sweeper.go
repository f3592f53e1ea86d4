package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nirnaykulshreshtha/baantlo-sub001/internal/models"
)

// Sweeper periodically deletes expired session rows
type Sweeper struct {
	db     *gorm.DB
	cron   *cron.Cron
	logger zerolog.Logger
}

// StartSweeper schedules the sweep with a cron expression (standard five
// fields or descriptors such as "@every 10m") and starts it
func StartSweeper(db *gorm.DB, schedule string, logger zerolog.Logger) (*Sweeper, error) {
	s := &Sweeper{
		db:     db,
		cron:   cron.New(),
		logger: logger.With().Str("component", "session_sweeper").Logger(),
	}

	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep(time.Now()) }); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	s.cron.Start()
	s.logger.Info().Str("schedule", schedule).Msg("Session sweeper started")
	return s, nil
}

// Sweep deletes sessions that expired before now
func (s *Sweeper) Sweep(now time.Time) int64 {
	n, err := models.DeleteExpiredSessions(s.db, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to delete expired sessions")
		return 0
	}
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Msg("Deleted expired sessions")
	}
	return n
}

// Stop stops the schedule and waits for a running sweep to finish
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn().Msg("Timed out waiting for session sweep to finish")
	}
}

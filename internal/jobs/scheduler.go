package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

type tokenJanitor interface {
	ClearExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

type uploadJanitor interface {
	PurgeSuperseded(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

const purgeBatchSize = 500

// Scheduler runs the housekeeping jobs: expired refresh tokens are nulled
// out hourly, replaced profile images purged daily. Neither job affects
// session semantics; expired tokens already fail verification.
type Scheduler struct {
	cron    *cron.Cron
	users   tokenJanitor
	uploads uploadJanitor
	log     zerolog.Logger
}

func NewScheduler(users tokenJanitor, uploads uploadJanitor, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		users:   users,
		uploads: uploads,
		log:     log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 * * * *", s.clearExpiredTokens); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 0 3 * * *", s.purgeReplacedImages); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for running jobs to finish, up to a short grace period.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
	}
}

func (s *Scheduler) clearExpiredTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cleared, err := s.users.ClearExpiredRefreshTokens(ctx, time.Now().UTC())
	if err != nil {
		s.log.Error().Err(err).Msg("clear expired refresh tokens failed")
		return
	}
	if cleared > 0 {
		s.log.Info().Int64("cleared", cleared).Msg("expired refresh tokens cleared")
	}
}

func (s *Scheduler) purgeReplacedImages() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().Add(-24 * time.Hour)
	purged, err := s.uploads.PurgeSuperseded(ctx, cutoff, purgeBatchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("purge replaced images failed")
		return
	}
	if purged > 0 {
		s.log.Info().Int("purged", purged).Msg("replaced profile images purged")
	}
}

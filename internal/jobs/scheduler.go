package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"nutriplan/api/internal/cache"
	"nutriplan/api/internal/service"
)

// Scheduler runs the eager maintenance sweeps. Neither sweep is needed for
// correctness — expiry is enforced lazily on read — they only reclaim
// storage sooner.
type Scheduler struct {
	cron     *cron.Cron
	cache    *cache.TTL
	sessions *service.SessionService
	log      zerolog.Logger
}

func NewScheduler(ttlCache *cache.TTL, sessions *service.SessionService, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		cache:    ttlCache,
		sessions: sessions,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	// cache sweep every ten minutes
	if _, err := s.cron.AddFunc("0 */10 * * * *", s.sweepCache); err != nil {
		return err
	}
	// session sweep hourly
	if _, err := s.cron.AddFunc("0 0 * * * *", s.sweepSessions); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits briefly for running sweeps to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler jobs still running at shutdown")
	}
}

func (s *Scheduler) sweepCache() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.cache.Cleanup(ctx)
}

func (s *Scheduler) sweepSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.sessions.SweepExpired(ctx)
}

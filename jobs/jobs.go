package jobs

import (
	"HealthConnect/config"
	"HealthConnect/ratelimit"
	"HealthConnect/services"
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const jobTimeout = 5 * time.Minute

type Scheduler struct {
	cron     *cron.Cron
	svc      *services.Services
	limiters []*ratelimit.Memory
	idle     time.Duration
	log      *zap.Logger
}

/*
* Expired sessions are deactivated on the short spec
* Old sessions, stale codes and idle limiter buckets go on the daily spec
 */
func NewScheduler(cfg config.Config, svc *services.Services, log *zap.Logger, limiters ...*ratelimit.Memory) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		svc:      svc,
		limiters: limiters,
		idle:     cfg.RateLimit.AuthWindow + cfg.OTP.ResendCooldown,
		log:      log,
	}
	if _, err := s.cron.AddFunc(cfg.Jobs.SessionCleanupSpec, s.run("session cleanup", s.CleanupSessions)); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc(cfg.Jobs.RetentionCleanupSpec, s.run("retention cleanup", s.RetentionCleanup)); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) run(name string, fn func(ctx context.Context) error) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.log.Error("job failed", zap.String("job", name), zap.Error(err))
		}
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("background jobs started", zap.Int("entries", len(s.cron.Entries())))
}

// Stop waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) CleanupSessions(ctx context.Context) error {
	n, err := s.svc.Sessions.CleanupExpired(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.Info("expired sessions deactivated", zap.Int64("count", n))
	}
	return nil
}

func (s *Scheduler) RetentionCleanup(ctx context.Context) error {
	sessions, err := s.svc.Sessions.DeleteOld(ctx)
	if err != nil {
		return err
	}
	codes, err := s.svc.OTP.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	swept := 0
	for _, l := range s.limiters {
		swept += l.Sweep(s.idle)
	}
	s.log.Info("retention cleanup done",
		zap.Int64("sessions", sessions),
		zap.Int64("codes", codes),
		zap.Int("limiterKeys", swept))
	return nil
}

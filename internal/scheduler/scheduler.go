// Package scheduler drives the background maintenance jobs: recurring
// challenge generation, streak at-risk reminders and expired streak resets.
package scheduler

import (
	"context"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/limbo/ecotrack/internal/service"
)

type Scheduler struct {
	streaks    service.StreaksServiceI
	challenges service.ChallengesServiceI
	interval   time.Duration
	logger     *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(streaks service.StreaksServiceI, challenges service.ChallengesServiceI, interval time.Duration, logger *slog.Logger) *Scheduler {
	if streaks == nil || challenges == nil {
		log.Fatal("on scheduler provided nil services")
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		streaks:    streaks,
		challenges: challenges,
		interval:   interval,
		logger:     logger,
	}
}

// Start launches one goroutine per job. Each job is single-flight: ticks are
// delivered on its own loop, so a slow run simply absorbs the next tick
// instead of overlapping with it. Failed runs are logged and retried on the
// following tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.runJob(ctx, "recurring challenge generation", func(ctx context.Context, now time.Time) error {
		return s.challenges.GenerateRecurring(ctx, now)
	})
	s.runJob(ctx, "streak at-risk sweep", func(ctx context.Context, now time.Time) error {
		notified, err := s.streaks.SweepAtRisk(ctx, now)
		if err == nil {
			s.logger.Info("streak at-risk sweep finished", slog.Int("notified", notified))
		}
		return err
	})
	s.runJob(ctx, "expired streak sweep", func(ctx context.Context, now time.Time) error {
		broken, err := s.streaks.SweepExpired(ctx, now)
		if err == nil {
			s.logger.Info("expired streak sweep finished", slog.Int("broken", broken))
		}
		return err
	})
}

func (s *Scheduler) runJob(ctx context.Context, name string, job func(ctx context.Context, now time.Time) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		// First run right away, the ticker covers the rest
		s.runOnce(ctx, name, job)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx, name, job)
			}
		}
	}()
}

func (s *Scheduler) runOnce(ctx context.Context, name string, job func(ctx context.Context, now time.Time) error) {
	if err := job(ctx, time.Now()); err != nil {
		s.logger.Error("scheduled job failed", slog.String("job", name), slog.String("error", err.Error()))
	}
}

func (s *Scheduler) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

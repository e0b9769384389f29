package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/studentize/internal/metrics"
	"github.com/robfig/cron/v3"
)

const sweepTimeout = time.Minute

// StaleEnder marks scheduled sessions that started before the cutoff as ended.
type StaleEnder interface {
	EndStaleScheduledSessions(ctx context.Context, scheduledBefore, endedAt time.Time) (int64, error)
}

// Sweeper periodically ends scheduled sessions older than ttl.
type Sweeper struct {
	repo    StaleEnder
	ttl     time.Duration
	spec    string
	metrics *metrics.Metrics
	now     func() time.Time
	cron    *cron.Cron
}

func New(repo StaleEnder, spec string, ttl time.Duration, m *metrics.Metrics) *Sweeper {
	return &Sweeper{
		repo:    repo,
		ttl:     ttl,
		spec:    spec,
		metrics: m,
		now:     time.Now,
		cron:    cron.New(),
	}
}

func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := s.SweepOnce(ctx); err != nil {
			slog.Error("stale scheduled session sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.spec, err)
	}
	s.cron.Start()
	slog.Info("stale scheduled session sweeper started", "schedule", s.spec, "ttl", s.ttl)
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	n, err := s.repo.EndStaleScheduledSessions(ctx, now.Add(-s.ttl), now)
	if err != nil {
		return 0, err
	}
	s.metrics.RecordStaleSessionsSwept(n)
	if n > 0 {
		slog.Info("stale scheduled sessions ended", "count", n, "cutoff", now.Add(-s.ttl))
	}
	return n, nil
}

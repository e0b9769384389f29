package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockEnder struct {
	before  time.Time
	endedAt time.Time
	n       int64
	err     error
}

func (m *mockEnder) EndStaleScheduledSessions(_ context.Context, scheduledBefore, endedAt time.Time) (int64, error) {
	m.before = scheduledBefore
	m.endedAt = endedAt
	return m.n, m.err
}

func TestSweepOnceUsesTTLCutoff(t *testing.T) {
	repo := &mockEnder{n: 3}
	s := New(repo, "@every 15m", 24*time.Hour, nil)
	now := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	n, err := s.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 3 {
		t.Fatalf("unexpected count: %d", n)
	}
	if !repo.before.Equal(now.Add(-24*time.Hour)) || !repo.endedAt.Equal(now) {
		t.Fatalf("unexpected cutoff %s / endedAt %s", repo.before, repo.endedAt)
	}
}

func TestSweepOnceReturnsRepositoryError(t *testing.T) {
	s := New(&mockEnder{err: errors.New("db down")}, "@every 15m", time.Hour, nil)
	if _, err := s.SweepOnce(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	s := New(&mockEnder{}, "not a cron", time.Hour, nil)
	if err := s.Start(); err == nil {
		t.Fatalf("expected invalid schedule error")
	}
}

func TestStartAndStop(t *testing.T) {
	s := New(&mockEnder{}, "@every 1h", time.Hour, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	s.Stop()
}

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/foxseedlab/studentize/internal/repository"
)

func TestMalformedIDsAreNotFound(t *testing.T) {
	// No pool: a malformed id must be rejected before any query runs.
	r := &PostgresRepository{}
	ctx := context.Background()

	if _, err := r.GetScheduledSession(ctx, "abc"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("GetScheduledSession: expected ErrNotFound, got %v", err)
	}
	if _, err := r.GetSession(ctx, "not-a-uuid"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("GetSession: expected ErrNotFound, got %v", err)
	}
	if err := r.EndScheduledSession(ctx, "abc", time.Now()); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("EndScheduledSession: expected ErrNotFound, got %v", err)
	}
	if err := r.SoftDeleteSession(ctx, "abc", time.Now()); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("SoftDeleteSession: expected ErrNotFound, got %v", err)
	}
	if err := r.UpdateSessionSummary(ctx, "abc", []byte(`{}`)); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("UpdateSessionSummary: expected ErrNotFound, got %v", err)
	}
	if _, err := r.ReserveSession(ctx, "abc", "3f1c7a2e-9d4b-4c55-8a51-0d6f2b7c9e10"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("ReserveSession: expected ErrNotFound, got %v", err)
	}
	if _, err := r.AppendSegments(ctx, repository.AppendSegmentsInput{SessionID: "abc"}); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("AppendSegments: expected ErrNotFound, got %v", err)
	}
	segments, err := r.ListSegmentsBySessionID(ctx, "abc")
	if err != nil || len(segments) != 0 {
		t.Fatalf("ListSegmentsBySessionID: got %v, %v", segments, err)
	}
}

func TestValidID(t *testing.T) {
	if !validID("3f1c7a2e-9d4b-4c55-8a51-0d6f2b7c9e10") {
		t.Fatal("expected a canonical uuid to be valid")
	}
	for _, id := range []string{"", "abc", "sch-1", "3f1c7a2e-9d4b-4c55-8a51"} {
		if validID(id) {
			t.Fatalf("expected %q to be rejected", id)
		}
	}
}

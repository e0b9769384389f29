package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE bot_run_status AS ENUM ('dispatched', 'completed'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		student_user_id TEXT NOT NULL,
		advisor_user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		summary JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_student ON sessions (student_user_id) WHERE deleted_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_advisor ON sessions (advisor_user_id) WHERE deleted_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS scheduled_sessions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		advisor_user_id TEXT NOT NULL,
		student_user_id TEXT NOT NULL,
		scheduled_at TIMESTAMPTZ,
		meeting_link TEXT NOT NULL,
		bot_id TEXT,
		created_session_id UUID REFERENCES sessions(id),
		ended_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scheduled_sessions_open ON scheduled_sessions (scheduled_at) WHERE ended_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS transcript_segments (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		speaker TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		segment_index INTEGER NOT NULL,
		spoken_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE(session_id, segment_index)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transcript_segments_session ON transcript_segments (session_id, segment_index)`,
	`CREATE TABLE IF NOT EXISTS bot_runs (
		bot_id TEXT PRIMARY KEY,
		session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		provider TEXT NOT NULL,
		status bot_run_status NOT NULL DEFAULT 'dispatched',
		started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		ended_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS transcript_deliveries (
		bot_id TEXT NOT NULL,
		delivery_key TEXT NOT NULL,
		session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		received_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (bot_id, delivery_key)
	)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/foxseedlab/studentize/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

// validID reports whether id can be compared with a UUID column. Other strings
// are reported as missing rows rather than reaching Postgres as a 22P02 error.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

const scheduledSessionColumns = `id, advisor_user_id, student_user_id, scheduled_at, meeting_link, bot_id, created_session_id, ended_at, created_at`

func scanScheduledSession(row pgx.Row) (*repository.ScheduledSession, error) {
	var s repository.ScheduledSession
	err := row.Scan(&s.ID, &s.AdvisorUserID, &s.StudentUserID, &s.ScheduledAt, &s.MeetingLink, &s.BotID, &s.CreatedSessionID, &s.EndedAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) CreateScheduledSession(ctx context.Context, input repository.CreateScheduledSessionInput) (*repository.ScheduledSession, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO scheduled_sessions (advisor_user_id, student_user_id, scheduled_at, meeting_link)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+scheduledSessionColumns,
		input.AdvisorUserID, input.StudentUserID, input.ScheduledAt, input.MeetingLink)
	return scanScheduledSession(row)
}

func (r *PostgresRepository) GetScheduledSession(ctx context.Context, id string) (*repository.ScheduledSession, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	row := r.pool.QueryRow(ctx,
		`SELECT `+scheduledSessionColumns+` FROM scheduled_sessions WHERE id = $1`, id)
	return scanScheduledSession(row)
}

func (r *PostgresRepository) ReserveSession(ctx context.Context, scheduledSessionID, sessionID string) (string, error) {
	if !validID(scheduledSessionID) || !validID(sessionID) {
		return "", repository.ErrNotFound
	}
	var stored string
	err := r.pool.QueryRow(ctx,
		`UPDATE scheduled_sessions SET created_session_id = COALESCE(created_session_id, $2)
		 WHERE id = $1
		 RETURNING created_session_id`,
		scheduledSessionID, sessionID).Scan(&stored)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", err
	}
	return stored, nil
}

func (r *PostgresRepository) AttachBot(ctx context.Context, input repository.AttachBotInput) error {
	if !validID(input.ScheduledSessionID) || !validID(input.SessionID) {
		return repository.ErrNotFound
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO bot_runs (bot_id, session_id, provider, status)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (bot_id) DO NOTHING`,
			input.BotID, input.SessionID, input.Provider, string(repository.BotRunStatusDispatched)); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`UPDATE scheduled_sessions SET bot_id = $2, created_session_id = $3 WHERE id = $1`,
			input.ScheduledSessionID, input.BotID, input.SessionID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (r *PostgresRepository) EndScheduledSession(ctx context.Context, id string, endedAt time.Time) error {
	if !validID(id) {
		return repository.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE scheduled_sessions SET ended_at = COALESCE(ended_at, $2) WHERE id = $1`,
		id, endedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) EndStaleScheduledSessions(ctx context.Context, scheduledBefore, endedAt time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE scheduled_sessions SET ended_at = $2
		 WHERE ended_at IS NULL AND scheduled_at IS NOT NULL AND scheduled_at < $1`,
		scheduledBefore, endedAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const sessionColumns = `id, student_user_id, advisor_user_id, title, summary, created_at, deleted_at`

func scanSession(row pgx.Row) (*repository.Session, error) {
	var s repository.Session
	err := row.Scan(&s.ID, &s.StudentUserID, &s.AdvisorUserID, &s.Title, &s.Summary, &s.CreatedAt, &s.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO sessions (student_user_id, advisor_user_id, title)
		 VALUES ($1, $2, $3)
		 RETURNING `+sessionColumns,
		input.StudentUserID, input.AdvisorUserID, input.Title)
	return scanSession(row)
}

func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*repository.Session, error) {
	if !validID(id) {
		return nil, repository.ErrNotFound
	}
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanSession(row)
}

func (r *PostgresRepository) UpdateSessionSummary(ctx context.Context, id string, summary []byte) error {
	if !validID(id) {
		return repository.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET summary = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, summary)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) SoftDeleteSession(ctx context.Context, id string, deletedAt time.Time) error {
	if !validID(id) {
		return repository.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE sessions SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, deletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) InsertSegment(ctx context.Context, input repository.InsertSegmentInput) error {
	if !validID(input.SessionID) {
		return repository.ErrNotFound
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO transcript_segments (session_id, speaker, content, segment_index, spoken_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		input.SessionID, input.Speaker, input.Content, input.SegmentIndex, input.SpokenAt)
	return err
}

func (r *PostgresRepository) NextSegmentIndex(ctx context.Context, sessionID string) (int, error) {
	if !validID(sessionID) {
		return 0, repository.ErrNotFound
	}
	var next int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(segment_index) + 1, 0) FROM transcript_segments WHERE session_id = $1`,
		sessionID).Scan(&next)
	return next, err
}

// AppendSegments locks the session row so concurrent deliveries take
// consecutive index ranges.
func (r *PostgresRepository) AppendSegments(ctx context.Context, input repository.AppendSegmentsInput) (int, error) {
	if !validID(input.SessionID) {
		return 0, repository.ErrNotFound
	}
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx,
			`SELECT id FROM sessions WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`,
			input.SessionID).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return repository.ErrNotFound
			}
			return err
		}
		if input.DeliveryKey != "" {
			tag, err := tx.Exec(ctx,
				`INSERT INTO transcript_deliveries (bot_id, delivery_key, session_id)
				 VALUES ($1, $2, $3)
				 ON CONFLICT (bot_id, delivery_key) DO NOTHING`,
				input.BotID, input.DeliveryKey, input.SessionID)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return repository.ErrDuplicateDelivery
			}
		}
		var next int
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(segment_index) + 1, 0) FROM transcript_segments WHERE session_id = $1`,
			input.SessionID).Scan(&next); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for i, seg := range input.Segments {
			batch.Queue(
				`INSERT INTO transcript_segments (session_id, speaker, content, segment_index, spoken_at)
				 VALUES ($1, $2, $3, $4, $5)`,
				input.SessionID, seg.Speaker, seg.Content, next+i, seg.SpokenAt)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return 0, err
	}
	return len(input.Segments), nil
}

func (r *PostgresRepository) ListSegmentsBySessionID(ctx context.Context, sessionID string) ([]repository.TranscriptSegment, error) {
	if !validID(sessionID) {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, speaker, content, segment_index, spoken_at, created_at
		 FROM transcript_segments WHERE session_id = $1 ORDER BY segment_index ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.TranscriptSegment
	for rows.Next() {
		var seg repository.TranscriptSegment
		if err := rows.Scan(&seg.ID, &seg.SessionID, &seg.Speaker, &seg.Content, &seg.SegmentIndex, &seg.SpokenAt, &seg.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, seg)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) GetBotRun(ctx context.Context, botID string) (*repository.BotRun, error) {
	var run repository.BotRun
	var status string
	err := r.pool.QueryRow(ctx,
		`SELECT bot_id, session_id, provider, status, started_at, ended_at FROM bot_runs WHERE bot_id = $1`,
		botID).Scan(&run.BotID, &run.SessionID, &run.Provider, &status, &run.StartedAt, &run.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	run.Status = repository.BotRunStatus(status)
	return &run, nil
}

func (r *PostgresRepository) UpdateBotRunStatus(ctx context.Context, botID string, status repository.BotRunStatus, at time.Time) error {
	var endedAt *time.Time
	if status == repository.BotRunStatusCompleted {
		endedAt = &at
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE bot_runs SET status = $2, ended_at = COALESCE($3, ended_at) WHERE bot_id = $1`,
		botID, string(status), endedAt)
	return err
}

package clips

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jo-hoe/clipcast/internal/common"
)

// ErrNotFound is returned when a clip id does not exist.
var ErrNotFound = errors.New("clip not found")

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	// Busy timeout to avoid SQLITE_BUSY in concurrent access.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", path, common.SQLiteBusyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS clips (
		id TEXT PRIMARY KEY,
		input_type TEXT NOT NULL,
		input_content TEXT NOT NULL,
		context_instruction TEXT,
		target_duration INTEGER NOT NULL,
		page_title TEXT,
		generated_script TEXT,
		audio_url TEXT,
		actual_duration REAL,
		error_message TEXT,
		status TEXT NOT NULL,
		is_favorited INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		started_processing_at TEXT,
		completed_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_clips_status_created ON clips (status, created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

const clipColumns = `id, input_type, input_content, context_instruction, target_duration,
	page_title, generated_script, audio_url, actual_duration, error_message,
	status, is_favorited, created_at, started_processing_at, completed_at`

func (s *SQLiteStore) Create(ctx context.Context, clip *Clip) error {
	if clip == nil {
		return errors.New("clip is nil")
	}
	if clip.ID == "" {
		return errors.New("clip.ID is required")
	}
	if clip.Status == "" {
		clip.Status = StatusPending
	}
	if clip.CreatedAt.IsZero() {
		clip.CreatedAt = time.Now().UTC()
	}
	var instruction *string
	if clip.ContextInstruction != nil && *clip.ContextInstruction != "" {
		instruction = clip.ContextInstruction
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO clips (id, input_type, input_content, context_instruction, target_duration, status, is_favorited, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		clip.ID, string(clip.InputType), clip.InputContent, instruction, clip.TargetDuration,
		string(clip.Status), boolToInt(clip.IsFavorited), clip.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert clip: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Clip, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clipColumns+` FROM clips WHERE id = ?`, id)
	clip, err := scanClip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get clip: %w", err)
	}
	return clip, nil
}

// List returns clips newest first, plus the total count matching the filter.
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]*Clip, int, error) {
	where := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Favorited != nil {
		where = append(where, "is_favorited = ?")
		args = append(args, boolToInt(*filter.Favorited))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clips`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count clips: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = common.DefaultListLimit
	}
	query := `SELECT ` + clipColumns + ` FROM clips` + clause + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list clips: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Clip
	for rows.Next() {
		clip, err := scanClip(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan clip: %w", err)
		}
		out = append(out, clip)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate clips: %w", err)
	}
	return out, total, nil
}

// FetchPending returns up to limit pending clips, oldest first.
func (s *SQLiteStore) FetchPending(ctx context.Context, limit int) ([]*Clip, error) {
	if limit <= 0 {
		limit = common.DefaultPendingBatch
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clipColumns+` FROM clips WHERE status = ? ORDER BY created_at ASC LIMIT ?`,
		string(StatusPending), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch pending: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Clip
	for rows.Next() {
		clip, err := scanClip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan clip: %w", err)
		}
		out = append(out, clip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending: %w", err)
	}
	return out, nil
}

// Claim atomically transitions a pending clip to processing. It returns false
// when the clip was already claimed, terminal, or missing. The guarded UPDATE
// is a single read-modify-write, so exactly one concurrent caller wins.
func (s *SQLiteStore) Claim(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE clips SET status = ?, started_processing_at = ?
		 WHERE id = ? AND status = ?`,
		string(StatusProcessing), startedAt.UTC().Format(time.RFC3339Nano), id, string(StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("claim clip: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim rows affected: %w", err)
	}
	return n == 1, nil
}

// SaveResult marks a processing clip completed and records its outputs.
// Terminal rows are never rewritten; the status guard keeps the transition
// idempotent.
func (s *SQLiteStore) SaveResult(ctx context.Context, id string, result Result, completedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE clips
		SET status = ?, page_title = ?, generated_script = ?, audio_url = ?, actual_duration = ?,
		    error_message = NULL, completed_at = ?
		WHERE id = ? AND status = ?`,
		string(StatusCompleted), result.PageTitle, result.GeneratedScript, result.AudioURL,
		result.ActualDuration, completedAt.UTC().Format(time.RFC3339Nano), id, string(StatusProcessing),
	)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// SaveError marks a processing clip failed with the given message. A script
// generated before the failing stage is kept for inspection; audio outputs
// stay unset.
func (s *SQLiteStore) SaveError(ctx context.Context, id string, errMsg string, generatedScript *string, completedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE clips
		SET status = ?, error_message = ?, generated_script = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		string(StatusFailed), errMsg, generatedScript, completedAt.UTC().Format(time.RFC3339Nano), id, string(StatusProcessing),
	)
	if err != nil {
		return fmt.Errorf("save error: %w", err)
	}
	return nil
}

// ToggleFavorite flips is_favorited and returns the updated clip.
func (s *SQLiteStore) ToggleFavorite(ctx context.Context, id string) (*Clip, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE clips SET is_favorited = NOT is_favorited WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("toggle favorite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("toggle rows affected: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM clips WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete clip: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClip(row rowScanner) (*Clip, error) {
	var clip Clip
	var inputType, status string
	var instruction, pageTitle, script, audioURL, errMsg, created, started, completed sql.NullString
	var duration sql.NullFloat64
	var favorited int

	if err := row.Scan(
		&clip.ID,
		&inputType,
		&clip.InputContent,
		&instruction,
		&clip.TargetDuration,
		&pageTitle,
		&script,
		&audioURL,
		&duration,
		&errMsg,
		&status,
		&favorited,
		&created,
		&started,
		&completed,
	); err != nil {
		return nil, err
	}

	clip.InputType = InputType(inputType)
	clip.Status = Status(status)
	clip.IsFavorited = favorited != 0
	clip.ContextInstruction = nullableStr(instruction)
	clip.PageTitle = nullableStr(pageTitle)
	clip.GeneratedScript = nullableStr(script)
	clip.AudioURL = nullableStr(audioURL)
	clip.ErrorMessage = nullableStr(errMsg)
	if duration.Valid {
		v := duration.Float64
		clip.ActualDuration = &v
	}
	if created.Valid {
		t, err := time.Parse(time.RFC3339Nano, created.String)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		clip.CreatedAt = t
	}
	clip.StartedProcessingAt = nullableTime(started)
	clip.CompletedAt = nullableTime(completed)

	return &clip, nil
}

func nullableStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullableTime(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reelpack/internal/services"
)

// timeLayout keeps timestamps fixed-width so they sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Status is the lifecycle state of a recorded operation.
type Status string

const (
	StatusRunning     Status = "running"
	StatusDone        Status = "done"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
	StatusInterrupted Status = "interrupted"
)

// Record is one pack, unpack, or preview run.
type Record struct {
	ID           string
	Category     string
	Status       Status
	Target       string
	Output       string
	ErrorKind    string
	ErrorMessage string
	Images       int
	Tracks       int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Duration is the wall time of a finished record.
func (r Record) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Begin inserts a running record.
func (s *Store) Begin(ctx context.Context, id, category, target string, started time.Time) error {
	_, err := s.exec(ctx,
		`INSERT INTO operations (id, category, status, target, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, category, StatusRunning, target, started.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert operation: %w", err)
	}
	return nil
}

// SetCounts stores the image and track counts once classification is known.
func (s *Store) SetCounts(ctx context.Context, id string, images, tracks int) error {
	if _, err := s.exec(ctx, `UPDATE operations SET images = ?, tracks = ? WHERE id = ?`, images, tracks, id); err != nil {
		return fmt.Errorf("update counts: %w", err)
	}
	return nil
}

// Finish stores the outcome of id. A nil err records success; cancellation
// errors record StatusCancelled.
func (s *Store) Finish(ctx context.Context, id, output string, runErr error, finished time.Time) error {
	status := StatusDone
	var kind, message sql.NullString
	switch {
	case runErr == nil:
	case services.IsCancellation(runErr):
		status = StatusCancelled
		output = ""
	default:
		status = StatusFailed
		output = ""
		kind = sql.NullString{String: services.FailureKind(runErr), Valid: true}
		message = sql.NullString{String: runErr.Error(), Valid: true}
	}
	res, err := s.exec(ctx,
		`UPDATE operations SET status = ?, output = ?, error_kind = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		status, nullable(output), kind, message, finished.UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("finish operation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "history", "finish", "operation "+id, nil)
	}
	return nil
}

// MarkInterrupted closes records left running by a process that exited
// without finishing them.
func (s *Store) MarkInterrupted(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx,
		`UPDATE operations SET status = ?, finished_at = ? WHERE status = ?`,
		StatusInterrupted, time.Now().UTC().Format(timeLayout), StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted: %w", err)
	}
	return res.RowsAffected()
}

const selectColumns = `id, category, status, target, output, error_kind, error_message, images, tracks, started_at, finished_at`

// Get returns the record with id.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM operations WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, services.Wrap(services.ErrNotFound, "history", "get", "operation "+id, nil)
	}
	return rec, err
}

// List returns the most recent records, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT ` + selectColumns + ` FROM operations ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes finished records that started before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.exec(ctx,
		`DELETE FROM operations WHERE status != ? AND started_at < ?`,
		StatusRunning, cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("prune operations: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec                             Record
		output, kind, message, finished sql.NullString
		started                         string
	)
	if err := row.Scan(&rec.ID, &rec.Category, &rec.Status, &rec.Target, &output, &kind, &message,
		&rec.Images, &rec.Tracks, &started, &finished); err != nil {
		return Record{}, err
	}
	rec.Output = output.String
	rec.ErrorKind = kind.String
	rec.ErrorMessage = message.String
	var err error
	if rec.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return Record{}, fmt.Errorf("parse started_at: %w", err)
	}
	if finished.Valid && finished.String != "" {
		if rec.FinishedAt, err = time.Parse(timeLayout, finished.String); err != nil {
			return Record{}, fmt.Errorf("parse finished_at: %w", err)
		}
	}
	return rec, nil
}

func nullable(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

package registry

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/raysh454/clipper/internal/logging"

	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed schema.sql
var schemaFS embed.FS

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobExists   = errors.New("job already recorded")
)

// Registry is the SQLite ledger of clip jobs. Output files are never stored;
// the ledger only remembers what was asked for and how it ended.
type Registry struct {
	db     *sql.DB
	logger logging.Logger
}

// Open opens (creating if needed) the ledger database at path.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

// NewRegistry returns a Registry and runs migrations from schema.sql.
func NewRegistry(db *sql.DB, logger logging.Logger) (*Registry, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	return &Registry{db: db, logger: logger}, nil
}

// CreateJob inserts a pending job. An id that is already recorded yields
// ErrJobExists and leaves the existing row untouched.
func (r *Registry) CreateJob(ctx context.Context, id, sourceURL string) (*Job, error) {
	now := time.Now().Unix()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO clip_jobs (id, source_url, status, created_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT (id) DO NOTHING`,
		id, sourceURL, JobPending, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	} else if n == 0 {
		return nil, ErrJobExists
	}
	return &Job{ID: id, SourceURL: sourceURL, Status: JobPending, CreatedAt: now}, nil
}

// MarkRunning records what is about to be downloaded.
func (r *Registry) MarkRunning(ctx context.Context, id, videoURL, title string, startSec, endSec float64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE clip_jobs
         SET status = ?, video_url = ?, title = ?, start_sec = ?, end_sec = ?
         WHERE id = ?`,
		JobRunning, videoURL, title, startSec, endSec, id,
	)
	if err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	return expectOneRow(res)
}

// FinishJob stores the outcome of a job. errMsg is empty for successful jobs.
func (r *Registry) FinishJob(ctx context.Context, id string, status JobStatus, errMsg, fileName string, fileSize int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE clip_jobs
         SET status = ?, error = ?, file_name = ?, file_size = ?, finished_at = ?
         WHERE id = ?`,
		status, errMsg, fileName, fileSize, time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return expectOneRow(res)
}

// GetJob returns a job by id.
func (r *Registry) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, source_url, video_url, title, start_sec, end_sec, status, error, file_name, file_size, created_at, finished_at
         FROM clip_jobs
         WHERE id = ?
         LIMIT 1`,
		id,
	)
	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return j, nil
}

// ListJobs returns the newest jobs first. limit <= 0 means no limit.
func (r *Registry) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, source_url, video_url, title, start_sec, end_sec, status, error, file_name, file_size, created_at, finished_at
         FROM clip_jobs
         ORDER BY created_at DESC, rowid DESC
         LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// PruneJobs deletes finished jobs created before cutoff and returns how many
// were removed.
func (r *Registry) PruneJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM clip_jobs WHERE created_at < ? AND finished_at > 0`,
		cutoff.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		r.logger.Info("pruned job ledger", logging.Field{Key: "removed", Value: n})
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*Job, error) {
	var j Job
	var status string
	if err := s.Scan(&j.ID, &j.SourceURL, &j.VideoURL, &j.Title, &j.StartSec, &j.EndSec,
		&status, &j.Error, &j.FileName, &j.FileSize, &j.CreatedAt, &j.FinishedAt); err != nil {
		return nil, err
	}
	j.Status = JobStatus(status)
	return &j, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

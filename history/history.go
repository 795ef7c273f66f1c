package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ridoystarlord/tplgen/generator"
)

// Run is one recorded generation run.
type Run struct {
	ID         int64
	StartedAt  time.Time
	Duration   time.Duration
	ExecutedBy string
	Project    string
	Source     string
	Status     generator.Status
	Tables     int
	Templates  int
	Failures   int
	Outputs    []OutputRecord
}

// OutputRecord is the checksum of one file produced by a run.
type OutputRecord struct {
	Template string
	Table    string
	Path     string
	Bytes    int
	Checksum string
}

// NewRun summarises result for recording. Failed pairs are counted but
// their outputs, having none, are not stored.
func NewRun(project, source string, tables, templates int, result *generator.Result) Run {
	run := Run{
		StartedAt:  time.Now().Add(-result.Duration),
		Duration:   result.Duration,
		ExecutedBy: currentUser(),
		Project:    project,
		Source:     source,
		Status:     result.Status(),
		Tables:     tables,
		Templates:  templates,
		Failures:   len(result.Failures),
	}
	for _, o := range result.Outputs {
		run.Outputs = append(run.Outputs, OutputRecord{
			Template: o.Template,
			Table:    o.Table,
			Path:     o.Path,
			Bytes:    len(o.Content),
			Checksum: o.Checksum(),
		})
	}
	return run
}

func currentUser() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	return u.Username
}

// Store keeps run history in a SQLite file.
type Store struct {
	db *sql.DB
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS generation_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL,
	executed_by TEXT,
	project TEXT NOT NULL,
	source TEXT NOT NULL,
	status TEXT NOT NULL,
	tables INTEGER NOT NULL,
	templates INTEGER NOT NULL,
	failures INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS generation_outputs (
	run_id INTEGER NOT NULL REFERENCES generation_runs(id) ON DELETE CASCADE,
	template TEXT NOT NULL,
	table_name TEXT NOT NULL,
	path TEXT NOT NULL,
	bytes INTEGER NOT NULL,
	checksum TEXT NOT NULL,
	PRIMARY KEY (run_id, path)
);
`

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores run and its outputs in one transaction and returns the
// new run id.
func (s *Store) Record(ctx context.Context, run Run) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO generation_runs
			(started_at, duration_ms, executed_by, project, source, status, tables, templates, failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt.UTC(), run.Duration.Milliseconds(), run.ExecutedBy, run.Project, run.Source,
		string(run.Status), run.Tables, run.Templates, run.Failures)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO generation_outputs (run_id, template, table_name, path, bytes, checksum)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare output insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range run.Outputs {
		if _, err := stmt.ExecContext(ctx, id, o.Template, o.Table, o.Path, o.Bytes, o.Checksum); err != nil {
			return 0, fmt.Errorf("insert output %s: %w", o.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return id, nil
}

// Recent returns up to limit runs, newest first, without their outputs.
// A limit of zero or less returns every run.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, started_at, duration_ms, COALESCE(executed_by, ''), project, source, status, tables, templates, failures
		FROM generation_runs
		ORDER BY id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var durationMs int64
		var status string
		if err := rows.Scan(&r.ID, &r.StartedAt, &durationMs, &r.ExecutedBy, &r.Project, &r.Source,
			&status, &r.Tables, &r.Templates, &r.Failures); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.Status = generator.Status(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Outputs returns the outputs recorded for runID, sorted by path.
func (s *Store) Outputs(ctx context.Context, runID int64) ([]OutputRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT template, table_name, path, bytes, checksum
		FROM generation_outputs
		WHERE run_id = ?
		ORDER BY path`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outputs: %w", err)
	}
	defer rows.Close()

	var outputs []OutputRecord
	for rows.Next() {
		var o OutputRecord
		if err := rows.Scan(&o.Template, &o.Table, &o.Path, &o.Bytes, &o.Checksum); err != nil {
			return nil, fmt.Errorf("scan output: %w", err)
		}
		outputs = append(outputs, o)
	}
	return outputs, rows.Err()
}

// Changed compares outputs with the latest run before runID and returns
// the paths whose checksum differs or that are new.
func (s *Store) Changed(ctx context.Context, runID int64) ([]string, error) {
	var previous int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(id), 0) FROM generation_runs WHERE id < ?`, runID).Scan(&previous)
	if err != nil {
		return nil, fmt.Errorf("find previous run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT cur.path
		FROM generation_outputs cur
		LEFT JOIN generation_outputs prev ON prev.run_id = ? AND prev.path = cur.path
		WHERE cur.run_id = ? AND (prev.checksum IS NULL OR prev.checksum <> cur.checksum)
		ORDER BY cur.path`, previous, runID)
	if err != nil {
		return nil, fmt.Errorf("query changed outputs: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

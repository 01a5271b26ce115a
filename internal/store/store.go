// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/autotype/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for run history and checkpoints.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Checkpoints and run records are written from different goroutines.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY,
			run_uuid TEXT NOT NULL UNIQUE,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			outcome TEXT NOT NULL,
			base_wpm REAL NOT NULL,
			start_position INTEGER NOT NULL,
			end_position INTEGER NOT NULL,
			total_chars INTEGER NOT NULL,
			typed_chars INTEGER NOT NULL,
			typos INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS run_flow_stats (
			run_id INTEGER NOT NULL,
			flow TEXT NOT NULL,
			chars INTEGER NOT NULL,
			PRIMARY KEY (run_id, flow)
		);`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			text_hash TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			total INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ended_at ON runs(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_run_flow_stats_flow ON run_flow_stats(flow);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun stores a finished run and its per-flow character counts.
func (s *Store) InsertRun(ctx context.Context, stats model.RunStats, flows []model.FlowStats) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_uuid, started_at, ended_at, outcome, base_wpm, start_position, end_position, total_chars, typed_chars, typos, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stats.RunID,
		stats.StartedAt.Format(time.RFC3339Nano),
		stats.EndedAt.Format(time.RFC3339Nano),
		stats.Outcome,
		stats.BaseWPM,
		stats.StartPosition,
		stats.EndPosition,
		stats.TotalChars,
		stats.TypedChars,
		stats.Typos,
		stats.DurationMs,
		stats.Error,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(flows) > 0 {
		var stmt *sql.Stmt
		stmt, err = tx.PrepareContext(ctx,
			`INSERT INTO run_flow_stats (run_id, flow, chars) VALUES (?, ?, ?)`)
		if err != nil {
			return 0, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, fs := range flows {
			if _, err = stmt.ExecContext(ctx, id, fs.Flow, fs.Chars); err != nil {
				return 0, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// ListRuns returns run aggregates filtered by stats config, oldest first.
func (s *Store) ListRuns(ctx context.Context, cfg model.StatsConfig) ([]model.RunAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, cfg.Outcome)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, cfg.Since.Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT id, ended_at, outcome, base_wpm, typed_chars, typos, duration_ms
		FROM runs
		WHERE %s
		ORDER BY ended_at ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var runs []model.RunAggregate
	for rows.Next() {
		var agg model.RunAggregate
		var endedAt string
		if err := rows.Scan(&agg.RunID, &endedAt, &agg.Outcome, &agg.BaseWPM, &agg.TypedChars, &agg.Typos, &agg.DurationMs); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		agg.EndedAt = parsed
		runs = append(runs, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// ListFlowAggregatesForRuns sums characters per flow state across runs.
func (s *Store) ListFlowAggregatesForRuns(ctx context.Context, runIDs []int64) ([]model.FlowAggregate, error) {
	if len(runIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(runIDs))
	args := make([]any, len(runIDs))
	for i, id := range runIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT flow, SUM(chars) AS chars, COUNT(DISTINCT run_id) AS runs
		FROM run_flow_stats
		WHERE run_id IN (%s)
		GROUP BY flow
		ORDER BY chars DESC, flow ASC`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.FlowAggregate
	for rows.Next() {
		var agg model.FlowAggregate
		if err := rows.Scan(&agg.Flow, &agg.Chars, &agg.Runs); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// LoadCheckpoint returns the saved resume offset for a text hash.
func (s *Store) LoadCheckpoint(ctx context.Context, textHash string) (model.Checkpoint, bool, error) {
	cp := model.Checkpoint{TextHash: textHash}
	var updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT position, total, updated_at FROM checkpoints WHERE text_hash = ?`, textHash,
	).Scan(&cp.Position, &cp.Total, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Checkpoint{}, false, nil
	}
	if err != nil {
		return model.Checkpoint{}, false, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return model.Checkpoint{}, false, fmt.Errorf("failed to parse checkpoint time: %w", err)
	}
	cp.UpdatedAt = parsed
	return cp, true, nil
}

// SaveCheckpoint upserts the resume offset for a text hash.
func (s *Store) SaveCheckpoint(ctx context.Context, cp model.Checkpoint) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (text_hash, position, total, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(text_hash) DO UPDATE SET position = excluded.position, total = excluded.total, updated_at = excluded.updated_at`,
		cp.TextHash, cp.Position, cp.Total, cp.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// DeleteCheckpoint removes the checkpoint for a text hash. Missing rows are ignored.
func (s *Store) DeleteCheckpoint(ctx context.Context, textHash string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE text_hash = ?`, textHash); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// PruneCheckpoints deletes checkpoints not touched since before.
func (s *Store) PruneCheckpoints(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE updated_at < ?`, before.Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to prune checkpoints: %w", err)
	}
	return res.RowsAffected()
}

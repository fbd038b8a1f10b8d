package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MarkStefanovic/ketl-sub000/internal/task/state"
	logx "github.com/MarkStefanovic/ketl-sub000/pkg/logx"
)

//go:embed migrations.sql
var migrations string

const (
	logRetainRows = 100_000
	pruneEvery    = 500
)

type sqliteStore struct {
	db   *sql.DB
	log  logx.Logger
	keep int

	logWrites atomic.Uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, keep: cfg.keep()}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			log.Debug("sqlite pragma failed", logx.String("pragma", pragma), logx.Err(err))
		}
	}

	if _, err := db.ExecContext(context.Background(), migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) AppendStatus(ctx context.Context, rec state.StatusRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_status(job, state, detail, ts) VALUES(?,?,?,?)`,
		rec.Job, rec.State, nullStr(rec.Detail), formatTime(rec.TS),
	)
	return err
}

func (s *sqliteStore) AppendResult(ctx context.Context, rec state.ResultRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_result(run_id, job, outcome, detail, start_ts, end_ts, execution_seconds, attempts)
		 VALUES(?,?,?,?,?,?,?,?)`,
		rec.RunID, rec.Job, rec.Outcome, nullStr(rec.Detail),
		formatTime(rec.Start), formatTime(rec.End), rec.ExecutionSeconds, rec.Attempts,
	)
	return err
}

func (s *sqliteStore) AppendLog(ctx context.Context, e logx.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO log(logger, level, message, ts) VALUES(?,?,?,?)`,
		e.LoggerName, e.Level, e.Message, formatTime(e.Time),
	)
	if err == nil && s.logWrites.Add(1)%pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		if perr := s.pruneLogs(pctx); perr != nil {
			s.log.Debug("log prune failed", logx.Err(perr))
		}
		cancel()
	}
	return err
}

func (s *sqliteStore) pruneLogs(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM log WHERE id <= (SELECT COALESCE(MAX(id), 0) - ? FROM log)`, logRetainRows)
	return err
}

func (s *sqliteStore) RecentResults(ctx context.Context) ([]state.ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, job, outcome, detail, start_ts, end_ts, execution_seconds, attempts
		FROM (
			SELECT r.*, ROW_NUMBER() OVER (PARTITION BY job ORDER BY id DESC) AS rn
			FROM job_result r
		)
		WHERE rn <= ?
		ORDER BY job, id`, s.keep)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []state.ResultRecord
	for rows.Next() {
		var (
			rec        state.ResultRecord
			detail     sql.NullString
			start, end string
		)
		if err := rows.Scan(&rec.RunID, &rec.Job, &rec.Outcome, &detail, &start, &end, &rec.ExecutionSeconds, &rec.Attempts); err != nil {
			return nil, err
		}
		rec.Detail = detail.String
		if rec.Start, err = time.Parse(time.RFC3339Nano, start); err != nil {
			return nil, fmt.Errorf("job_result.start_ts: %w", err)
		}
		if rec.End, err = time.Parse(time.RFC3339Nano, end); err != nil {
			return nil, fmt.Errorf("job_result.end_ts: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bobdodd/auto-a11y/internal/models"
)

// ScriptRunRecord is one setup script execution as kept in the run history.
type ScriptRunRecord struct {
	ScriptID   string
	PageID     string
	SessionID  string
	Status     models.ScriptStatus
	FailedStep int
	Reason     string
	DurationMs int64
	RanAt      time.Time
}

// RecordScriptRun appends rec to the run history and folds it into the
// script's ExecutionStats in one transaction. It returns the updated stats.
//
// The read-modify-write is not safe against a concurrent writer for the
// same script; callers serialise runs per script.
func (s *Store) RecordScriptRun(ctx context.Context, rec ScriptRunRecord) (models.ExecutionStats, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.ExecutionStats{}, fmt.Errorf("begin stats transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := scanStats(tx.QueryRowContext(ctx, statsQuery, rec.ScriptID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return models.ExecutionStats{}, err
	}

	success := rec.Status == models.ScriptSucceeded
	updated := current.Record(success, time.Duration(rec.DurationMs)*time.Millisecond, rec.RanAt)

	_, err = tx.ExecContext(ctx, `INSERT INTO script_stats
		(script_id, success_count, failure_count, avg_duration_ms, last_run_at, last_status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(script_id) DO UPDATE SET
			success_count = excluded.success_count,
			failure_count = excluded.failure_count,
			avg_duration_ms = excluded.avg_duration_ms,
			last_run_at = excluded.last_run_at,
			last_status = excluded.last_status`,
		rec.ScriptID, updated.SuccessCount, updated.FailureCount, updated.AvgDurationMs,
		updated.LastRunAt.UnixNano(), updated.LastStatus)
	if err != nil {
		return models.ExecutionStats{}, fmt.Errorf("update stats for %s: %w", rec.ScriptID, err)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO script_runs
		(script_id, page_id, session_id, status, failed_step, reason, duration_ms, ran_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ScriptID, rec.PageID, rec.SessionID, string(rec.Status), rec.FailedStep, rec.Reason,
		rec.DurationMs, rec.RanAt.UnixNano())
	if err != nil {
		return models.ExecutionStats{}, fmt.Errorf("insert run for %s: %w", rec.ScriptID, err)
	}

	if err := tx.Commit(); err != nil {
		return models.ExecutionStats{}, fmt.Errorf("commit stats: %w", err)
	}
	return updated, nil
}

const statsQuery = `SELECT success_count, failure_count, avg_duration_ms, last_run_at, last_status
	FROM script_stats WHERE script_id = ?`

func scanStats(row *sql.Row) (models.ExecutionStats, error) {
	var st models.ExecutionStats
	var lastRun sql.NullInt64
	var lastStatus sql.NullString
	err := row.Scan(&st.SuccessCount, &st.FailureCount, &st.AvgDurationMs, &lastRun, &lastStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return st, ErrNotFound
	}
	if err != nil {
		return st, fmt.Errorf("scan stats: %w", err)
	}
	if lastRun.Valid {
		st.LastRunAt = time.Unix(0, lastRun.Int64).UTC()
	}
	st.LastStatus = lastStatus.String
	return st, nil
}

// GetScriptStats returns the stored ExecutionStats for a script.
func (s *Store) GetScriptStats(ctx context.Context, scriptID string) (models.ExecutionStats, error) {
	st, err := scanStats(s.db.QueryRowContext(ctx, statsQuery, scriptID))
	if errors.Is(err, ErrNotFound) {
		return st, fmt.Errorf("script %s: %w", scriptID, ErrNotFound)
	}
	return st, err
}

// ListScriptRuns returns up to limit runs of a script, most recent first.
func (s *Store) ListScriptRuns(ctx context.Context, scriptID string, limit int) ([]ScriptRunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT script_id, page_id, session_id, status, failed_step, reason, duration_ms, ran_at
		FROM script_runs WHERE script_id = ? ORDER BY ran_at DESC, id DESC LIMIT ?`, scriptID, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs for %s: %w", scriptID, err)
	}
	defer rows.Close()

	var out []ScriptRunRecord
	for rows.Next() {
		var rec ScriptRunRecord
		var pageID, sessionID, reason sql.NullString
		var failedStep sql.NullInt64
		var status string
		var ranAt int64
		if err := rows.Scan(&rec.ScriptID, &pageID, &sessionID, &status, &failedStep, &reason, &rec.DurationMs, &ranAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.PageID = pageID.String
		rec.SessionID = sessionID.String
		rec.Status = models.ScriptStatus(status)
		rec.FailedStep = int(failedStep.Int64)
		rec.Reason = reason.String
		rec.RanAt = time.Unix(0, ranAt).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

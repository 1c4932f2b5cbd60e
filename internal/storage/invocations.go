package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

// SequenceSeparator joins command ids into a pattern id. Command ids may
// not contain it, so every pattern id maps back to exactly one sequence.
const SequenceSeparator = " -> "

const (
	opRecordInvocation = "record invocation"
	opCommandStats     = "command stats"
	opTopCommands      = "top commands"
	opCommandHistory   = "command history"
	opPurge            = "purge invocations"
)

// RecordInvocation appends a command invocation stamped with the store clock.
func (s *SQLiteStore) RecordInvocation(ctx context.Context, inv NewInvocation) error {
	if inv.CommandID == "" {
		return &StoreError{Op: opRecordInvocation, Err: invalidArgument("command_id is required")}
	}
	if strings.Contains(inv.CommandID, SequenceSeparator) {
		return &StoreError{Op: opRecordInvocation, Err: invalidArgument("command_id must not contain %q", SequenceSeparator)}
	}
	if inv.ExecutionTimeMs != nil && *inv.ExecutionTimeMs < 0 {
		return &StoreError{Op: opRecordInvocation, Err: invalidArgument("execution_time_ms must be non-negative (got %d)", *inv.ExecutionTimeMs)}
	}

	return s.locked(opRecordInvocation, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO command_invocations (
				command_id, timestamp, execution_time_ms, success, error_message, context
			) VALUES (?, ?, ?, ?, ?, ?)
		`, inv.CommandID, FormatTime(s.now()), inv.ExecutionTimeMs, inv.Success, inv.ErrorMessage, inv.Context)
		if err != nil {
			return err
		}

		s.logger.Debug("recorded command invocation", "command_id", inv.CommandID, "success", inv.Success)
		return nil
	})
}

const statsSelect = `
	SELECT command_id,
	       COUNT(*) AS hit_count,
	       MAX(timestamp) AS last_used,
	       AVG(execution_time_ms) AS avg_execution_time
	FROM command_invocations
	WHERE success = 1`

// CommandStats aggregates successful invocations per command. An empty
// commandID returns every command ordered by hit count.
func (s *SQLiteStore) CommandStats(ctx context.Context, commandID string) ([]CommandStats, error) {
	query := statsSelect + ` GROUP BY command_id ORDER BY hit_count DESC, last_used DESC`
	var args []any
	if commandID != "" {
		query = statsSelect + ` AND command_id = ? GROUP BY command_id`
		args = append(args, commandID)
	}

	var stats []CommandStats
	err := s.locked(opCommandStats, func(db *sql.DB) error {
		var err error
		stats, err = queryStats(ctx, db, query, args...)
		return err
	})
	return stats, err
}

// TopCommands returns the limit most frequently used commands.
func (s *SQLiteStore) TopCommands(ctx context.Context, limit int) ([]CommandStats, error) {
	if err := checkLimit(limit); err != nil {
		return nil, &StoreError{Op: opTopCommands, Err: err}
	}

	var stats []CommandStats
	err := s.locked(opTopCommands, func(db *sql.DB) error {
		var err error
		stats, err = queryStats(ctx, db,
			statsSelect+` GROUP BY command_id ORDER BY hit_count DESC, last_used DESC LIMIT ?`, limit)
		return err
	})
	return stats, err
}

func queryStats(ctx context.Context, db *sql.DB, query string, args ...any) ([]CommandStats, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make([]CommandStats, 0)
	for rows.Next() {
		var (
			st  CommandStats
			avg sql.NullFloat64
		)
		if err := rows.Scan(&st.CommandID, &st.HitCount, &st.LastUsed, &avg); err != nil {
			return nil, err
		}
		if avg.Valid {
			v := avg.Float64
			st.AvgExecutionTime = &v
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// CommandHistory returns successful invocations, newest first.
func (s *SQLiteStore) CommandHistory(ctx context.Context, limit int) ([]CommandHistory, error) {
	if err := checkLimit(limit); err != nil {
		return nil, &StoreError{Op: opCommandHistory, Err: err}
	}

	var history []CommandHistory
	err := s.locked(opCommandHistory, func(db *sql.DB) error {
		var err error
		history, err = queryHistory(ctx, db, limit)
		return err
	})
	return history, err
}

func queryHistory(ctx context.Context, db *sql.DB, limit int) ([]CommandHistory, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT command_id, timestamp, execution_time_ms, success
		FROM command_invocations
		WHERE success = 1
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]CommandHistory, 0)
	for rows.Next() {
		var (
			h      CommandHistory
			execMs sql.NullInt64
		)
		if err := rows.Scan(&h.CommandID, &h.Timestamp, &execMs, &h.Success); err != nil {
			return nil, err
		}
		if execMs.Valid {
			v := execMs.Int64
			h.ExecutionTimeMs = &v
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// PurgeInvocationsBefore deletes invocations stamped strictly before cutoff
// and returns how many were removed.
func (s *SQLiteStore) PurgeInvocationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.locked(opPurge, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			`DELETE FROM command_invocations WHERE timestamp < ?`, FormatTime(cutoff))
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}

// CountInvocationsBefore reports how many invocations a purge at cutoff would delete.
func (s *SQLiteStore) CountInvocationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.locked(opPurge, func(db *sql.DB) error {
		return db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM command_invocations WHERE timestamp < ?`, FormatTime(cutoff)).Scan(&n)
	})
	return n, err
}

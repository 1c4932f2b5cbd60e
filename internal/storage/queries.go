package storage

import (
	"context"
	"database/sql"
)

const (
	opRecordQuery   = "record query"
	opRecentQueries = "recent queries"
)

// RecordQuery appends a search query, then evicts everything beyond the
// most recent QueryCap rows.
func (s *SQLiteStore) RecordQuery(ctx context.Context, query string, resultCount int) error {
	if resultCount < 0 {
		return &StoreError{Op: opRecordQuery, Err: invalidArgument("result_count must be non-negative (got %d)", resultCount)}
	}

	return s.locked(opRecordQuery, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO recent_queries (query, timestamp, result_count) VALUES (?, ?, ?)`,
			query, FormatTime(s.now()), resultCount,
		); err != nil {
			return err
		}

		if _, err := db.ExecContext(ctx, `
			DELETE FROM recent_queries
			WHERE id NOT IN (
				SELECT id FROM recent_queries
				ORDER BY timestamp DESC, id DESC
				LIMIT ?
			)
		`, s.queryCap); err != nil {
			return err
		}

		s.logger.Debug("recorded query", "query", query, "result_count", resultCount)
		return nil
	})
}

// RecentQueries returns retained queries, newest first.
func (s *SQLiteStore) RecentQueries(ctx context.Context, limit int) ([]RecentQuery, error) {
	if err := checkLimit(limit); err != nil {
		return nil, &StoreError{Op: opRecentQueries, Err: err}
	}

	queries := make([]RecentQuery, 0)
	err := s.locked(opRecentQueries, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT query, timestamp, result_count
			FROM recent_queries
			ORDER BY timestamp DESC, id DESC
			LIMIT ?
		`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var q RecentQuery
			if err := rows.Scan(&q.Query, &q.Timestamp, &q.ResultCount); err != nil {
				return err
			}
			queries = append(queries, q)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return queries, nil
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
)

const (
	opDetectPatterns = "detect patterns"
	opGetPatterns    = "get patterns"
)

// RefreshPatterns loads up to window most recent successful invocations,
// hands them to mine in chronological order and upserts every returned
// pattern by pattern_id. The read, the mining and the write all happen
// under one hold of the store connection.
func (s *SQLiteStore) RefreshPatterns(ctx context.Context, window int, mine MineFunc) ([]CommandPattern, error) {
	if window < 0 {
		return nil, &StoreError{Op: opDetectPatterns, Err: invalidArgument("history window must be non-negative (got %d)", window)}
	}

	var patterns []CommandPattern
	err := s.locked(opDetectPatterns, func(db *sql.DB) error {
		now := s.now()

		history, err := queryHistory(ctx, db, window)
		if err != nil {
			return err
		}
		slices.Reverse(history)

		patterns = mine(history, now)
		if len(patterns) == 0 {
			return nil
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO command_patterns (
				pattern_id, command_sequence, frequency, confidence, last_seen, avg_time_between_commands
			) VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(pattern_id) DO UPDATE SET
				command_sequence = excluded.command_sequence,
				frequency = excluded.frequency,
				confidence = excluded.confidence,
				last_seen = excluded.last_seen,
				avg_time_between_commands = excluded.avg_time_between_commands
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range patterns {
			seq, err := json.Marshal(p.CommandSequence)
			if err != nil {
				return fmt.Errorf("encode sequence %q: %w", p.PatternID, err)
			}
			if _, err := stmt.ExecContext(ctx,
				p.PatternID, string(seq), p.Frequency, p.Confidence, p.LastSeen, p.AvgTimeBetweenCommands,
			); err != nil {
				return err
			}
		}

		if err := tx.Commit(); err != nil {
			return err
		}

		s.logger.Debug("persisted command patterns", "count", len(patterns), "history", len(history))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return patterns, nil
}

const patternSelect = `
	SELECT pattern_id, command_sequence, frequency, confidence, last_seen, avg_time_between_commands
	FROM command_patterns`

const patternOrder = ` ORDER BY confidence DESC, frequency DESC, pattern_id ASC`

// Patterns returns stored patterns with confidence >= minConfidence,
// strongest first.
func (s *SQLiteStore) Patterns(ctx context.Context, minConfidence float64, limit int) ([]CommandPattern, error) {
	if err := checkLimit(limit); err != nil {
		return nil, &StoreError{Op: opGetPatterns, Err: err}
	}

	var patterns []CommandPattern
	err := s.locked(opGetPatterns, func(db *sql.DB) error {
		var err error
		patterns, err = queryPatterns(ctx, db,
			patternSelect+` WHERE confidence >= ?`+patternOrder+` LIMIT ?`, minConfidence, limit)
		return err
	})
	return patterns, err
}

// PatternsByConfidence returns every stored pattern, strongest first.
func (s *SQLiteStore) PatternsByConfidence(ctx context.Context) ([]CommandPattern, error) {
	var patterns []CommandPattern
	err := s.locked(opGetPatterns, func(db *sql.DB) error {
		var err error
		patterns, err = queryPatterns(ctx, db, patternSelect+patternOrder)
		return err
	})
	return patterns, err
}

func queryPatterns(ctx context.Context, db *sql.DB, query string, args ...any) ([]CommandPattern, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	patterns := make([]CommandPattern, 0)
	for rows.Next() {
		var (
			p   CommandPattern
			seq string
			avg sql.NullFloat64
		)
		if err := rows.Scan(&p.PatternID, &seq, &p.Frequency, &p.Confidence, &p.LastSeen, &avg); err != nil {
			return nil, err
		}
		p.CommandSequence = decodeSequence(seq)
		if avg.Valid {
			v := avg.Float64
			p.AvgTimeBetweenCommands = &v
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// decodeSequence parses a stored sequence; malformed JSON yields an empty sequence.
func decodeSequence(raw string) []string {
	var seq []string
	if err := json.Unmarshal([]byte(raw), &seq); err != nil || seq == nil {
		return []string{}
	}
	return seq
}

package storage

import (
	"context"
	"database/sql"
)

const (
	opRecordResource  = "record resource access"
	opRecentResources = "recent resources"
	opTopResources    = "top resources"
)

// RecordResourceAccess upserts the resource keyed by (kind, name, namespace,
// context): a repeat access refreshes the timestamp and bumps access_count.
// Rows beyond the most recent ResourceCap are then evicted.
//
// The update-then-insert runs in one transaction because the table's UNIQUE
// constraint treats NULL namespace/context values as distinct.
func (s *SQLiteStore) RecordResourceAccess(ctx context.Context, ref ResourceRef) error {
	if ref.Kind == "" || ref.Name == "" {
		return &StoreError{Op: opRecordResource, Err: invalidArgument("kind and name are required")}
	}

	return s.locked(opRecordResource, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stamp := FormatTime(s.now())
		res, err := tx.ExecContext(ctx, `
			UPDATE recent_resources
			SET timestamp = ?, access_count = access_count + 1
			WHERE kind = ? AND name = ? AND namespace IS ? AND context IS ?
		`, stamp, ref.Kind, ref.Name, ref.Namespace, ref.Context)
		if err != nil {
			return err
		}
		updated, err := res.RowsAffected()
		if err != nil {
			return err
		}

		if updated == 0 {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO recent_resources (kind, name, namespace, context, timestamp, access_count)
				VALUES (?, ?, ?, ?, ?, 1)
			`, ref.Kind, ref.Name, ref.Namespace, ref.Context, stamp); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM recent_resources
			WHERE id NOT IN (
				SELECT id FROM recent_resources
				ORDER BY timestamp DESC, id DESC
				LIMIT ?
			)
		`, s.resourceCap); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return err
		}

		s.logger.Debug("recorded resource access", "kind", ref.Kind, "name", ref.Name)
		return nil
	})
}

// RecentResources returns resources by most recent access. An empty kind
// disables the filter.
func (s *SQLiteStore) RecentResources(ctx context.Context, limit int, kind string) ([]ResourceSummary, error) {
	return s.queryResources(ctx, opRecentResources, "timestamp DESC, id DESC", limit, kind)
}

// TopResources returns resources by access count, most recent first on ties.
func (s *SQLiteStore) TopResources(ctx context.Context, limit int, kind string) ([]ResourceSummary, error) {
	return s.queryResources(ctx, opTopResources, "access_count DESC, timestamp DESC", limit, kind)
}

func (s *SQLiteStore) queryResources(ctx context.Context, op, orderBy string, limit int, kind string) ([]ResourceSummary, error) {
	if err := checkLimit(limit); err != nil {
		return nil, &StoreError{Op: op, Err: err}
	}

	query := `SELECT kind, name, namespace, context, timestamp, access_count FROM recent_resources`
	args := make([]any, 0, 2)
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY ` + orderBy + ` LIMIT ?`
	args = append(args, limit)

	resources := make([]ResourceSummary, 0)
	err := s.locked(op, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				r         ResourceSummary
				namespace sql.NullString
				rctx      sql.NullString
			)
			if err := rows.Scan(&r.Kind, &r.Name, &namespace, &rctx, &r.LastAccessed, &r.AccessCount); err != nil {
				return err
			}
			r.Namespace = nullStringPtr(namespace)
			r.Context = nullStringPtr(rctx)
			resources = append(resources, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return resources, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

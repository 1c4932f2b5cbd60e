package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultBusyTimeout = 5 * time.Second
	defaultLockTimeout = 5 * time.Second
	defaultRetainRows  = 100
)

// Options configures Open.
type Options struct {
	// Path is the database file. Its directory is created if missing.
	Path string

	// Logger receives store diagnostics (default: slog.Default()).
	Logger *slog.Logger

	// Now is the store clock (default: time.Now).
	Now func() time.Time

	// BusyTimeout is applied as the SQLite busy_timeout pragma (default 5s).
	BusyTimeout time.Duration

	// LockTimeout bounds the wait for the store lock file (default 5s).
	LockTimeout time.Duration

	// NoLock skips the lock file. Only safe when the caller guarantees
	// a single process opens Path.
	NoLock bool

	// QueryCap and ResourceCap bound the retained query and resource rows.
	// Zero uses the default of 100.
	QueryCap    int
	ResourceCap int
}

// SQLiteStore implements Store on a single SQLite connection.
type SQLiteStore struct {
	mu          sync.Mutex
	db          *sql.DB
	lock        *LockFile
	path        string
	logger      *slog.Logger
	now         func() time.Time
	queryCap    int
	resourceCap int
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens the store at dbPath with default options.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return Open(context.Background(), Options{Path: dbPath})
}

// Open opens (creating if needed) the store described by opts, takes the
// store lock and applies any missing schema versions.
func Open(ctx context.Context, opts Options) (*SQLiteStore, error) {
	if opts.Path == "" {
		return nil, errors.New("database path is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = defaultBusyTimeout
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	if opts.QueryCap <= 0 {
		opts.QueryCap = defaultRetainRows
	}
	if opts.ResourceCap <= 0 {
		opts.ResourceCap = defaultRetainRows
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	var lock *LockFile
	if !opts.NoLock {
		var err error
		lock, err = AcquireLock(ctx, opts.Path, LockOptions{Timeout: opts.LockTimeout})
		if err != nil {
			return nil, err
		}
	}

	// modernc.org/sqlite uses _pragma=name(value) syntax
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)",
		opts.Path, opts.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = lock.Release()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		_ = lock.Release()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{
		db:          db,
		lock:        lock,
		path:        opts.Path,
		logger:      opts.Logger,
		now:         opts.Now,
		queryCap:    opts.QueryCap,
		resourceCap: opts.ResourceCap,
	}

	if err := store.migrate(ctx); err != nil {
		db.Close()
		_ = lock.Release()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close checkpoints the WAL, closes the connection and releases the lock.
// It is safe to call Close multiple times.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	err := s.db.Close()
	s.db = nil

	if lockErr := s.lock.Release(); err == nil {
		err = lockErr
	}
	return err
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Now returns the store clock reading.
func (s *SQLiteStore) Now() time.Time {
	return s.now()
}

// DB returns the underlying connection for tests and diagnostics.
// Callers bypass the store mutex and must not use it concurrently with the store.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// locked runs fn with the store mutex held, wrapping failures in a StoreError.
func (s *SQLiteStore) locked(op string, fn func(db *sql.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return &StoreError{Op: op, Err: ErrStoreClosed}
	}
	if err := fn(s.db); err != nil {
		return &StoreError{Op: op, Err: err}
	}
	return nil
}

// Vacuum rebuilds the database file to reclaim space after large deletes.
func (s *SQLiteStore) Vacuum(ctx context.Context) error {
	return s.locked("vacuum", func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, "VACUUM")
		return err
	})
}

// SchemaVersion returns the highest applied schema version.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.locked("schema version", func(db *sql.DB) error {
		return db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_meta`).Scan(&version)
	})
	return version, err
}

// migrate applies schema versions newer than the recorded one.
func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaMeta); err != nil {
		return fmt.Errorf("failed to create schema_meta: %w", err)
	}

	current := 0
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_meta`).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration v%d failed: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO schema_meta (version, applied_at) VALUES (?, ?)`,
			m.version, FormatTime(s.now()),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		s.logger.Info("applied schema migration", "version", m.version, "database_path", s.path)
	}

	return nil
}

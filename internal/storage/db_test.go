package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// testClock is a settable store clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T) (*SQLiteStore, *testClock) {
	t.Helper()
	return newTestStoreWith(t, Options{})
}

func newTestStoreWith(t *testing.T, opts Options) (*SQLiteStore, *testClock) {
	t.Helper()

	clock := newTestClock()
	opts.Path = filepath.Join(t.TempDir(), "test.db")
	opts.Now = clock.Now

	store, err := Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, clock
}

func TestNewSQLiteStore_CreatesDatabase(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
	if store.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", store.Path(), dbPath)
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestSQLiteStore_Migration_CreatesSchema(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	tables := []string{"schema_meta", "command_invocations", "recent_queries", "recent_resources", "command_patterns"}
	for _, table := range tables {
		if _, err := store.DB().ExecContext(context.Background(), "SELECT 1 FROM "+table+" LIMIT 1"); err != nil {
			t.Errorf("Table %s does not exist: %v", table, err)
		}
	}

	version, err := store.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if version != len(migrations) {
		t.Errorf("SchemaVersion() = %d, want %d", version, len(migrations))
	}
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := store.RecordInvocation(ctx, NewInvocation{CommandID: "open-file", Success: true}); err != nil {
		t.Fatalf("RecordInvocation() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	var metaRows int
	if err := reopened.DB().QueryRow("SELECT COUNT(*) FROM schema_meta").Scan(&metaRows); err != nil {
		t.Fatalf("count schema_meta: %v", err)
	}
	if metaRows != len(migrations) {
		t.Errorf("schema_meta rows = %d, want %d", metaRows, len(migrations))
	}

	stats, err := reopened.CommandStats(ctx, "open-file")
	if err != nil {
		t.Fatalf("CommandStats() error = %v", err)
	}
	if len(stats) != 1 || stats[0].HitCount != 1 {
		t.Errorf("CommandStats() = %+v, want one row with hit_count 1", stats)
	}
}

func TestSQLiteStore_SecondOpenBlockedByLock(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	if !IsLocked(dbPath) {
		t.Error("IsLocked() = false while the store is open")
	}
	if pid := LockHolderPID(dbPath); pid != os.Getpid() {
		t.Errorf("LockHolderPID() = %d, want %d", pid, os.Getpid())
	}

	_, err = Open(context.Background(), Options{Path: dbPath, LockTimeout: 50 * time.Millisecond})
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("second Open() error = %v, want ErrLockTimeout", err)
	}
}

func TestSQLiteStore_CloseReleasesLock(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if IsLocked(dbPath) {
		t.Error("IsLocked() = true after Close")
	}

	again, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopen after Close error = %v", err)
	}
	again.Close()
}

func TestSQLiteStore_OperationsAfterClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, _ := newTestStore(t)
	store.Close()

	err := store.RecordQuery(ctx, "pods", 1)
	if !errors.Is(err, ErrStoreClosed) {
		t.Errorf("RecordQuery() after Close error = %v, want ErrStoreClosed", err)
	}

	var se *StoreError
	if !errors.As(err, &se) || se.Op != opRecordQuery {
		t.Errorf("error %v is not a StoreError for %q", err, opRecordQuery)
	}

	if _, err := store.TopCommands(ctx, 5); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("TopCommands() after Close error = %v, want ErrStoreClosed", err)
	}
}

func TestFormatTime_FixedWidthOrdersLexically(t *testing.T) {
	t.Parallel()

	a := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b := a.Add(time.Millisecond)
	c := time.Date(2026, 1, 2, 4, 4, 5, 0, time.FixedZone("CET", 3600)) // same instant as a + 0s in UTC

	fa, fb, fc := FormatTime(a), FormatTime(b), FormatTime(c)
	if len(fa) != len(fb) || len(fa) != len(TimeLayout)-len("Z07:00")+1 {
		t.Fatalf("formatted widths differ: %q %q", fa, fb)
	}
	if !(fa < fb) {
		t.Errorf("%q should sort before %q", fa, fb)
	}
	if fa != fc {
		t.Errorf("FormatTime should normalise to UTC: %q vs %q", fa, fc)
	}

	parsed, err := ParseTime(fb)
	if err != nil {
		t.Fatalf("ParseTime() error = %v", err)
	}
	if !parsed.Equal(b) {
		t.Errorf("ParseTime() = %v, want %v", parsed, b)
	}
}

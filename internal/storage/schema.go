package storage

const schemaMeta = `
CREATE TABLE IF NOT EXISTS schema_meta (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
);
`

// migrations are additive only; existing versions are never edited.
var migrations = []struct {
	version int
	sql     string
}{
	{version: 1, sql: migrationV1},
}

// migrationV1 creates the event tables and the pattern cache.
const migrationV1 = `
CREATE TABLE IF NOT EXISTS command_invocations (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  command_id TEXT NOT NULL,
  timestamp TEXT NOT NULL,
  execution_time_ms INTEGER,
  success INTEGER NOT NULL DEFAULT 1,
  error_message TEXT,
  context TEXT
);

CREATE INDEX IF NOT EXISTS idx_command_id ON command_invocations(command_id);
CREATE INDEX IF NOT EXISTS idx_timestamp ON command_invocations(timestamp DESC);

CREATE TABLE IF NOT EXISTS recent_queries (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  query TEXT NOT NULL,
  timestamp TEXT NOT NULL,
  result_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_recent_queries_timestamp ON recent_queries(timestamp DESC);

CREATE TABLE IF NOT EXISTS recent_resources (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  kind TEXT NOT NULL,
  name TEXT NOT NULL,
  namespace TEXT,
  context TEXT,
  timestamp TEXT NOT NULL,
  access_count INTEGER NOT NULL DEFAULT 1,
  UNIQUE(kind, name, namespace, context)
);

CREATE INDEX IF NOT EXISTS idx_recent_resources_timestamp ON recent_resources(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_recent_resources_kind ON recent_resources(kind);

CREATE TABLE IF NOT EXISTS command_patterns (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  pattern_id TEXT UNIQUE NOT NULL,
  command_sequence TEXT NOT NULL,
  frequency INTEGER NOT NULL DEFAULT 1,
  confidence REAL NOT NULL,
  last_seen TEXT NOT NULL,
  avg_time_between_commands REAL
);

CREATE INDEX IF NOT EXISTS idx_patterns_confidence ON command_patterns(confidence DESC);
CREATE INDEX IF NOT EXISTS idx_patterns_last_seen ON command_patterns(last_seen DESC);
`

package store

// Schema version for migration management
const SchemaVersion = 1

// ItemsTableSQL creates the items table. Items are never hard-deleted;
// cancellation is a status transition.
const ItemsTableSQL = `
CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    list_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT,
    due_at INTEGER,
    duration_min INTEGER DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'scheduled',

    -- Remote linkage
    remote_id TEXT,
    remote_etag TEXT,
    remote_uid TEXT,
    remote_updated_at INTEGER,

    -- Sync bookkeeping
    sync_state TEXT NOT NULL DEFAULT 'dirty' CHECK(sync_state IN ('synced', 'dirty', 'conflict')),
    sync_status TEXT NOT NULL DEFAULT 'pending' CHECK(sync_status IN ('pending', 'synced', 'failed')),
    sync_attempts INTEGER DEFAULT 0,
    last_sync_error TEXT,
    last_synced_at INTEGER,

    created_at INTEGER NOT NULL,
    modified_at INTEGER NOT NULL
);
`

// SyncCursorsTableSQL creates the per-calendar cursor table. A NULL/empty
// token forces a full windowed resync on the next pull.
const SyncCursorsTableSQL = `
CREATE TABLE IF NOT EXISTS sync_cursors (
    calendar_id TEXT PRIMARY KEY,
    token TEXT,
    channel_id TEXT,
    channel_expires_at INTEGER,
    active_until INTEGER,
    last_sync_at INTEGER,
    last_sync_ok INTEGER DEFAULT 1,
    last_sync_error TEXT
);
`

// ConflictsTableSQL creates the conflicts table.
const ConflictsTableSQL = `
CREATE TABLE IF NOT EXISTS conflicts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    item_id TEXT NOT NULL,
    source TEXT NOT NULL,
    field TEXT NOT NULL,
    local_value TEXT,
    remote_value TEXT,
    remote_patch TEXT,
    status TEXT NOT NULL DEFAULT 'open' CHECK(status IN ('open', 'resolved')),
    resolution TEXT,
    detected_at INTEGER NOT NULL,
    resolved_at INTEGER,

    FOREIGN KEY(item_id) REFERENCES items(id) ON DELETE CASCADE
);
`

// OutboxTableSQL creates the outbox table. Processed entries are kept for
// audit; the partial unique index below is what coalesces duplicate pending
// mutations for the same entity.
const OutboxTableSQL = `
CREATE TABLE IF NOT EXISTS outbox (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    operation TEXT NOT NULL,
    payload TEXT,
    attempts INTEGER DEFAULT 0,
    last_error TEXT,
    next_retry_at INTEGER,
    processed_at INTEGER,
    created_at INTEGER NOT NULL
);
`

// SchemaVersionTableSQL creates the schema version table for migration tracking
const SchemaVersionTableSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`

// ItemsIndexesSQL creates indexes on items for common sync queries
const ItemsIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_items_list_id ON items(list_id);
CREATE INDEX IF NOT EXISTS idx_items_sync_state ON items(sync_state);
CREATE INDEX IF NOT EXISTS idx_items_remote_id ON items(remote_id);
CREATE INDEX IF NOT EXISTS idx_items_due_at ON items(due_at);
`

// ConflictsIndexesSQL creates indexes on conflicts
const ConflictsIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_conflicts_status ON conflicts(status);
CREATE INDEX IF NOT EXISTS idx_conflicts_item_id ON conflicts(item_id);
`

// OutboxIndexesSQL creates indexes on outbox. The unique partial index
// guarantees at most one unprocessed entry per (entity_type, entity_id,
// operation) tuple.
const OutboxIndexesSQL = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(entity_type, entity_id, operation) WHERE processed_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_outbox_created_at ON outbox(created_at);
CREATE INDEX IF NOT EXISTS idx_outbox_next_retry_at ON outbox(next_retry_at);
`

// AllTableSchemas returns all table creation statements in order
func AllTableSchemas() []string {
	return []string{
		SchemaVersionTableSQL,
		ItemsTableSQL,
		SyncCursorsTableSQL,
		ConflictsTableSQL,
		OutboxTableSQL,
	}
}

// AllIndexes returns all index creation statements
func AllIndexes() []string {
	return []string{
		ItemsIndexesSQL,
		ConflictsIndexesSQL,
		OutboxIndexesSQL,
	}
}

// PragmaStatements returns pragma statements to execute on database connection
func PragmaStatements() []string {
	return []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",   // Write-Ahead Logging for better concurrency
		"PRAGMA synchronous = NORMAL", // Balance between safety and performance
	}
}

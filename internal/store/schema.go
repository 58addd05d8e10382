package store

// schemaVersionV1 is the current (and only) schema version.
const schemaVersionV1 = 1

// schemaV1 holds run snapshots as JSON payloads plus a flattened copy of
// the interaction history for querying without unmarshalling the payload.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	run_id         TEXT PRIMARY KEY,
	paper          TEXT NOT NULL DEFAULT '',
	completed      INTEGER NOT NULL DEFAULT 0,
	awaiting_input INTEGER NOT NULL DEFAULT 0,
	state_payload  BLOB NOT NULL,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS interactions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	seq          INTEGER NOT NULL,
	trigger_name TEXT NOT NULL,
	question     TEXT NOT NULL DEFAULT '',
	response     TEXT NOT NULL DEFAULT '',
	effect       TEXT NOT NULL DEFAULT '',
	at           TEXT NOT NULL DEFAULT '',
	UNIQUE(run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_interactions_run ON interactions(run_id);
`

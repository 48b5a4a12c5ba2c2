package store

// schemaVersion is the ledger schema this build reads and writes.
const schemaVersion = 1

var schema = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS submissions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_number   INTEGER NOT NULL,
	submitted_at TEXT NOT NULL,
	attachments  INTEGER NOT NULL,
	author       TEXT,
	dry_run      INTEGER NOT NULL DEFAULT 0,
	message_id   INTEGER
);
CREATE INDEX IF NOT EXISTS idx_submissions_run ON submissions(run_number);
`

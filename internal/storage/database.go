package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS logos (
    id                  TEXT PRIMARY KEY,
    name                TEXT NOT NULL DEFAULT '',
    domain              TEXT NOT NULL UNIQUE,
    original_source_url TEXT NOT NULL DEFAULT '',
    remote_ref_id       TEXT,
    remote_ref_url      TEXT,
    remote_revoke_token TEXT,
    inline_binary       BLOB,
    format              TEXT NOT NULL,
    byte_size           INTEGER NOT NULL DEFAULT 0,
    width               INTEGER,
    height              INTEGER,
    extracted_at        DATETIME NOT NULL,
    created_at          DATETIME NOT NULL,
    updated_at          DATETIME NOT NULL,
    CHECK ((width IS NULL) = (height IS NULL))
);

CREATE TABLE IF NOT EXISTS extraction_attempts (
    id            TEXT PRIMARY KEY,
    logo_id       TEXT REFERENCES logos(id) ON DELETE CASCADE,
    attempted_url TEXT NOT NULL,
    success       BOOLEAN NOT NULL DEFAULT 0,
    error_message TEXT,
    attempted_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_logos_updated_at ON logos(updated_at);
CREATE INDEX IF NOT EXISTS idx_attempts_logo_id ON extraction_attempts(logo_id);
`

// NewDatabase opens the SQLite file at dbPath and applies the schema.
func NewDatabase(dbPath string) (*sqlx.DB, error) {
	// WAL lets readers proceed during writes; foreign keys drive the attempt
	// cascade; busy_timeout waits on lock contention instead of failing.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", dbPath)

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Open is lazy; Ping actually connects.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// SQLite performs best with a single writer connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

package models

import (
	"database/sql"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// migrateDB creates the planroom schema. All statements are idempotent so
// migration runs unconditionally at startup.
func migrateDB(db *sql.DB) error {
	sequences := []string{
		"CREATE SEQUENCE IF NOT EXISTS users_id_seq START 1",
	}

	for _, seqSQL := range sequences {
		if _, err := db.Exec(seqSQL); err != nil {
			logger.LogErr(err, "failed to create sequence", "sql", seqSQL)
			// Continue even if sequence exists
		}
	}

	// Hub users — accounts the sync layer authenticates against
	userTableSQL := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY DEFAULT nextval('users_id_seq'),
		guid VARCHAR(40) UNIQUE NOT NULL,
		username VARCHAR(64) UNIQUE NOT NULL,
		email VARCHAR(255),
		password_hash VARCHAR(128) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_login_at TIMESTAMP,
		is_active BOOLEAN DEFAULT true
	)`

	if _, err := db.Exec(userTableSQL); err != nil {
		return serr.Wrap(err, "failed to create users table")
	}

	// Remote planner documents — one row per (user, date, page), where the
	// data column is a JSON object mapping field name to field value.
	// Writing one field must never clobber its siblings; the entries layer
	// enforces that with read-merge-write under a row lock.
	entriesTableSQL := `
	CREATE TABLE IF NOT EXISTS planner_entries (
		user_guid  VARCHAR(40) NOT NULL,
		entry_date DATE NOT NULL,
		page       VARCHAR(64) NOT NULL,
		data       TEXT NOT NULL,  -- JSON object: field -> value
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_guid, entry_date, page)
	)`

	if _, err := db.Exec(entriesTableSQL); err != nil {
		return serr.Wrap(err, "failed to create planner_entries table")
	}

	// Local keyspace — the on-device side of the sync layer when a client
	// embeds this package with a DuckDB-backed local store.
	localTableSQL := `
	CREATE TABLE IF NOT EXISTS local_entries (
		entry_key  VARCHAR(255) PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	if _, err := db.Exec(localTableSQL); err != nil {
		return serr.Wrap(err, "failed to create local_entries table")
	}

	return nil
}

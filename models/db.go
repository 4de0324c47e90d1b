package models

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/rohanthewiz/serr"
)

// db is the package-level DuckDB handle: one process, one database.
var db *sql.DB

// InitDB opens the DuckDB database at the given path and runs migrations.
// The parent directory is created if missing so a fresh checkout can start
// without a setup step.
func InitDB(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return serr.Wrap(err, "failed to create data directory")
		}
	}

	var err error
	db, err = sql.Open("duckdb", path)
	if err != nil {
		return serr.Wrap(err, "failed to open database")
	}

	if err := migrateDB(db); err != nil {
		return serr.Wrap(err, "failed to migrate database")
	}

	return nil
}

// InitTestDB initializes a database for tests. Identical to InitDB but kept
// separate so test call sites read clearly and test-only pragmas have a home.
func InitTestDB(path string) error {
	return InitDB(path)
}

// CloseDB closes the database connection.
func CloseDB() {
	if db != nil {
		db.Close()
		db = nil
	}
}

// ABOUTME: Low-level SQLite handle for the relational document store
// ABOUTME: One WAL-journaled connection per file with foreign keys enforced and the schema applied
package db

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/zeebo/errs"
)

// sqliteParams is appended to every file path handed to the driver.
const sqliteParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

// OpenDatabase returns a handle on the SQLite file at path with the schema
// in place. Missing parent directories are created.
func OpenDatabase(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, Error.Wrap(err)
	}

	conn, err := sql.Open("sqlite3", path+sqliteParams)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	// NextID reads then writes the sequence row; one connection keeps that atomic.
	conn.SetMaxOpenConns(1)

	if err := InitSchema(conn); err != nil {
		return nil, Error.Wrap(errs.Combine(err, conn.Close()))
	}
	return conn, nil
}

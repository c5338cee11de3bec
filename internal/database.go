package internal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// OpenDatabase opens (creating if needed) a SQLite database for writing
func OpenDatabase(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	return openDatabase(path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
}

// OpenDatabaseReadOnly opens an existing SQLite database in read-only mode.
// mode=ro is only honored in URI form.
func OpenDatabaseReadOnly(path string) (*sql.DB, error) {
	return openDatabase("file:" + filepath.ToSlash(path) + "?mode=ro")
}

func openDatabase(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return db, nil
}

package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mradwan/autofrotz/internal/platform/optimization"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// InitSQLite opens (creating if absent) the local SQLite database backing a
// Journal and brings its schema up to date. WAL mode is turned on explicitly
// right after connecting: the rollback-journal default serializes every
// writer against every reader, which stalls a live dashboard hook reading
// rooms/items while a turn is mid-save.
func InitSQLite(dbPath string, pool *optimization.Config) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if pool == nil {
		pool = optimization.DefaultConfig()
	}
	db.SetMaxOpenConns(pool.DBMaxOpenConns)
	db.SetMaxIdleConns(pool.DBMaxIdleConns)

	return db, nil
}

func createSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

package msgrelay

import (
	"fmt"

	_ "github.com/mattn/go-sqlite3" // include sqlite3
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY,
	date TEXT NOT NULL,
	username TEXT NOT NULL,
	message TEXT NOT NULL
);
`

func sqliteDataSource(filename string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000&mode=rwc&_journal_mode=WAL&cache=shared", filename)
}

// NewSQLiteStore creates a message store in a single SQLite file.
func NewSQLiteStore(filename, table string) (*SQLxStore, error) {
	return NewSQLXConnection("sqlite3", sqliteDataSource(filename), sqliteSchema, table, 1)
}

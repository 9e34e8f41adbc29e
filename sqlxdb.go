package msgrelay

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLxStore is a message store on any database/sql driver known to sqlx.
// Each record is one row of a single table.
type SQLxStore struct {
	conn   *sqlx.DB
	insert string
}

// NewSQLXConnection opens the database, creates the table using schema
// (a format string receiving the table name) and returns the store.
func NewSQLXConnection(driverName, dataSourceName, schema, table string, maxOpenConnections int) (*SQLxStore, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	sqldb, err := sqlx.Connect(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}

	if maxOpenConnections > 0 {
		sqldb.SetMaxOpenConns(maxOpenConnections)
	}

	if _, err := sqldb.Exec(fmt.Sprintf(schema, table)); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}

	return &SQLxStore{
		conn:   sqldb,
		insert: fmt.Sprintf("INSERT INTO %s (date, username, message) VALUES (:date, :username, :message)", table),
	}, nil
}

// Insert ...
func (db *SQLxStore) Insert(ctx context.Context, msg StoredMessage) error {
	_, err := db.conn.NamedExecContext(ctx, db.insert, msg)
	return err
}

// CheckHealth pings the database.
func (db *SQLxStore) CheckHealth(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close ...
func (db *SQLxStore) Close() error {
	return db.conn.Close()
}

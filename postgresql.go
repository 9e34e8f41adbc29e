package msgrelay

import (
	"net/url"

	_ "github.com/lib/pq" // include postgresql driver
)

const postgresqlSchema = `
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	date TEXT NOT NULL,
	username TEXT NOT NULL,
	message TEXT NOT NULL
);
`

// NewPostgreSQLStore creates a message store in PostgreSQL. dsn is a
// postgres:// URL or a lib/pq key=value string.
func NewPostgreSQLStore(dsn, table string) (*SQLxStore, error) {
	return NewSQLXConnection("postgres", dsn, postgresqlSchema, table, 0)
}

// PostgreSQLDataSource builds a postgres:// URL with TLS disabled.
func PostgreSQLDataSource(server, user, password, dbname string) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(user, password),
		Host:     server,
		Path:     "/" + dbname,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

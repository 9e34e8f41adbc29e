package msgrelay

import (
	"fmt"

	_ "github.com/go-sql-driver/mysql" // include mysql driver
)

const mariadbSchema = `
CREATE TABLE IF NOT EXISTS %s (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    date VARCHAR(32) NOT NULL,
    username TEXT NOT NULL,
    message TEXT NOT NULL
);
`

// NewMariaDBStore creates a message store in MariaDB. dsn uses the
// go-sql-driver/mysql format, see MySQLDataSource.
func NewMariaDBStore(dsn, table string) (*SQLxStore, error) {
	return NewSQLXConnection("mysql", dsn, mariadbSchema, table, 0)
}

// MySQLDataSource builds a go-sql-driver/mysql data source name.
func MySQLDataSource(host string, port int, user, password, dbname string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", user, password, host, port, dbname)
}

package msgrelay

const mysqlSchema = mariadbSchema // Reuse MariaDB schema

// NewMySQLStore creates a message store in MySQL.
func NewMySQLStore(dsn, table string) (*SQLxStore, error) {
	return NewSQLXConnection("mysql", dsn, mysqlSchema, table, 0)
}

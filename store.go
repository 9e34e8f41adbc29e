package msgrelay

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrStoreClosed is returned by Insert after the store has been closed.
var ErrStoreClosed = errors.New("store closed")

// ErrUnknownStoreDriver is returned by OpenStore for an unsupported driver name.
var ErrUnknownStoreDriver = errors.New("unknown store driver")

// MessageStore is the interface to the append-only message storage.
//
// A single MessageStore is shared by every session of a Collector, so
// implementations must be safe for concurrent use.
type MessageStore interface {
	// Insert appends one record. It is called exactly once per received
	// message and never retried.
	Insert(ctx context.Context, msg StoredMessage) error

	// Close releases the underlying resources.
	Close() error
}

// StoreConfig selects and addresses a MessageStore backend.
type StoreConfig struct {
	// Driver is one of mongodb, redis, sqlite, postgres, mysql, mariadb or memory.
	Driver string

	// URI is the driver specific address: a mongodb:// URI, a redis
	// host:port, an SQLite file name or an SQL data source name.
	URI string

	// Database and Collection name where records go. SQL backends use the
	// collection as table name, Redis joins both into the list key.
	Database   string
	Collection string
}

// OpenStore connects to the backend named by cfg.Driver.
func OpenStore(ctx context.Context, cfg StoreConfig) (MessageStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "mongodb", "mongo":
		return NewMongoStore(ctx, cfg.URI, cfg.Database, cfg.Collection)
	case "redis":
		return NewRedisStore(cfg.URI, cfg.Database+":"+cfg.Collection)
	case "sqlite", "sqlite3":
		return NewSQLiteStore(cfg.URI, cfg.Collection)
	case "postgres", "postgresql":
		return NewPostgreSQLStore(cfg.URI, cfg.Collection)
	case "mysql":
		return NewMySQLStore(cfg.URI, cfg.Collection)
	case "mariadb":
		return NewMariaDBStore(cfg.URI, cfg.Collection)
	case "memory":
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStoreDriver, cfg.Driver)
}

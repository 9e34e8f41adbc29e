package msgrelay

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-redis/redis/v8"
)

// RedisStore is a message store using Redis.
// Records are JSON encoded and appended with RPUSH to a single list, so
// LRANGE returns them in arrival order.
type RedisStore struct {
	rdb *redis.Client
	key string
}

// NewRedisStore creates a store appending to the list key on the server at
// addr. addr is either host:port or a redis:// URL.
func NewRedisStore(addr, key string) (*RedisStore, error) {
	options := &redis.Options{Addr: addr}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		var err error
		options, err = redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
	}
	return NewRedisStoreWithOptions(options, key), nil
}

// NewRedisStoreWithOptions creates a store from explicit client options.
func NewRedisStoreWithOptions(options *redis.Options, key string) *RedisStore {
	return &RedisStore{
		rdb: redis.NewClient(options),
		key: key,
	}
}

// Insert ...
func (db *RedisStore) Insert(ctx context.Context, msg StoredMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return db.rdb.RPush(ctx, db.key, data).Err()
}

// Close ...
func (db *RedisStore) Close() error {
	return db.rdb.Close()
}

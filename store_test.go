package msgrelay

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis"
	"github.com/stretchr/testify/require"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		db, err := OpenStore(ctx, StoreConfig{Driver: "memory"})
		require.NoError(t, err)
		require.IsType(t, &MemoryStore{}, db)
		require.NoError(t, db.Close())
	})

	t.Run("sqlite", func(t *testing.T) {
		db, err := OpenStore(ctx, StoreConfig{
			Driver:     "SQLite",
			URI:        filepath.Join(t.TempDir(), "relay.db"),
			Collection: "users_messages",
		})
		require.NoError(t, err)
		require.IsType(t, &SQLxStore{}, db)
		require.NoError(t, db.Insert(ctx, StoredMessage{Date: "d", Username: "u", Message: "m"}))
		require.NoError(t, db.Close())
	})

	t.Run("redis", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		defer mr.Close()

		db, err := OpenStore(ctx, StoreConfig{Driver: "redis", URI: mr.Addr(), Database: "messaging", Collection: "users_messages"})
		require.NoError(t, err)
		defer db.Close()
		require.NoError(t, db.Insert(ctx, StoredMessage{Username: "alice"}))

		list, err := mr.List("messaging:users_messages")
		require.NoError(t, err)
		require.Len(t, list, 1)
	})

	t.Run("mongodb connects lazily", func(t *testing.T) {
		db, err := OpenStore(ctx, StoreConfig{
			Driver:     "mongodb",
			URI:        "mongodb://127.0.0.1:1/",
			Database:   "messaging",
			Collection: "users_messages",
		})
		require.NoError(t, err)
		require.IsType(t, &MongoStore{}, db)
		require.NoError(t, db.Close())
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := OpenStore(ctx, StoreConfig{Driver: "cassandra"})
		require.ErrorIs(t, err, ErrUnknownStoreDriver)
	})
}

package msgrelay

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_Insert(t *testing.T) {
	req := require.New(t)
	mr, err := miniredis.Run()
	req.NoError(err)
	defer mr.Close()

	db, err := NewRedisStore(mr.Addr(), "messaging:users_messages")
	req.NoError(err)
	defer db.Close()

	records := []StoredMessage{
		{Date: "2024-01-01 10:00:00.000001", Username: "alice", Message: "hello"},
		{Date: "2024-01-01 10:00:00.000002", Username: "bob", Message: "hi"},
	}
	for _, r := range records {
		req.NoError(db.Insert(context.Background(), r))
	}

	list, err := mr.List("messaging:users_messages")
	req.NoError(err)
	req.Len(list, 2)

	for i, item := range list {
		var got StoredMessage
		req.NoError(json.Unmarshal([]byte(item), &got))
		req.Equal(records[i], got)
	}
}

func TestRedisStore_ServerGone(t *testing.T) {
	req := require.New(t)
	mr, err := miniredis.Run()
	req.NoError(err)

	db := NewRedisStoreWithOptions(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}, "k")
	defer db.Close()
	mr.Close()

	req.Error(db.Insert(context.Background(), StoredMessage{Username: "alice"}))
}

func TestNewRedisStore_URL(t *testing.T) {
	db, err := NewRedisStore("redis://localhost:6379/2", "k")
	require.NoError(t, err)
	require.Equal(t, 2, db.rdb.Options().DB)
	require.NoError(t, db.Close())

	_, err = NewRedisStore("redis://localhost:6379/notanumber", "k")
	require.Error(t, err)
}

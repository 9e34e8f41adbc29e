package msgrelay

import (
	"context"
	"sync"
)

// MemoryStore keeps records in memory. It is meant for tests and local
// development; everything is lost when the process exits.
type MemoryStore struct {
	mutex    sync.Mutex
	messages []StoredMessage
	closed   bool
}

// NewMemoryStore ...
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Insert ...
func (db *MemoryStore) Insert(ctx context.Context, msg StoredMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	if db.closed {
		return ErrStoreClosed
	}
	db.messages = append(db.messages, msg)
	return nil
}

// Messages returns a copy of the records inserted so far, in insertion order.
func (db *MemoryStore) Messages() []StoredMessage {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return append([]StoredMessage(nil), db.messages...)
}

// Len returns the number of records.
func (db *MemoryStore) Len() int {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return len(db.messages)
}

// Close ...
func (db *MemoryStore) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.closed = true
	return nil
}

package msgrelay

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore inserts each record as one document of a MongoDB collection.
// The driver's client pools connections and is safe for concurrent use.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoStore connects to the MongoDB deployment at uri. The connection is
// established lazily, so an unreachable server shows up as insert errors.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return newMongoStore(client, client.Database(database).Collection(collection)), nil
}

// newMongoStore wraps an existing collection. client may be nil when the
// caller owns the connection.
func newMongoStore(client *mongo.Client, collection *mongo.Collection) *MongoStore {
	return &MongoStore{client: client, collection: collection}
}

// Insert ...
func (db *MongoStore) Insert(ctx context.Context, msg StoredMessage) error {
	_, err := db.collection.InsertOne(ctx, msg)
	return err
}

// Close disconnects the client.
func (db *MongoStore) Close() error {
	if db.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return db.client.Disconnect(ctx)
}

package notification

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ArchiveCollection is the collection lifecycle events are archived to.
const ArchiveCollection = "wallet_request_events"

// Inserter is the subset of *mongo.Collection the archive needs.
type Inserter interface {
	InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongo.InsertOneResult, error)
}

// MongoArchive stores every lifecycle event as a document for audit.
type MongoArchive struct {
	collection Inserter
}

// NewMongoArchive binds the archive to the events collection of dbName.
func NewMongoArchive(client *mongo.Client, dbName string) *MongoArchive {
	return &MongoArchive{collection: client.Database(dbName).Collection(ArchiveCollection)}
}

// NewMongoArchiveWith wraps an existing collection.
func NewMongoArchiveWith(collection Inserter) *MongoArchive {
	return &MongoArchive{collection: collection}
}

// Send inserts the message.
func (a *MongoArchive) Send(ctx context.Context, message Message) error {
	if _, err := a.collection.InsertOne(ctx, message); err != nil {
		return fmt.Errorf("archive %s: %w", message.Kind, err)
	}
	return nil
}

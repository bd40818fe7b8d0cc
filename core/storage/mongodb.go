package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const kvCollection = "kv"

// MongoKV stores each key as a document {_id: key, value: json} in the kv collection.
type MongoKV struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type kvDocument struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

// NewMongoKV connects to uri and verifies the connection with a ping.
func NewMongoKV(ctx context.Context, uri, db string) (*MongoKV, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("error pinging MongoDB: %w", err)
	}

	return &MongoKV{
		client:     client,
		collection: client.Database(db).Collection(kvCollection),
	}, nil
}

func (m *MongoKV) Get(ctx context.Context, key string) ([]byte, error) {
	var doc kvDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error finding key %s: %w", key, err)
	}
	return []byte(doc.Value), nil
}

func (m *MongoKV) Set(ctx context.Context, key string, value []byte) error {
	opts := options.Replace().SetUpsert(true)
	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": key}, kvDocument{Key: key, Value: string(value)}, opts)
	if err != nil {
		return fmt.Errorf("error writing key %s: %w", key, err)
	}
	return nil
}

func (m *MongoKV) Delete(ctx context.Context, key string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("error deleting key %s: %w", key, err)
	}
	return nil
}

// Close disconnects from the server.
func (m *MongoKV) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("error disconnecting from MongoDB: %w", err)
	}
	return nil
}

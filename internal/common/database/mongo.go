package database

import (
	"context"
	"fmt"
	"time"

	"joblog-insights/internal/common/config"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoClient wraps the MongoDB client and the analytics database handle.
type MongoClient struct {
	Client *mongo.Client
	db     *mongo.Database
}

// NewMongo creates a new MongoDB client and verifies the connection.
func NewMongo(ctx context.Context, cfg config.MongoConfig) (*MongoClient, error) {
	connectCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Timeout)*time.Millisecond)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	return &MongoClient{
		Client: client,
		db:     client.Database(cfg.Database),
	}, nil
}

// Collection returns a handle on a named collection of the analytics database.
func (c *MongoClient) Collection(name string) *mongo.Collection {
	return c.db.Collection(name)
}

// Ping tests the MongoDB connection.
func (c *MongoClient) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.Client.Ping(pingCtx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo ping failed: %w", err)
	}
	return nil
}

// Close disconnects the MongoDB client.
func (c *MongoClient) Close(ctx context.Context) error {
	if c.Client != nil {
		return c.Client.Disconnect(ctx)
	}
	return nil
}

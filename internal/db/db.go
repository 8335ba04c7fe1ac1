// Package db manages MongoDB connections and collections.
package db

import (
	"context" // Connection and ping deadlines
	"fmt"     // Error wrapping
	"time"    // Timeout durations

	"go.mongodb.org/mongo-driver/v2/bson"           // Ordered index keys
	"go.mongodb.org/mongo-driver/v2/mongo"          // MongoDB driver
	"go.mongodb.org/mongo-driver/v2/mongo/options"  // Client and index options
	"go.mongodb.org/mongo-driver/v2/mongo/readpref" // Primary read preference for pings
)

// Client wraps mongo.Client and exposes collections.
type Client struct {
	// client is the underlying MongoDB connection (safe for concurrent use)
	client *mongo.Client

	// db is the configured database (MONGODB_DATABASE)
	// The "users" and "messages" collections are reached through it
	db *mongo.Database
}

// New connects to MongoDB, pings the primary and returns a Client bound to
// the named database.
func New(ctx context.Context, mongoURI, database string) (*Client, error) {
	// Client options from the connection URI
	opts := options.Client().
		ApplyURI(mongoURI).                 // hosts, credentials, replica set
		SetConnectTimeout(10 * time.Second) // fail fast if MongoDB is unreachable

	// Connect only builds the client; Ping below is the real connection test
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping gets its own deadline under the caller's context
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		// do not leak the pool of a client we will not return
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(database), // created lazily on first write
	}, nil
}

// Database returns the bound database.
func (c *Client) Database() *mongo.Database {
	return c.db
}

// UsersCollection returns the users collection.
func (c *Client) UsersCollection() *mongo.Collection {
	// created by MongoDB on first insert
	return c.db.Collection("users")
}

// MessagesCollection returns the messages collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	// created by MongoDB on first insert
	return c.db.Collection("messages")
}

// Ping checks the primary is reachable; used by the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	// ctx bounds how long in-flight operations may take to finish
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates necessary indexes for users and messages collections.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// ===== USERS COLLECTION INDEX =====
	// Unique email: GetUserByEmail lookups and duplicate registration guard
	usersIndexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	_, err := c.UsersCollection().Indexes().CreateOne(ctx, usersIndexModel)
	if err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	// ===== MESSAGES COLLECTION INDEXES =====
	// Compound keys are bson.D so the key order is the one written here.
	messageIndexes := []mongo.IndexModel{
		{
			// Thread reads, history counts and mark-read by sender:
			// one direction of a pair by time
			Keys: bson.D{
				{Key: "sender_id", Value: 1},
				{Key: "receiver_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			// Conversation list: every message a user received, newest first,
			// with the unread flag for the unread counters
			Keys: bson.D{
				{Key: "receiver_id", Value: 1},
				{Key: "is_read", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			// Sender side of the conversation list
			Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	}

	_, err = c.MessagesCollection().Indexes().CreateMany(ctx, messageIndexes)
	if err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	return nil
}

package db

import (
	"context"
	"testing"
	"time"

	"github.com/PaulBabatuyi/wastex-messaging/internal/testhelpers"
)

// Integration tests: they use MONGODB_URI when set, otherwise a MongoDB
// container, and skip when neither is available.

func TestNewAndCreateIndexes(t *testing.T) {
	uri := testhelpers.MongoURI(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := New(ctx, uri, testhelpers.DatabaseName(t))
	if err != nil {
		t.Fatalf("failed to connect to DB: %v", err)
	}
	defer func() {
		_ = c.Database().Drop(context.Background())
		_ = c.Close(context.Background())
	}()

	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}
	// idempotent on restart
	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("second CreateIndexes failed: %v", err)
	}

	specs, err := c.MessagesCollection().Indexes().ListSpecifications(ctx)
	if err != nil {
		t.Fatalf("ListSpecifications failed: %v", err)
	}
	// _id plus the four message indexes
	if len(specs) != 5 {
		t.Fatalf("expected 5 message indexes, got %d", len(specs))
	}

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestNew_Unreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the ping timeout")
	}
	ctx := context.Background()
	_, err := New(ctx, "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200&connectTimeoutMS=200", "x")
	if err == nil {
		t.Fatal("expected error connecting to a closed port")
	}
}

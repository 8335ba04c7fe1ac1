package data

import (
	"context" // Cancellation and deadlines from the caller
	"errors"  // Telling a cancelled stream from a broken one
	"fmt"     // Wrapping change stream errors
	"time"    // Server-side message timestamps

	"github.com/PaulBabatuyi/wastex-messaging/internal/messaging" // Domain message type
	"go.mongodb.org/mongo-driver/v2/bson"                         // Filters, updates and ObjectIDs
	"go.mongodb.org/mongo-driver/v2/mongo"                        // Collection handle and change streams
	"go.mongodb.org/mongo-driver/v2/mongo/options"                // Sort and limit for finds
)

// MessagesStore provides message database operations. It implements
// messaging.MessageStore.
type MessagesStore struct {
	// coll is the "messages" collection
	coll *mongo.Collection
	// now stamps new messages; tests swap in a fixed clock
	now func() time.Time
}

// NewMessagesStore returns a MessagesStore using given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll, now: time.Now} // wall clock by default
}

// newestFirst orders by created_at then _id so equal timestamps still have a
// stable order.
var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

// between matches messages exchanged by a and b in either direction.
func between(a, b string) bson.M {
	return bson.M{
		"$or": bson.A{
			bson.M{"sender_id": a, "receiver_id": b},
			bson.M{"sender_id": b, "receiver_id": a},
		},
	}
}

// InsertMessage stores a message with a server-side id and timestamp and
// returns the stored row.
func (m *MessagesStore) InsertMessage(ctx context.Context, senderID, receiverID, content string) (messaging.Message, error) {
	doc := &Message{
		ID:         bson.NewObjectID(), // assigned here so the row is returned without a read
		SenderID:   senderID,           // current user
		ReceiverID: receiverID,         // selected counterpart
		Content:    content,            // already normalized by messaging.Service
		// BSON dates have millisecond precision; truncate so the returned
		// row equals what a later read or the change stream yields
		CreatedAt: m.now().UTC().Truncate(time.Millisecond),
		IsRead:    false, // unread until the receiver opens the thread
	}

	// The insert is also what the change stream reports to other instances
	if _, err := m.coll.InsertOne(ctx, doc); err != nil {
		return messaging.Message{}, err
	}
	return doc.toDomain(), nil
}

// MessagesForUser returns the newest messages userID sent or received.
func (m *MessagesStore) MessagesForUser(ctx context.Context, userID string, limit int64) ([]messaging.Message, error) {
	// Either side of the message; each branch has its own index
	filter := bson.M{
		"$or": bson.A{
			bson.M{"sender_id": userID},
			bson.M{"receiver_id": userID},
		},
	}
	// newest first so the cutoff drops the oldest rows
	opts := options.Find().SetSort(newestFirst).SetLimit(limit)
	return m.find(ctx, filter, opts)
}

// Thread returns recent messages between two users (ordered oldest→newest).
func (m *MessagesStore) Thread(ctx context.Context, userID, counterpartID string, limit int64) ([]messaging.Message, error) {
	// newest first so the limit keeps the most recent page
	opts := options.Find().SetSort(newestFirst).SetLimit(limit)
	msgs, err := m.find(ctx, between(userID, counterpartID), opts)
	if err != nil {
		return nil, err
	}

	// reverse into chronological order
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// CountBetween counts messages between a and b in either direction.
func (m *MessagesStore) CountBetween(ctx context.Context, a, b string) (int64, error) {
	// auto-contact only needs to know whether this is zero
	return m.coll.CountDocuments(ctx, between(a, b))
}

// MarkRead flags the given messages read in one UpdateMany. Ids that are not
// ObjectIDs are ignored.
func (m *MessagesStore) MarkRead(ctx context.Context, ids []string) error {
	// hex ids back to ObjectIDs; foreign ids cannot match anything
	oids := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := bson.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return nil // skip the round trip
	}

	// is_read: false keeps already-read rows out of the write
	_, err := m.coll.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": oids}, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	return err
}

// MarkReadFrom flags every unread message senderID sent to receiverID read in
// one UpdateMany and returns the number of modified documents.
func (m *MessagesStore) MarkReadFrom(ctx context.Context, receiverID, senderID string) (int64, error) {
	// one direction only: the receiver marks what the counterpart sent
	res, err := m.coll.UpdateMany(ctx,
		bson.M{"sender_id": senderID, "receiver_id": receiverID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// WatchInserts follows the collection's change stream and calls handle for
// every inserted message until ctx is cancelled. It requires a replica set.
func (m *MessagesStore) WatchInserts(ctx context.Context, handle func(messaging.Message)) error {
	// only inserts; updates such as mark-read are not new messages
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "operationType", Value: "insert"}}}},
	}
	stream, err := m.coll.Watch(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("open change stream: %w", err)
	}
	// ctx may already be cancelled when we get here
	defer stream.Close(context.Background())

	// Next blocks until an event arrives or ctx is done
	for stream.Next(ctx) {
		var event struct {
			FullDocument Message `bson:"fullDocument"`
		}
		if err := stream.Decode(&event); err != nil {
			return fmt.Errorf("decode change event: %w", err)
		}
		handle(event.FullDocument.toDomain())
	}

	// cancellation is the normal way out, not an error
	if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return fmt.Errorf("change stream: %w", err)
	}
	return nil
}

func (m *MessagesStore) find(ctx context.Context, filter any, opts *options.FindOptionsBuilder) ([]messaging.Message, error) {
	cursor, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx) // release the server cursor

	// All drains the cursor into the slice
	var docs []Message
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	// map documents to domain messages
	out := make([]messaging.Message, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, nil
}

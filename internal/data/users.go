// Package data provides DB models and stores.
package data

import (
	"context" // Cancellation and deadlines from the calling RPC
	"errors"  // Sentinel matching for driver errors
	"fmt"     // Wrapping store errors with the id involved
	"regexp"  // QuoteMeta for literal search patterns
	"time"    // Created/updated timestamps

	"github.com/PaulBabatuyi/wastex-messaging/internal/messaging" // Domain profile type and ErrNotFound
	"github.com/PaulBabatuyi/wastex-messaging/internal/normalize" // Canonical email form
	"go.mongodb.org/mongo-driver/v2/bson"                         // Filters, ObjectIDs and regexes
	"go.mongodb.org/mongo-driver/v2/mongo"                        // Collection handle and driver errors
	"go.mongodb.org/mongo-driver/v2/mongo/options"                // Projections, sort and limit
)

// UsersStore performs user DB operations. It implements
// messaging.ProfileStore.
type UsersStore struct {
	// coll is the "users" collection, injected by NewUsersStore
	// Every method below reads or writes through it
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll} // collection handle is safe to share
}

// profileProjection keeps password hashes out of profile reads.
var profileProjection = bson.D{{Key: "password", Value: 0}}

// CreateUser inserts a new user document with hashed password.
func (u *UsersStore) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	// One timestamp for both fields so a fresh user has CreatedAt == UpdatedAt
	now := time.Now().UTC()
	user := &User{
		Email:       normalize.Email(in.Email), // lookups use the same form
		Password:    in.Password,               // already hashed by auth.HashPassword()
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		CompanyName: in.CompanyName,
		Role:        in.Role, // validated by accounts before it gets here
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// InsertOne fails with a duplicate key error when the email is taken
	result, err := u.coll.InsertOne(ctx, user)
	if err != nil {
		// unique email index from db.CreateIndexes
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrUserExists
		}
		// connection or server errors go up unchanged
		return nil, err
	}

	// MongoDB generates _id; it becomes the user id in tokens and messages
	user.ID = result.InsertedID.(bson.ObjectID)
	return user, nil
}

// GetUserByEmail finds a user by email.
func (u *UsersStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	// Decode target; the password hash is loaded here for Login
	var user User
	err := u.coll.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&user)
	if err != nil {
		// no match is a domain error, not a driver one
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByID finds a user by hex ObjectID.
func (u *UsersStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	// an id that is not an ObjectID cannot name a user
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrUserNotFound
	}

	var user User
	// projection drops the password hash
	err = u.coll.FindOne(ctx, bson.M{"_id": oid}, options.FindOne().SetProjection(profileProjection)).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UserExists checks if a user exists by email.
func (u *UsersStore) UserExists(ctx context.Context, email string) (bool, error) {
	// CountDocuments on the unique index is at most 1
	count, err := u.coll.CountDocuments(ctx, bson.M{"email": normalize.Email(email)})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ProfileByID implements messaging.ProfileStore.
func (u *UsersStore) ProfileByID(ctx context.Context, id string) (messaging.UserProfile, error) {
	user, err := u.GetUserByID(ctx, id)
	if err != nil {
		// translate to the error the messaging core checks for
		if errors.Is(err, ErrUserNotFound) {
			return messaging.UserProfile{}, fmt.Errorf("user %s: %w", id, messaging.ErrNotFound)
		}
		return messaging.UserProfile{}, err
	}
	return user.Profile(), nil
}

// ProfilesByIDs resolves a batch of ids with a single $in query. Ids that are
// not valid ObjectIDs or do not exist are absent from the result.
func (u *UsersStore) ProfilesByIDs(ctx context.Context, ids []string) (map[string]messaging.UserProfile, error) {
	// Convert hex ids, skipping anything that is not an ObjectID
	oids := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := bson.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	out := make(map[string]messaging.UserProfile, len(oids))
	if len(oids) == 0 {
		return out, nil // nothing to query
	}

	// One round trip for the whole conversation list
	cursor, err := u.coll.Find(ctx,
		bson.M{"_id": bson.M{"$in": oids}},
		options.Find().SetProjection(profileProjection),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx) // release the server cursor

	// All drains the cursor into the slice
	var users []User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	// key by hex id, the form messages carry
	for i := range users {
		p := users[i].Profile()
		out[p.ID] = p
	}
	return out, nil
}

// SearchProfiles does a case-insensitive substring match on first name, last
// name and company name. The query is matched literally.
func (u *UsersStore) SearchProfiles(ctx context.Context, query, excludeID string, limit int64) ([]messaging.UserProfile, error) {
	// QuoteMeta so "(recycling)" matches the parentheses, not a group
	pattern := bson.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{
		"$or": bson.A{
			bson.M{"first_name": pattern},
			bson.M{"last_name": pattern},
			bson.M{"company_name": pattern},
		},
	}
	// the searching user is never a result
	if oid, err := bson.ObjectIDFromHex(excludeID); err == nil {
		filter["_id"] = bson.M{"$ne": oid}
	}

	// Stable order so the capped result does not shuffle between calls
	opts := options.Find().
		SetProjection(profileProjection).
		SetSort(bson.D{{Key: "company_name", Value: 1}, {Key: "first_name", Value: 1}}).
		SetLimit(limit)

	cursor, err := u.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	// map documents to domain profiles
	out := make([]messaging.UserProfile, 0, len(users))
	for i := range users {
		out = append(out, users[i].Profile())
	}
	return out, nil
}

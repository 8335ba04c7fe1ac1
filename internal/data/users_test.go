package data

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PaulBabatuyi/wastex-messaging/internal/db"
	"github.com/PaulBabatuyi/wastex-messaging/internal/messaging"
	"github.com/PaulBabatuyi/wastex-messaging/internal/testhelpers"
)

// setupDB connects to a fresh database with indexes in place. Skips when no
// MongoDB is available.
func setupDB(t *testing.T) *db.Client {
	t.Helper()
	uri := testhelpers.MongoURI(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := db.New(ctx, uri, testhelpers.DatabaseName(t))
	if err != nil {
		t.Fatalf("db.New failed: %v", err)
	}
	if err := c.CreateIndexes(ctx); err != nil {
		t.Fatalf("CreateIndexes failed: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Database().Drop(context.Background())
		_ = c.Close(context.Background())
	})
	return c
}

func mustCreate(t *testing.T, users *UsersStore, in NewUser) *User {
	t.Helper()
	u, err := users.CreateUser(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", in.Email, err)
	}
	return u
}

func TestUsersCreateAndGet(t *testing.T) {
	c := setupDB(t)
	users := NewUsersStore(c.UsersCollection())
	ctx := context.Background()

	user := mustCreate(t, users, NewUser{
		Email:       "  Seller@Example.COM ",
		Password:    "hashed-password",
		CompanyName: "Scrap Co",
		Role:        messaging.RoleProducer,
	})
	if user.Email != "seller@example.com" {
		t.Fatalf("expected normalized email, got %s", user.Email)
	}

	ok, err := users.UserExists(ctx, "SELLER@example.com")
	if err != nil || !ok {
		t.Fatalf("UserExists failed: ok=%v err=%v", ok, err)
	}

	u2, err := users.GetUserByEmail(ctx, "seller@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if u2.Password != "hashed-password" || u2.Role != messaging.RoleProducer {
		t.Fatalf("unexpected user: %+v", u2)
	}

	u3, err := users.GetUserByID(ctx, user.ID.Hex())
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if u3.Password != "" {
		t.Fatal("GetUserByID must not load the password hash")
	}

	if _, err := users.CreateUser(ctx, NewUser{Email: "seller@example.com", Password: "x"}); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if _, err := users.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := users.GetUserByID(ctx, "not-hex"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for bad id, got %v", err)
	}
}

func TestUsersProfiles(t *testing.T) {
	c := setupDB(t)
	users := NewUsersStore(c.UsersCollection())
	ctx := context.Background()

	a := mustCreate(t, users, NewUser{Email: "a@example.com", Password: "x", FirstName: "Ann", LastName: "Lee", Role: messaging.RoleConsumer})
	b := mustCreate(t, users, NewUser{Email: "b@example.com", Password: "x", CompanyName: "Metal (Recycling) Ltd", Role: messaging.RoleProducer})

	p, err := users.ProfileByID(ctx, b.ID.Hex())
	if err != nil {
		t.Fatalf("ProfileByID failed: %v", err)
	}
	if p.DisplayName() != "Metal (Recycling) Ltd" {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if _, err := users.ProfileByID(ctx, "65f0c0ffee0000000000abcd"); !errors.Is(err, messaging.ErrNotFound) {
		t.Fatalf("expected messaging.ErrNotFound, got %v", err)
	}

	byID, err := users.ProfilesByIDs(ctx, []string{a.ID.Hex(), b.ID.Hex(), "65f0c0ffee0000000000abcd", "bad"})
	if err != nil {
		t.Fatalf("ProfilesByIDs failed: %v", err)
	}
	if len(byID) != 2 || byID[a.ID.Hex()].FirstName != "Ann" {
		t.Fatalf("unexpected batch: %+v", byID)
	}

	// regex metacharacters are literal
	res, err := users.SearchProfiles(ctx, "(recycling)", a.ID.Hex(), 5)
	if err != nil {
		t.Fatalf("SearchProfiles failed: %v", err)
	}
	if len(res) != 1 || res[0].ID != b.ID.Hex() {
		t.Fatalf("unexpected search result: %+v", res)
	}

	res, err = users.SearchProfiles(ctx, "LEE", "", 5)
	if err != nil {
		t.Fatalf("SearchProfiles failed: %v", err)
	}
	if len(res) != 1 || res[0].ID != a.ID.Hex() {
		t.Fatalf("case-insensitive search failed: %+v", res)
	}

	res, err = users.SearchProfiles(ctx, "ann", a.ID.Hex(), 5)
	if err != nil {
		t.Fatalf("SearchProfiles failed: %v", err)
	}
	if len(res) != 0 {
		t.Fatalf("current user should be excluded: %+v", res)
	}
}

package data

import (
	"errors" // Store sentinel errors
	"time"   // Document timestamps

	"github.com/PaulBabatuyi/wastex-messaging/internal/messaging" // Domain types the documents map to
	"go.mongodb.org/mongo-driver/v2/bson"                         // ObjectID
)

// Store errors.
var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

// User maps to users collection (profile, password hash, timestamps)
type User struct {
	ID          bson.ObjectID  `bson:"_id,omitempty"`
	Email       string         `bson:"email"`    // normalized, unique index
	Password    string         `bson:"password"` // bcrypt hash, projected out of profile reads
	FirstName   string         `bson:"first_name,omitempty"`
	LastName    string         `bson:"last_name,omitempty"`
	CompanyName string         `bson:"company_name,omitempty"`
	Role        messaging.Role `bson:"role"`
	CreatedAt   time.Time      `bson:"created_at"`
	UpdatedAt   time.Time      `bson:"updated_at"`
}

// Profile is the public part of the user.
func (u *User) Profile() messaging.UserProfile {
	return messaging.UserProfile{
		ID:          u.ID.Hex(),
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		CompanyName: u.CompanyName,
		Role:        u.Role,
	}
}

// NewUser is the input to CreateUser. Password is already hashed.
type NewUser struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	CompanyName string
	Role        messaging.Role
}

// Message maps to messages collection. Sender and receiver are user ids as
// hex strings.
type Message struct {
	ID         bson.ObjectID `bson:"_id"` // set by InsertMessage, never by MongoDB
	SenderID   string        `bson:"sender_id"`
	ReceiverID string        `bson:"receiver_id"`
	Content    string        `bson:"content"`
	CreatedAt  time.Time     `bson:"created_at"`
	IsRead     bool          `bson:"is_read"`
}

// toDomain converts a stored document; CreatedAt comes back from the driver in
// local time.
func (m *Message) toDomain() messaging.Message {
	return messaging.Message{
		ID:         m.ID.Hex(),
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt.UTC(),
		IsRead:     m.IsRead,
	}
}

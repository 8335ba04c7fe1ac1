package rpc

import (
	"github.com/PaulBabatuyi/wastex-messaging/internal/messaging"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Role        string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token     string                 `json:"token"`
	UserID    string                 `json:"user_id"`
	ExpiresAt *timestamppb.Timestamp `json:"expires_at"`
}

type Profile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Role        string `json:"role,omitempty"`
	DisplayName string `json:"display_name"`
}

type ChatMessage struct {
	ID         string                 `json:"id"`
	SenderID   string                 `json:"sender_id"`
	ReceiverID string                 `json:"receiver_id"`
	Content    string                 `json:"content"`
	CreatedAt  *timestamppb.Timestamp `json:"created_at"`
	IsRead     bool                   `json:"is_read"`
}

type ListConversationsRequest struct{}

type ConversationSummary struct {
	Counterpart *Profile     `json:"counterpart"`
	LastMessage *ChatMessage `json:"last_message,omitempty"`
	UnreadCount int32        `json:"unread_count"`
}

type GetThreadRequest struct {
	CounterpartID string `json:"counterpart_id"`
}

type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id"`
	Content    string `json:"content"`
}

type SearchUsersRequest struct {
	Query string `json:"query"`
}

type SearchUsersResponse struct {
	Users []*Profile `json:"users"`
}

type ContactSellerRequest struct {
	SellerID    string `json:"seller_id"`
	ProductName string `json:"product_name,omitempty"`
}

type ContactSellerResponse struct {
	Seller *Profile     `json:"seller"`
	Sent   *ChatMessage `json:"sent,omitempty"`
	State  string       `json:"state"`
}

type SubscribeRequest struct{}

// FromMessage converts a domain message.
func FromMessage(m messaging.Message) *ChatMessage {
	return &ChatMessage{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		CreatedAt:  timestamppb.New(m.CreatedAt),
		IsRead:     m.IsRead,
	}
}

// Message converts back to the domain type.
func (m *ChatMessage) Message() messaging.Message {
	out := messaging.Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Content:    m.Content,
		IsRead:     m.IsRead,
	}
	if m.CreatedAt != nil {
		out.CreatedAt = m.CreatedAt.AsTime()
	}
	return out
}

// FromProfile converts a domain profile.
func FromProfile(p messaging.UserProfile) *Profile {
	return &Profile{
		ID:          p.ID,
		Email:       p.Email,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		CompanyName: p.CompanyName,
		Role:        string(p.Role),
		DisplayName: p.DisplayName(),
	}
}

// FromConversation converts a derived conversation.
func FromConversation(c messaging.Conversation) *ConversationSummary {
	out := &ConversationSummary{
		Counterpart: FromProfile(c.Counterpart),
		UnreadCount: int32(c.UnreadCount),
	}
	if c.LastMessage != nil {
		out.LastMessage = FromMessage(*c.LastMessage)
	}
	return out
}

// GetEmail lets rate limiting key auth calls by account.
func (r *RegisterRequest) GetEmail() string { return r.Email }

func (r *LoginRequest) GetEmail() string { return r.Email }

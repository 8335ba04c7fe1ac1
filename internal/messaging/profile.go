// Package messaging holds the marketplace messaging core: conversation
// aggregation, the dedup merge policy for conversation lists, realtime merge of
// inserted messages into an open thread, and the deep-link auto-contact flow.
//
// The package depends only on the ports declared in ports.go; MongoDB, Redis
// and the realtime hub are wired in from the outside.
package messaging

import (
	"fmt"
	"strings"
)

// Role is the marketplace account type.
type Role string

const (
	RoleProducer Role = "producer"
	RoleConsumer Role = "consumer"
)

// Valid reports whether r is one of the known account types.
func (r Role) Valid() bool {
	return r == RoleProducer || r == RoleConsumer
}

// UnknownUserEmail is the email shown for a counterpart whose profile could not
// be loaded.
const UnknownUserEmail = "Unknown User"

// UserProfile is the public part of a user record.
type UserProfile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Role        Role   `json:"role,omitempty"`
}

// DisplayName resolves the name shown for a user: company name, then first and
// last name, then the local part of the email address.
func (p UserProfile) DisplayName() string {
	if p.CompanyName != "" {
		return p.CompanyName
	}
	if p.FirstName != "" || p.LastName != "" {
		return strings.TrimSpace(p.FirstName + " " + p.LastName)
	}
	local, _, _ := strings.Cut(p.Email, "@")
	return local
}

// Initial is the upper-cased first letter of the display name, used for avatars.
func (p UserProfile) Initial() string {
	name := p.DisplayName()
	for _, r := range name {
		return strings.ToUpper(string(r))
	}
	return "?"
}

// PlaceholderProfile stands in for a counterpart whose profile lookup failed.
func PlaceholderProfile(id string) UserProfile {
	return UserProfile{ID: id, Email: UnknownUserEmail}
}

// fallbackIntroName is used in the introductory message when the sender's own
// profile cannot be read.
const fallbackIntroName = "a consumer"

// IntroMessage builds the first message sent on behalf of a buyer who arrived
// from a product's contact link.
func IntroMessage(senderName, productName string) string {
	if strings.TrimSpace(senderName) == "" {
		senderName = fallbackIntroName
	}
	return fmt.Sprintf("Hi, I'm %s and I'm interested in %s.", senderName, productName)
}

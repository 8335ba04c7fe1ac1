package gateway

import (
	"net/http"
	"time"

	"github.com/PaulBabatuyi/wastex-messaging/internal/accounts"
	"github.com/PaulBabatuyi/wastex-messaging/internal/messaging"
	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	CompanyName string `json:"company_name"`
	Role        string `json:"role" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type sendRequest struct {
	Content string `json:"content"`
}

// profileView adds the resolved display name and avatar initial to a profile.
type profileView struct {
	messaging.UserProfile
	DisplayName string `json:"display_name"`
	Initial     string `json:"initial"`
}

func newProfileView(p messaging.UserProfile) profileView {
	return profileView{UserProfile: p, DisplayName: p.DisplayName(), Initial: p.Initial()}
}

func newProfileViews(ps []messaging.UserProfile) []profileView {
	out := make([]profileView, 0, len(ps))
	for _, p := range ps {
		out = append(out, newProfileView(p))
	}
	return out
}

type conversationView struct {
	Counterpart profileView        `json:"counterpart"`
	LastMessage *messaging.Message `json:"last_message"`
	UnreadCount int                `json:"unread_count"`
}

func newConversationViews(convs []messaging.Conversation) []conversationView {
	out := make([]conversationView, 0, len(convs))
	for _, c := range convs {
		out = append(out, conversationView{
			Counterpart: newProfileView(c.Counterpart),
			LastMessage: c.LastMessage,
			UnreadCount: c.UnreadCount,
		})
	}
	return out
}

type contactView struct {
	State  string             `json:"state"`
	Seller *profileView       `json:"seller,omitempty"`
	Sent   *messaging.Message `json:"sent,omitempty"`
}

func newContactView(o messaging.ContactOutcome) contactView {
	v := contactView{State: o.State.String(), Sent: o.Sent}
	if o.Target != nil {
		p := newProfileView(*o.Target)
		v.Seller = &p
	}
	return v
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()

	tok, err := s.accounts.Register(ctx, accounts.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CompanyName: req.CompanyName,
		Role:        messaging.Role(req.Role),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tokenResponse(tok))
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()

	tok, err := s.accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse(tok))
}

func (s *Server) listConversations(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	convs, err := s.svc.Conversations(ctx, currentUserID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newConversationViews(convs)})
}

// getThread returns the thread with :userId and marks the caller's unread
// messages in it read.
func (s *Server) getThread(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	msgs, err := s.svc.OpenThread(ctx, currentUserID(c), c.Param("userId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if msgs == nil {
		msgs = []messaging.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"data": msgs})
}

// markRead marks every unread message from :userId to the caller read.
func (s *Server) markRead(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	n, err := s.svc.MarkRead(ctx, currentUserID(c), c.Param("userId"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

func (s *Server) sendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()

	msg, err := s.svc.Send(ctx, currentUserID(c), c.Param("userId"), req.Content)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (s *Server) searchUsers(c *gin.Context) {
	ctx, cancel := s.requestContext(c)
	defer cancel()

	found, err := s.svc.Search(ctx, currentUserID(c), c.Query("q"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newProfileViews(found)})
}

// contactSeller runs a one-shot auto-contact for the caller. Repeated calls
// for the same seller are suppressed by the history check and the attempt
// flag.
func (s *Server) contactSeller(c *gin.Context) {
	var link messaging.DeepLink
	if err := c.ShouldBindJSON(&link); err != nil || link.TargetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seller_id is required"})
		return
	}
	ctx, cancel := s.requestContext(c)
	defer cancel()

	out, err := s.svc.NewAutoContact().Run(ctx, currentUserID(c), link, nil)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newContactView(out))
}

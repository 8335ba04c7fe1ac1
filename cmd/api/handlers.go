package main

import (
	"context"
	"errors"

	"github.com/PaulBabatuyi/wastex-messaging/internal/accounts"
	"github.com/PaulBabatuyi/wastex-messaging/internal/auth"
	"github.com/PaulBabatuyi/wastex-messaging/internal/data"
	"github.com/PaulBabatuyi/wastex-messaging/internal/messaging"
	"github.com/PaulBabatuyi/wastex-messaging/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// toStatus maps service errors to gRPC status codes.
func (s *Server) toStatus(err error, op string) error {
	switch {
	case errors.Is(err, messaging.ErrNoCurrentUser):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, accounts.ErrInvalidCredentials):
		return status.Error(codes.PermissionDenied, "invalid credentials")
	case errors.Is(err, messaging.ErrEmptyMessage),
		errors.Is(err, messaging.ErrMissingRecipient),
		errors.Is(err, accounts.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, messaging.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, data.ErrUserExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	s.log.Error().Err(err).Str("op", op).Msg("request failed")
	return status.Errorf(codes.Internal, "failed to %s", op)
}

// userID returns the authenticated caller (injected by the interceptor).
func userID(ctx context.Context) (string, error) {
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return "", status.Errorf(codes.Unauthenticated, "missing auth claims")
	}
	return claims.UserID, nil
}

func authResponse(t accounts.Token) *rpc.AuthResponse {
	return &rpc.AuthResponse{
		Token:     t.Token,
		UserID:    t.UserID,
		ExpiresAt: timestamppb.New(t.ExpiresAt),
	}
}

// Register handles user registration: hashes password, stores user, returns JWT token
func (s *Server) Register(ctx context.Context, req *rpc.RegisterRequest) (*rpc.AuthResponse, error) {
	tok, err := s.accounts.Register(ctx, accounts.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CompanyName: req.CompanyName,
		Role:        messaging.Role(req.Role),
	})
	if err != nil {
		return nil, s.toStatus(err, "create user")
	}
	return authResponse(tok), nil
}

// Login authenticates a user and returns a JWT token
func (s *Server) Login(ctx context.Context, req *rpc.LoginRequest) (*rpc.AuthResponse, error) {
	tok, err := s.accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, s.toStatus(err, "log in")
	}
	return authResponse(tok), nil
}

// ListConversations streams the caller's conversations, most recent first.
func (s *Server) ListConversations(_ *rpc.ListConversationsRequest, stream grpc.ServerStreamingServer[rpc.ConversationSummary]) error {
	uid, err := userID(stream.Context())
	if err != nil {
		return err
	}
	convs, err := s.svc.Conversations(stream.Context(), uid)
	if err != nil {
		return s.toStatus(err, "list conversations")
	}
	for _, c := range convs {
		if err := stream.Send(rpc.FromConversation(c)); err != nil {
			return status.Errorf(codes.Internal, "failed to send conversation: %v", err)
		}
	}
	return nil
}

// GetThread streams the thread with the requested counterpart, oldest first,
// after marking the counterpart's messages read.
func (s *Server) GetThread(req *rpc.GetThreadRequest, stream grpc.ServerStreamingServer[rpc.ChatMessage]) error {
	uid, err := userID(stream.Context())
	if err != nil {
		return err
	}
	msgs, err := s.svc.OpenThread(stream.Context(), uid, req.CounterpartID)
	if err != nil {
		return s.toStatus(err, "load thread")
	}
	for _, m := range msgs {
		if err := stream.Send(rpc.FromMessage(m)); err != nil {
			return status.Errorf(codes.Internal, "failed to send message: %v", err)
		}
	}
	return nil
}

// SendMessage stores a message and returns the persisted row. Delivery to
// connected clients goes through the realtime feed.
func (s *Server) SendMessage(ctx context.Context, req *rpc.SendMessageRequest) (*rpc.ChatMessage, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	msg, err := s.svc.Send(ctx, uid, req.ReceiverID, req.Content)
	if err != nil {
		return nil, s.toStatus(err, "send message")
	}
	return rpc.FromMessage(msg), nil
}

func (s *Server) SearchUsers(ctx context.Context, req *rpc.SearchUsersRequest) (*rpc.SearchUsersResponse, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	found, err := s.svc.Search(ctx, uid, req.Query)
	if err != nil {
		return nil, s.toStatus(err, "search users")
	}
	out := &rpc.SearchUsersResponse{Users: make([]*rpc.Profile, 0, len(found))}
	for _, p := range found {
		out.Users = append(out.Users, rpc.FromProfile(p))
	}
	return out, nil
}

// ContactSeller runs the auto-contact flow for the caller and the seller.
func (s *Server) ContactSeller(ctx context.Context, req *rpc.ContactSellerRequest) (*rpc.ContactSellerResponse, error) {
	uid, err := userID(ctx)
	if err != nil {
		return nil, err
	}
	if req.SellerID == "" {
		return nil, status.Error(codes.InvalidArgument, "seller_id is required")
	}
	out, err := s.svc.NewAutoContact().Run(ctx, uid, messaging.DeepLink{
		TargetID:    req.SellerID,
		ProductName: req.ProductName,
	}, nil)
	if err != nil {
		return nil, s.toStatus(err, "contact seller")
	}

	resp := &rpc.ContactSellerResponse{State: out.State.String()}
	if out.Target != nil {
		resp.Seller = rpc.FromProfile(*out.Target)
	}
	if out.Sent != nil {
		resp.Sent = rpc.FromMessage(*out.Sent)
	}
	return resp, nil
}

// Subscribe streams every message the caller sends or receives until the
// client goes away.
func (s *Server) Subscribe(_ *rpc.SubscribeRequest, stream grpc.ServerStreamingServer[rpc.ChatMessage]) error {
	uid, err := userID(stream.Context())
	if err != nil {
		return err
	}
	if s.feed == nil {
		return status.Error(codes.Unavailable, "realtime delivery is disabled")
	}

	msgs, unsubscribe := s.feed.Subscribe(uid)
	defer unsubscribe()
	// lets clients wait for the subscription before acting
	if err := stream.SendHeader(metadata.MD{}); err != nil {
		return err
	}

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				// the hub drops subscribers that fall behind
				return status.Error(codes.ResourceExhausted, "subscription dropped, resubscribe and reload")
			}
			if err := stream.Send(rpc.FromMessage(m)); err != nil {
				return status.Errorf(codes.Internal, "failed to send message: %v", err)
			}
		}
	}
}

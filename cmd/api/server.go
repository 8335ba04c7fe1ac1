package main

import (
	"github.com/PaulBabatuyi/wastex-messaging/internal/accounts"
	"github.com/PaulBabatuyi/wastex-messaging/internal/messaging"
	"github.com/PaulBabatuyi/wastex-messaging/internal/rpc"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
)

// Server implements the messaging service over the messaging core and the
// account service.
type Server struct {
	rpc.UnimplementedMessagingServiceServer

	svc      *messaging.Service
	accounts *accounts.Service
	feed     messaging.Feed
	log      zerolog.Logger
}

// newServer returns a ready-to-use Server. feed backs Subscribe.
func newServer(svc *messaging.Service, accts *accounts.Service, feed messaging.Feed, log zerolog.Logger) *Server {
	return &Server{svc: svc, accounts: accts, feed: feed, log: log.With().Str("component", "grpc").Logger()}
}

// registerService registers the MessagingService on the given gRPC server.
func registerService(s *grpc.Server, srv *Server) {
	rpc.RegisterMessagingServiceServer(s, srv)
}

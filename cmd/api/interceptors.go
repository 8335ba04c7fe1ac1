package main

import (
	"context"

	"github.com/PaulBabatuyi/wastex-messaging/internal/auth"
	"github.com/PaulBabatuyi/wastex-messaging/internal/rpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// publicMethods don't require authentication.
var publicMethods = map[string]bool{
	rpc.RegisterMethod: true,
	rpc.LoginMethod:    true,
}

// claimsFromMetadata verifies the bearer token in the "authorization"
// metadata.
func claimsFromMetadata(ctx context.Context, j *auth.JWTManager) (*auth.Claims, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Errorf(codes.Unauthenticated, "missing metadata")
	}
	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		return nil, status.Errorf(codes.Unauthenticated, "missing authorization header")
	}

	token, err := auth.BearerToken(authHeaders[0])
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "invalid token")
	}
	claims, err := j.VerifyToken(token)
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "unauthenticated: %v", err)
	}
	return claims, nil
}

// authUnaryInterceptor returns a UnaryServerInterceptor that enforces JWT
// authentication for all methods except Register and Login.
func authUnaryInterceptor(j *auth.JWTManager) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		claims, err := claimsFromMetadata(ctx, j)
		if err != nil {
			return nil, err
		}
		return handler(auth.WithClaims(ctx, claims), req)
	}
}

// authStreamInterceptor is the stream equivalent of authUnaryInterceptor.
func authStreamInterceptor(j *auth.JWTManager) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if publicMethods[info.FullMethod] {
			return handler(srv, ss)
		}
		claims, err := claimsFromMetadata(ss.Context(), j)
		if err != nil {
			return err
		}
		wrapped := grpcmiddlewareServerStream{ServerStream: ss, ctx: auth.WithClaims(ss.Context(), claims)}
		return handler(srv, wrapped)
	}
}

// grpcmiddlewareServerStream wraps grpc.ServerStream to override Context()
type grpcmiddlewareServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context (with claims)
func (g grpcmiddlewareServerStream) Context() context.Context { return g.ctx }

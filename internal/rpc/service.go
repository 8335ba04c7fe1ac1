package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "wastex.messaging.v1.MessagingService"

// Full method names, as seen by interceptors.
const (
	RegisterMethod          = "/" + ServiceName + "/Register"
	LoginMethod             = "/" + ServiceName + "/Login"
	ListConversationsMethod = "/" + ServiceName + "/ListConversations"
	GetThreadMethod         = "/" + ServiceName + "/GetThread"
	SendMessageMethod       = "/" + ServiceName + "/SendMessage"
	SearchUsersMethod       = "/" + ServiceName + "/SearchUsers"
	ContactSellerMethod     = "/" + ServiceName + "/ContactSeller"
	SubscribeMethod         = "/" + ServiceName + "/Subscribe"
)

// MessagingServiceServer is the server API for MessagingService.
type MessagingServiceServer interface {
	Register(context.Context, *RegisterRequest) (*AuthResponse, error)
	Login(context.Context, *LoginRequest) (*AuthResponse, error)
	// ListConversations streams the caller's conversations, most recent first.
	ListConversations(*ListConversationsRequest, grpc.ServerStreamingServer[ConversationSummary]) error
	// GetThread streams a thread oldest first and marks the caller's unread
	// messages in it read.
	GetThread(*GetThreadRequest, grpc.ServerStreamingServer[ChatMessage]) error
	SendMessage(context.Context, *SendMessageRequest) (*ChatMessage, error)
	SearchUsers(context.Context, *SearchUsersRequest) (*SearchUsersResponse, error)
	ContactSeller(context.Context, *ContactSellerRequest) (*ContactSellerResponse, error)
	// Subscribe streams every new message the caller sends or receives.
	Subscribe(*SubscribeRequest, grpc.ServerStreamingServer[ChatMessage]) error
}

// UnimplementedMessagingServiceServer can be embedded for forward
// compatibility.
type UnimplementedMessagingServiceServer struct{}

func (UnimplementedMessagingServiceServer) Register(context.Context, *RegisterRequest) (*AuthResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Register not implemented")
}
func (UnimplementedMessagingServiceServer) Login(context.Context, *LoginRequest) (*AuthResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedMessagingServiceServer) ListConversations(*ListConversationsRequest, grpc.ServerStreamingServer[ConversationSummary]) error {
	return status.Error(codes.Unimplemented, "method ListConversations not implemented")
}
func (UnimplementedMessagingServiceServer) GetThread(*GetThreadRequest, grpc.ServerStreamingServer[ChatMessage]) error {
	return status.Error(codes.Unimplemented, "method GetThread not implemented")
}
func (UnimplementedMessagingServiceServer) SendMessage(context.Context, *SendMessageRequest) (*ChatMessage, error) {
	return nil, status.Error(codes.Unimplemented, "method SendMessage not implemented")
}
func (UnimplementedMessagingServiceServer) SearchUsers(context.Context, *SearchUsersRequest) (*SearchUsersResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SearchUsers not implemented")
}
func (UnimplementedMessagingServiceServer) ContactSeller(context.Context, *ContactSellerRequest) (*ContactSellerResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ContactSeller not implemented")
}
func (UnimplementedMessagingServiceServer) Subscribe(*SubscribeRequest, grpc.ServerStreamingServer[ChatMessage]) error {
	return status.Error(codes.Unimplemented, "method Subscribe not implemented")
}

// RegisterMessagingServiceServer registers srv on s.
func RegisterMessagingServiceServer(s grpc.ServiceRegistrar, srv MessagingServiceServer) {
	s.RegisterService(&MessagingServiceDesc, srv)
}

// unary builds a unary handler that decodes Req and calls fn.
func unary[Req any, Res any](method string, fn func(MessagingServiceServer, context.Context, *Req) (*Res, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(MessagingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return fn(srv.(MessagingServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// serverStream builds a server-streaming handler that reads one Req.
func serverStream[Req any, Res any](fn func(MessagingServiceServer, *Req, grpc.ServerStreamingServer[Res]) error) grpc.StreamHandler {
	return func(srv any, stream grpc.ServerStream) error {
		in := new(Req)
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		return fn(srv.(MessagingServiceServer), in, &grpc.GenericServerStream[Req, Res]{ServerStream: stream})
	}
}

// MessagingServiceDesc is the grpc.ServiceDesc for MessagingService.
var MessagingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MessagingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unary(RegisterMethod, MessagingServiceServer.Register)},
		{MethodName: "Login", Handler: unary(LoginMethod, MessagingServiceServer.Login)},
		{MethodName: "SendMessage", Handler: unary(SendMessageMethod, MessagingServiceServer.SendMessage)},
		{MethodName: "SearchUsers", Handler: unary(SearchUsersMethod, MessagingServiceServer.SearchUsers)},
		{MethodName: "ContactSeller", Handler: unary(ContactSellerMethod, MessagingServiceServer.ContactSeller)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "ListConversations", Handler: serverStream(MessagingServiceServer.ListConversations), ServerStreams: true},
		{StreamName: "GetThread", Handler: serverStream(MessagingServiceServer.GetThread), ServerStreams: true},
		{StreamName: "Subscribe", Handler: serverStream(MessagingServiceServer.Subscribe), ServerStreams: true},
	},
}

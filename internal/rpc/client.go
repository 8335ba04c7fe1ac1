package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// MessagingServiceClient is the client API for MessagingService. Every call
// is made with the JSON codec.
type MessagingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewMessagingServiceClient(cc grpc.ClientConnInterface) *MessagingServiceClient {
	return &MessagingServiceClient{cc: cc}
}

func callOpts(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{CallOption()}, opts...)
}

func invoke[Req any, Res any](ctx context.Context, cc grpc.ClientConnInterface, method string, in *Req, opts []grpc.CallOption) (*Res, error) {
	out := new(Res)
	if err := cc.Invoke(ctx, method, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func openStream[Req any, Res any](ctx context.Context, cc grpc.ClientConnInterface, desc *grpc.StreamDesc, method string, in *Req, opts []grpc.CallOption) (grpc.ServerStreamingClient[Res], error) {
	stream, err := cc.NewStream(ctx, desc, method, callOpts(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[Req, Res]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *MessagingServiceClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[RegisterRequest, AuthResponse](ctx, c.cc, RegisterMethod, in, opts)
}

func (c *MessagingServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*AuthResponse, error) {
	return invoke[LoginRequest, AuthResponse](ctx, c.cc, LoginMethod, in, opts)
}

func (c *MessagingServiceClient) ListConversations(ctx context.Context, in *ListConversationsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ConversationSummary], error) {
	return openStream[ListConversationsRequest, ConversationSummary](ctx, c.cc, &MessagingServiceDesc.Streams[0], ListConversationsMethod, in, opts)
}

func (c *MessagingServiceClient) GetThread(ctx context.Context, in *GetThreadRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ChatMessage], error) {
	return openStream[GetThreadRequest, ChatMessage](ctx, c.cc, &MessagingServiceDesc.Streams[1], GetThreadMethod, in, opts)
}

func (c *MessagingServiceClient) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*ChatMessage, error) {
	return invoke[SendMessageRequest, ChatMessage](ctx, c.cc, SendMessageMethod, in, opts)
}

func (c *MessagingServiceClient) SearchUsers(ctx context.Context, in *SearchUsersRequest, opts ...grpc.CallOption) (*SearchUsersResponse, error) {
	return invoke[SearchUsersRequest, SearchUsersResponse](ctx, c.cc, SearchUsersMethod, in, opts)
}

func (c *MessagingServiceClient) ContactSeller(ctx context.Context, in *ContactSellerRequest, opts ...grpc.CallOption) (*ContactSellerResponse, error) {
	return invoke[ContactSellerRequest, ContactSellerResponse](ctx, c.cc, ContactSellerMethod, in, opts)
}

func (c *MessagingServiceClient) Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ChatMessage], error) {
	return openStream[SubscribeRequest, ChatMessage](ctx, c.cc, &MessagingServiceDesc.Streams[2], SubscribeMethod, in, opts)
}

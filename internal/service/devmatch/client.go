package devmatch

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls DevMatch with plain maps in place of generated stubs.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes a unary method by name, e.g. Call(ctx, "Like", map[string]any{...}).
func (c *Client) Call(ctx context.Context, method string, in map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// ToastStream receives WatchToasts events.
type ToastStream struct {
	stream grpc.ClientStream
}

// Recv blocks for the next toast event.
func (t *ToastStream) Recv() (map[string]any, error) {
	out := new(structpb.Struct)
	if err := t.stream.RecvMsg(out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// WatchToasts opens the toast stream for userID; cancel ctx to stop it.
func (c *Client) WatchToasts(ctx context.Context, userID string, opts ...grpc.CallOption) (*ToastStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], "/"+ServiceName+"/WatchToasts", opts...)
	if err != nil {
		return nil, err
	}
	req, err := structpb.NewStruct(map[string]any{"user_id": userID})
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &ToastStream{stream: stream}, nil
}

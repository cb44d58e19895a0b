package feed

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "spectrum.v1.SpectrumFeed"

// StreamMethod is the full method path of the streaming RPC.
const StreamMethod = "/" + ServiceName + "/Stream"

// SpectrumFeedServer is the server API. Each message is a
// google.protobuf.Struct with the same fields as the JSON feed.
type SpectrumFeedServer interface {
	Stream(*emptypb.Empty, StreamServer) error
}

// StreamServer is the server side of a Stream call.
type StreamServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type streamServer struct {
	grpc.ServerStream
}

func (x *streamServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func streamHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(SpectrumFeedServer).Stream(m, &streamServer{stream})
}

// ServiceDesc describes the SpectrumFeed service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SpectrumFeedServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Stream",
			Handler:       streamHandler,
			ServerStreams: true,
		},
	},
	Metadata: "spectrum/v1/feed.proto",
}

// RegisterSpectrumFeedServer registers srv with s.
func RegisterSpectrumFeedServer(s grpc.ServiceRegistrar, srv SpectrumFeedServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// GRPCService serves the hub over gRPC.
type GRPCService struct {
	hub *Hub
}

// NewGRPCService wraps h.
func NewGRPCService(h *Hub) *GRPCService {
	return &GRPCService{hub: h}
}

// Stream sends every broadcast message until the client goes away or the
// hub closes.
func (s *GRPCService) Stream(_ *emptypb.Empty, stream StreamServer) error {
	id, ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)
	ctx := stream.Context()
	diagf("grpc client %s connected", id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			st := &structpb.Struct{}
			if err := protojson.Unmarshal(msg, st); err != nil {
				opsf("convert message for grpc client %s: %v", id, err)
				continue
			}
			if err := stream.Send(st); err != nil {
				return err
			}
		}
	}
}

// SpectrumFeedClient is the client API.
type SpectrumFeedClient struct {
	cc grpc.ClientConnInterface
}

// NewSpectrumFeedClient returns a client on cc.
func NewSpectrumFeedClient(cc grpc.ClientConnInterface) *SpectrumFeedClient {
	return &SpectrumFeedClient{cc: cc}
}

// StreamClient is the client side of a Stream call.
type StreamClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type streamClient struct {
	grpc.ClientStream
}

func (x *streamClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Stream opens the spectrum stream.
func (c *SpectrumFeedClient) Stream(ctx context.Context, opts ...grpc.CallOption) (StreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], StreamMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &streamClient{stream}
	if err := x.ClientStream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, fmt.Errorf("send stream request: %w", err)
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, fmt.Errorf("close stream request: %w", err)
	}
	return x, nil
}

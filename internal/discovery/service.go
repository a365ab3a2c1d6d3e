// Package discovery publishes this server's snapshot to matchmakers: as a
// gRPC service that can be polled or watched, and as a row in the shared
// game_servers table.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/hexrooms/internal/protocol"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "hexrooms.discovery.v1.Discovery"

const (
	snapshotMethod = "/" + ServiceName + "/Snapshot"
	watchMethod    = "/" + ServiceName + "/Watch"
)

// SnapshotFunc returns the current snapshot.
type SnapshotFunc func() protocol.GameServer

// Service serves snapshots over gRPC. Payloads are google.protobuf.Struct
// values shaped exactly like the JSON GameServer record.
type Service struct {
	snapshot SnapshotFunc
	interval time.Duration
	logger   *zap.Logger
}

// NewService creates a Service. interval is the Watch push period.
//
// Precondition: interval must be > 0.
func NewService(snapshot SnapshotFunc, interval time.Duration, logger *zap.Logger) *Service {
	return &Service{snapshot: snapshot, interval: interval, logger: logger}
}

// Snapshot returns the current snapshot.
func (s *Service) Snapshot(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out, err := ToStruct(s.snapshot())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding snapshot: %v", err)
	}
	return out, nil
}

// Watch sends a snapshot immediately and then once per interval until the
// client goes away.
func (s *Service) Watch(_ *emptypb.Empty, stream grpc.ServerStream) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		out, err := ToStruct(s.snapshot())
		if err != nil {
			return status.Errorf(codes.Internal, "encoding snapshot: %v", err)
		}
		if err := stream.SendMsg(out); err != nil {
			s.logger.Debug("watch send failed", zap.Error(err))
			return err
		}
		select {
		case <-stream.Context().Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ServiceDesc describes the Discovery service to grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*discoveryServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Snapshot",
		Handler:    snapshotHandler,
	}},
	Streams: []grpc.StreamDesc{{
		StreamName:    "Watch",
		Handler:       watchHandler,
		ServerStreams: true,
	}},
	Metadata: "hexrooms/discovery/v1/discovery.proto",
}

type discoveryServer interface {
	Snapshot(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Watch(*emptypb.Empty, grpc.ServerStream) error
}

// Register adds svc to s.
func Register(s grpc.ServiceRegistrar, svc *Service) {
	s.RegisterService(&ServiceDesc, svc)
}

func snapshotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(discoveryServer).Snapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: snapshotMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(discoveryServer).Snapshot(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(discoveryServer).Watch(in, stream)
}

// ToStruct converts a snapshot to its protobuf Struct form.
func ToStruct(gs protocol.GameServer) (*structpb.Struct, error) {
	raw, err := json.Marshal(gs)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return structpb.NewStruct(fields)
}

// FromStruct is the inverse of ToStruct.
func FromStruct(s *structpb.Struct) (protocol.GameServer, error) {
	raw, err := protojson.Marshal(s)
	if err != nil {
		return protocol.GameServer{}, err
	}
	var gs protocol.GameServer
	if err := json.Unmarshal(raw, &gs); err != nil {
		return protocol.GameServer{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return gs, nil
}

// Client calls a remote Discovery service.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Snapshot fetches the remote server's current snapshot.
func (c *Client) Snapshot(ctx context.Context) (protocol.GameServer, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, snapshotMethod, &emptypb.Empty{}, out); err != nil {
		return protocol.GameServer{}, err
	}
	return FromStruct(out)
}

// Watch calls fn with every pushed snapshot until ctx ends, the stream
// fails, or fn returns an error.
func (c *Client) Watch(ctx context.Context, fn func(protocol.GameServer) error) error {
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], watchMethod)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		out := new(structpb.Struct)
		if err := stream.RecvMsg(out); err != nil {
			return err
		}
		gs, err := FromStruct(out)
		if err != nil {
			return err
		}
		if err := fn(gs); err != nil {
			return err
		}
	}
}

// Package grpcserver exposes the admin surface: the standard gRPC
// health service plus a stats RPC. The Admin service is small enough
// that its descriptor is written by hand against well-known types,
// keeping code generation out of the build.
package grpcserver

import (
	"context"
	"log"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// StatsFunc snapshots runtime counters for the GetStats RPC.
type StatsFunc func() map[string]any

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	stats  StatsFunc
}

func New(stats StatsFunc) *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		stats:  stats,
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.grpc.RegisterService(&adminDesc, s)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return s
}

func (s *Server) GetStats(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return structpb.NewStruct(s.stats())
}

// Serve blocks on the listener until Stop.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Printf("[grpc] admin listening on %s", lis.Addr())
	return s.grpc.Serve(lis)
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

type adminService interface {
	GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

var adminDesc = grpc.ServiceDesc{
	ServiceName: "matchd.v1.Admin",
	HandlerType: (*adminService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStats", Handler: getStatsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "matchd/v1/admin.proto",
}

func getStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(adminService).GetStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/matchd.v1.Admin/GetStats"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(adminService).GetStats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

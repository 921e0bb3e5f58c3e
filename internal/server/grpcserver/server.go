// Package grpcserver runs the gRPC endpoint of gophauth: the public health
// service and the authenticated Identity service behind bearer-token
// interceptors. Further services can be registered with WithService.
package grpcserver

import (
	"context"
	"net"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

type GRPCServer struct {
	address  string
	logger   logging.Logger
	srv      *grpc.Server
	health   *health.Server
	register []func(grpc.ServiceRegistrar)
}

type Option func(*GRPCServer)

// WithService registers an additional service on the server before it starts.
func WithService(fn func(grpc.ServiceRegistrar)) Option {
	return func(s *GRPCServer) { s.register = append(s.register, fn) }
}

func NewGRPCServer(a string, l logging.Logger, authz Authorizer, policy Policy, opts ...Option) *GRPCServer {
	if l == nil {
		l = logging.NewNopLogger()
	}
	s := &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		health:  health.NewServer(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.srv = grpc.NewServer(
		grpc.ChainUnaryInterceptor(AuthInterceptor(authz, policy)),
		grpc.ChainStreamInterceptor(StreamAuthInterceptor(authz, policy)),
	)
	grpc_health_v1.RegisterHealthServer(s.srv, s.health)
	RegisterIdentityServer(s.srv, NewIdentityServer())
	for _, fn := range s.register {
		fn(s.srv)
	}
	return s
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on listen until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		s.srv.GracefulStop()
	}()

	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := s.srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

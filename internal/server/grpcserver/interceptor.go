package grpcserver

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/auth"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/guard"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const claimsKey ctxKey = "claims"

// Authorizer is implemented by services.AuthService.
type Authorizer interface {
	Authorize(ctx context.Context, header string) (*auth.Claims, error)
}

// Policy decides which methods need a token and which guard applies.
// Methods listed in Public skip authentication. Every other method needs a
// valid token and, when Guards has an entry for it, must pass that guard.
type Policy struct {
	Public map[string]bool
	Guards map[string]guard.Guard
}

// DefaultPolicy keeps the health service public.
func DefaultPolicy() Policy {
	return Policy{
		Public: map[string]bool{
			grpc_health_v1.Health_Check_FullMethodName: true,
			grpc_health_v1.Health_Watch_FullMethodName: true,
		},
		Guards: map[string]guard.Guard{},
	}
}

// ClaimsFromContext returns the claims stored by the interceptors.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}

type authInterceptor struct {
	authz  Authorizer
	policy Policy
}

func (a *authInterceptor) authorize(ctx context.Context, method string) (context.Context, error) {
	if a.policy.Public[method] {
		return ctx, nil
	}

	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AuthorizationHeaderName); len(values) > 0 {
			header = values[0]
		}
	}
	if header == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := a.authz.Authorize(ctx, header)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	if g, ok := a.policy.Guards[method]; ok && !g.Check(claims) {
		return nil, status.Error(codes.PermissionDenied, "permission denied")
	}

	return context.WithValue(ctx, claimsKey, claims), nil
}

// AuthInterceptor authenticates unary calls using the "authorization"
// metadata value ("Bearer <token>").
func AuthInterceptor(authz Authorizer, policy Policy) grpc.UnaryServerInterceptor {
	a := &authInterceptor{authz: authz, policy: policy}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := a.authorize(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authedStream) Context() context.Context { return s.ctx }

// StreamAuthInterceptor is AuthInterceptor for streaming calls.
func StreamAuthInterceptor(authz Authorizer, policy Policy) grpc.StreamServerInterceptor {
	a := &authInterceptor{authz: authz, policy: policy}
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := a.authorize(ss.Context(), info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &authedStream{ServerStream: ss, ctx: ctx})
	}
}

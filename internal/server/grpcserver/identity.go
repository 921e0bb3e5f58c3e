package grpcserver

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	IdentityServiceName  = "gophauth.v1.Identity"
	WhoAmIFullMethodName  = "/gophauth.v1.Identity/WhoAmI"
)

// IdentityServer reports the caller's verified claims. It never appears in
// Policy.Public, so every call goes through the auth interceptor.
type IdentityServer interface {
	WhoAmI(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

type identityServer struct{}

func NewIdentityServer() IdentityServer {
	return identityServer{}
}

func (identityServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	out, err := claimsStruct(claims)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode claims")
	}
	return out, nil
}

func claimsStruct(c *auth.Claims) (*structpb.Struct, error) {
	groups := make([]any, 0, len(c.Groups()))
	for _, g := range c.Groups() {
		groups = append(groups, g)
	}

	fields := map[string]any{
		"sub":      c.Subject(),
		"groups":   groups,
		"provider": c.Provider(),
		"iat":      c.IssuedAt().Unix(),
		"exp":      c.ExpiresAt().Unix(),
		"jti":      c.ID(),
	}
	if extra := c.Extra(); len(extra) > 0 {
		fields["extra"] = extra
	}
	return structpb.NewStruct(fields)
}

// RegisterIdentityServer is the hand-written counterpart of a generated
// registration function; the messages are protobuf well-known types.
func RegisterIdentityServer(r grpc.ServiceRegistrar, srv IdentityServer) {
	r.RegisterService(&identityServiceDesc, srv)
}

var identityServiceDesc = grpc.ServiceDesc{
	ServiceName: IdentityServiceName,
	HandlerType: (*IdentityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "WhoAmI", Handler: whoAmIHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophauth/v1/identity.proto",
}

func whoAmIHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IdentityServer).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: WhoAmIFullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IdentityServer).WhoAmI(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

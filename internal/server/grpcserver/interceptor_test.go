package grpcserver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/auth"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/guard"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const adminMethod = "/gophauth.Admin/ListUsers"

type fakeAuthorizer struct {
	tokens map[string]*auth.Claims
}

func (f *fakeAuthorizer) Authorize(_ context.Context, header string) (*auth.Claims, error) {
	tok, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, common.ErrInvalidHeaderFormat
	}
	c, ok := f.tokens[tok]
	if !ok {
		return nil, common.ErrTokenBadSignature
	}
	return c, nil
}

func mustClaims(t *testing.T, sub string, groups ...string) *auth.Claims {
	t.Helper()
	now := time.Now()
	c, err := auth.NewClaims(sub, groups, "local", now, now.Add(time.Hour), nil)
	if err != nil {
		t.Fatalf("NewClaims: %v", err)
	}
	return c
}

func newTestAuthorizer(t *testing.T) *fakeAuthorizer {
	return &fakeAuthorizer{tokens: map[string]*auth.Claims{
		"admin-token": mustClaims(t, "alice", "admins"),
		"user-token":  mustClaims(t, "bob", "users"),
	}}
}

func testPolicy() Policy {
	p := DefaultPolicy()
	p.Guards[adminMethod] = guard.HasGroup("admins")
	return p
}

func withAuth(header string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(common.AuthorizationHeaderName, header))
}

func TestInterceptor_PublicMethodAllowsWithoutToken(t *testing.T) {
	icpt := AuthInterceptor(newTestAuthorizer(t), testPolicy())

	info := &grpc.UnaryServerInfo{FullMethod: grpc_health_v1.Health_Check_FullMethodName}
	handlerCalled := false

	h := func(ctx context.Context, req any) (any, error) {
		handlerCalled = true
		if _, ok := ClaimsFromContext(ctx); ok {
			t.Fatal("public call must not carry claims")
		}
		return "ok", nil
	}

	resp, err := icpt(context.Background(), nil, info, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handlerCalled {
		t.Fatal("handler was not called")
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}
}

func TestInterceptor_MissingToken(t *testing.T) {
	icpt := AuthInterceptor(newTestAuthorizer(t), testPolicy())
	info := &grpc.UnaryServerInfo{FullMethod: "/gophauth.Other/Method"}

	h := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler should not be called when token missing")
		return nil, nil
	}

	_, err := icpt(context.Background(), nil, info, h)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", status.Code(err))
	}
	if status.Convert(err).Message() != "missing token" {
		t.Fatalf("expected 'missing token', got %q", status.Convert(err).Message())
	}
}

func TestInterceptor_InvalidToken(t *testing.T) {
	icpt := AuthInterceptor(newTestAuthorizer(t), testPolicy())
	info := &grpc.UnaryServerInfo{FullMethod: "/gophauth.Other/Method"}

	h := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler should not be called with invalid token")
		return nil, nil
	}

	for _, header := range []string{"Bearer forged", "Basic abc", "admin-token"} {
		_, err := icpt(withAuth(header), nil, info, h)
		if status.Code(err) != codes.Unauthenticated {
			t.Fatalf("%q: expected Unauthenticated, got %v", header, status.Code(err))
		}
	}
}

func TestInterceptor_ValidTokenStoresClaims(t *testing.T) {
	icpt := AuthInterceptor(newTestAuthorizer(t), testPolicy())
	info := &grpc.UnaryServerInfo{FullMethod: "/gophauth.Other/Method"}

	var got *auth.Claims
	h := func(ctx context.Context, req any) (any, error) {
		got, _ = ClaimsFromContext(ctx)
		return nil, nil
	}

	if _, err := icpt(withAuth("Bearer user-token"), nil, info, h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Subject() != "bob" {
		t.Fatalf("expected claims for bob, got %v", got)
	}
}

func TestInterceptor_GuardedMethod(t *testing.T) {
	icpt := AuthInterceptor(newTestAuthorizer(t), testPolicy())
	info := &grpc.UnaryServerInfo{FullMethod: adminMethod}
	h := func(ctx context.Context, req any) (any, error) { return "ok", nil }

	_, err := icpt(withAuth("Bearer user-token"), nil, info, h)
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected PermissionDenied, got %v", status.Code(err))
	}

	resp, err := icpt(withAuth("Bearer admin-token"), nil, info, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeStream) Context() context.Context { return f.ctx }

func TestStreamInterceptor(t *testing.T) {
	icpt := StreamAuthInterceptor(newTestAuthorizer(t), testPolicy())
	info := &grpc.StreamServerInfo{FullMethod: "/gophauth.Other/Stream"}

	var got *auth.Claims
	h := func(srv any, ss grpc.ServerStream) error {
		got, _ = ClaimsFromContext(ss.Context())
		return nil
	}

	if err := icpt(nil, &fakeStream{ctx: withAuth("Bearer admin-token")}, info, h); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Subject() != "alice" {
		t.Fatalf("expected claims for alice, got %v", got)
	}

	err := icpt(nil, &fakeStream{ctx: context.Background()}, info, h)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated, got %v", status.Code(err))
	}
}

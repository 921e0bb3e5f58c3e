package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/auth"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeAuth struct {
	tokens   map[string]*auth.Claims
	loginErr error
}

func (f *fakeAuth) Login(_ context.Context, username, password string) (*services.LoginResponse, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	if username != "alice" || password != "alice-pw" {
		return nil, common.ErrAuthenticationFailed
	}
	c := f.tokens["admin-token"]
	return &services.LoginResponse{
		Token:     "admin-token",
		TokenType: "Bearer",
		ExpiresIn: 3600,
		Claims:    services.NewClaimsView(c),
	}, nil
}

func (f *fakeAuth) Authorize(_ context.Context, header string) (*auth.Claims, error) {
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

type fakeUsers struct {
	list []*models.User
	err  error
}

func (f *fakeUsers) ListUsers(context.Context) ([]*models.User, error) { return f.list, f.err }

func (f *fakeUsers) AddUser(_ context.Context, username, password string, groups []string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if username == "" {
		return nil, common.ErrInvalidUsername
	}
	if password == "" {
		return nil, common.ErrInvalidPasswordInput
	}
	for _, u := range f.list {
		if u.Username == username {
			return nil, common.ErrAlreadyExists
		}
	}
	u := models.NewUser(username, "secret-hash", groups, testNow)
	f.list = append(f.list, u)
	return u, nil
}

func (f *fakeUsers) DeleteUser(_ context.Context, username string) error {
	if f.err != nil {
		return f.err
	}
	for i, u := range f.list {
		if u.Username == username {
			f.list = append(f.list[:i], f.list[i+1:]...)
			return nil
		}
	}
	return common.ErrNotFound
}

func mustClaims(t *testing.T, sub string, groups ...string) *auth.Claims {
	t.Helper()
	c, err := auth.NewClaims(sub, groups, "local", testNow, testNow.Add(time.Hour), nil)
	require.NoError(t, err)
	return c
}

func newTestServer(t *testing.T) (*Server, *fakeAuth, *fakeUsers) {
	t.Helper()
	a := &fakeAuth{tokens: map[string]*auth.Claims{
		"admin-token": mustClaims(t, "alice", "admins", "users"),
		"user-token":  mustClaims(t, "bob", "users"),
	}}
	u := &fakeUsers{list: []*models.User{
		models.NewUser("alice", "secret-hash", []string{"admins"}, testNow),
		models.NewUser("bob", "secret-hash", []string{"users"}, testNow),
	}}
	return NewServer("127.0.0.1:0", a, u, nil), a, u
}

func do(t *testing.T, s *Server, method, path, body, authz string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLogin(t *testing.T) {
	s, a, _ := newTestServer(t)

	t.Run("success", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/auth/login", `{"username":"alice","password":"alice-pw"}`, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

		var resp services.LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "admin-token", resp.Token)
		assert.Equal(t, "Bearer", resp.TokenType)
		assert.Equal(t, int64(3600), resp.ExpiresIn)
		assert.Equal(t, "alice", resp.Claims.Subject)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/auth/login", `{"username":"alice","password":"nope"}`, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.JSONEq(t, `{"error":"authentication failed"}`, rec.Body.String())
	})

	t.Run("bad body", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/auth/login", `{"username":`, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("internal error", func(t *testing.T) {
		a.loginErr = errors.Join(common.ErrorInternal, common.ErrStorage)
		t.Cleanup(func() { a.loginErr = nil })

		rec := do(t, s, http.MethodPost, "/auth/login", `{"username":"alice","password":"alice-pw"}`, "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "storage")
	})
}

func TestMe(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/auth/me", "", "Bearer user-token")
	require.Equal(t, http.StatusOK, rec.Code)

	var view services.ClaimsView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "bob", view.Subject)
	assert.Equal(t, []string{"users"}, view.Groups)
	assert.Equal(t, testNow.Add(time.Hour).Unix(), view.ExpiresAt)

	for _, h := range []string{"", "Basic abc", "Bearer forged"} {
		rec := do(t, s, http.MethodGet, "/auth/me", "", h)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, h)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	}
}

func TestAdminUsers(t *testing.T) {
	s, _, u := newTestServer(t)

	t.Run("admin", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/admin/users", "", "Bearer admin-token")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret-hash")

		var out []userView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		require.Len(t, out, 2)
		assert.Equal(t, "alice", out[0].Username)
		assert.True(t, out[0].Enabled)
	})

	t.Run("non-admin is forbidden", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/admin/users", "", "Bearer user-token")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/admin/users", "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		u.err = common.ErrStorage
		t.Cleanup(func() { u.err = nil })

		rec := do(t, s, http.MethodGet, "/admin/users", "", "Bearer admin-token")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestRun_StopsOnCancel(t *testing.T) {
	s, _, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/auth"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/models"
	"github.com/dmitrijs2005/gophauth/internal/providers"
	"github.com/dmitrijs2005/gophauth/internal/tokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

const testSecret = "0123456789abcdef0123456789abcdef"

func newAuthFixture(t *testing.T) (*AuthService, *fakeUsersRepo) {
	t.Helper()
	h := newTestHasher()

	hash, err := h.Hash("alice-pw")
	require.NoError(t, err)
	alice := models.NewUser("alice", hash, []string{"admins", "users"}, testNow)

	repo := newFakeUsersRepo(alice)
	p := providers.NewLocalProvider(repo, h,
		providers.WithSessionLifetime(time.Hour),
		providers.WithClock(func() time.Time { return testNow }),
	)

	ts, err := tokens.NewService(testSecret, tokens.WithClock(func() time.Time { return testNow.Add(time.Minute) }))
	require.NoError(t, err)

	return NewAuthService(p, ts, nil), repo
}

func TestLogin_Success(t *testing.T) {
	s, _ := newAuthFixture(t)

	resp, err := s.Login(context.Background(), "alice", "alice-pw")
	require.NoError(t, err)

	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "alice", resp.Claims.Subject)
	assert.Equal(t, []string{"admins", "users"}, resp.Claims.Groups)
	assert.Equal(t, "local", resp.Claims.Provider)
	assert.Equal(t, testNow.Unix(), resp.Claims.IssuedAt)
	assert.Equal(t, testNow.Add(time.Hour).Unix(), resp.Claims.ExpiresAt)
	assert.NotEmpty(t, resp.Claims.ID)
}

func TestLogin_CredentialFailuresAreUniform(t *testing.T) {
	ctx := context.Background()
	s, repo := newAuthFixture(t)

	_, errWrong := s.Login(ctx, "alice", "wrong")
	_, errUnknown := s.Login(ctx, "mallory", "whatever")

	require.NoError(t, repo.SetEnabled(ctx, "alice", false))
	_, errDisabled := s.Login(ctx, "alice", "alice-pw")

	for _, err := range []error{errWrong, errUnknown, errDisabled} {
		assert.ErrorIs(t, err, common.ErrAuthenticationFailed)
		assert.Equal(t, errWrong.Error(), err.Error())
	}
}

func TestLogin_StorageErrorIsInternal(t *testing.T) {
	s, repo := newAuthFixture(t)
	repo.getErr = common.ErrStorage

	_, err := s.Login(context.Background(), "alice", "alice-pw")
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.NotErrorIs(t, err, common.ErrAuthenticationFailed)
}

type failingIssuer struct{ TokenService }

func (failingIssuer) Issue(*auth.Claims) (*tokens.Token, error) { return nil, errors.New("boom") }

func TestLogin_IssueFailure(t *testing.T) {
	s, _ := newAuthFixture(t)
	s.tokens = failingIssuer{s.tokens}

	_, err := s.Login(context.Background(), "alice", "alice-pw")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	s, _ := newAuthFixture(t)

	resp, err := s.Login(ctx, "alice", "alice-pw")
	require.NoError(t, err)

	claims, err := s.Authorize(ctx, "Bearer "+resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject())
	assert.True(t, claims.HasGroup("admins"))

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{name: "empty", header: "", want: common.ErrInvalidHeaderFormat},
		{name: "basic scheme", header: "Basic abc", want: common.ErrInvalidHeaderFormat},
		{name: "lowercase scheme", header: "bearer " + resp.Token, want: common.ErrInvalidHeaderFormat},
		{name: "garbage", header: "Bearer abc", want: common.ErrTokenMalformed},
		{name: "tampered", header: "Bearer " + resp.Token + "x", want: common.ErrTokenBadSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Authorize(ctx, tt.header)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestProvider(t *testing.T) {
	s, _ := newAuthFixture(t)
	assert.Equal(t, "local", s.Provider().Name())
}

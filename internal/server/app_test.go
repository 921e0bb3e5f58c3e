package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/password"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.HTTPAddr = "127.0.0.1:0"
	c.GRPCAddr = ""
	c.DatabaseDSN = filepath.Join(t.TempDir(), "auth.db")
	c.SecretKey = "0123456789abcdef0123"
	c.LogLevel = "error"
	c.Users = []config.SeedUser{
		{Username: "alice", Password: "alice-pw", Groups: []string{"admins"}},
	}
	return c
}

func TestNewApp_SeedsAndAuthenticates(t *testing.T) {
	ctx := context.Background()

	app, err := NewApp(ctx, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.db.Close() })

	resp, err := app.authService.Login(ctx, "alice", "alice-pw")
	require.NoError(t, err)
	assert.Equal(t, []string{"admins"}, resp.Claims.Groups)

	claims, err := app.authService.Authorize(ctx, "Bearer "+resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject())
	assert.NotNil(t, app.tokens.Cache())
}

func TestNewApp_InvalidConfig(t *testing.T) {
	c := testConfig(t)
	c.SecretKey = "short"

	_, err := NewApp(context.Background(), c)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestNewApp_ProviderNotReady(t *testing.T) {
	c := testConfig(t)
	c.AutoMigrate = false
	c.Users = nil

	_, err := NewApp(context.Background(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local")
}

func TestNewApp_CacheDisabled(t *testing.T) {
	c := testConfig(t)
	c.CacheEnabled = false

	app, err := NewApp(context.Background(), c)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.db.Close() })

	assert.Nil(t, app.tokens.Cache())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		app.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewApp_MasterAuth(t *testing.T) {
	ctx := context.Background()

	hash, err := password.NewDefaultHasher().Hash("master-pw")
	require.NoError(t, err)

	c := testConfig(t)
	c.MasterUsername = "root"
	c.MasterPasswordHash = hash

	app, err := NewApp(ctx, c)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.db.Close() })

	require.NotNil(t, app.master)
	creds, err := app.master.Validate("root", "master-pw")
	require.NoError(t, err)
	assert.Equal(t, "root", creds.Username)

	_, err = app.master.Validate("root", "alice-pw")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestNewApp_MasterAuthDisabled(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.db.Close() })

	assert.Nil(t, app.master)
}

package providers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/guard"
	"github.com/dmitrijs2005/gophauth/internal/models"
	"github.com/dmitrijs2005/gophauth/internal/password"
	"github.com/dmitrijs2005/gophauth/internal/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/tokens"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAliceScenario walks the full flow over a real SQLite store:
// hash, create, authenticate, issue, verify, guard.
func TestAliceScenario(t *testing.T) {
	ctx := context.Background()

	db, m, err := repomanager.Open(ctx, repomanager.DriverSQLite, filepath.Join(t.TempDir(), "auth.db"), true)
	require.NoError(t, err)
	defer db.Close()
	repo := m.Users(db)

	hasher := password.NewHasher(testParams)
	hash, err := hasher.Hash("password123")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, models.NewUser("alice", hash, []string{"users", "developers"}, time.Now())))

	provider := NewLocalProvider(repo, hasher)
	require.NoError(t, provider.ValidateConfig(ctx))

	claims, err := provider.Authenticate(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject())
	assert.Equal(t, []string{"users", "developers"}, claims.Groups())
	assert.Equal(t, "local", claims.Provider())

	svc, err := tokens.NewService("scenario-secret-0123456789")
	require.NoError(t, err)
	tok, err := svc.Issue(claims)
	require.NoError(t, err)

	verified, err := svc.Verify(ctx, tok.Value)
	require.NoError(t, err)
	if diff := cmp.Diff(claims, verified); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, guard.HasGroup("developers").Check(verified))
	assert.False(t, guard.HasGroup("admins").Check(verified))

	_, err = provider.Authenticate(ctx, "alice", "wrongpassword")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	require.NoError(t, repo.SetEnabled(ctx, "alice", false))
	_, err = provider.Authenticate(ctx, "alice", "password123")
	assert.ErrorIs(t, err, common.ErrUserDisabled)
}

package services

import (
	"context"
	"database/sql"
	"slices"
	"sort"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/models"
	"github.com/dmitrijs2005/gophauth/internal/password"
	usersrepo "github.com/dmitrijs2005/gophauth/internal/repositories/users"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func newTestHasher() *password.Hasher {
	return password.NewHasher(password.Params{Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
}

// fakeUsersRepo is an in-memory users.Repository.
type fakeUsersRepo struct {
	mu    sync.Mutex
	users map[string]*models.User

	getErr    error
	createErr error
	listErr   error
}

func newFakeUsersRepo(users ...*models.User) *fakeUsersRepo {
	r := &fakeUsersRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		r.users[u.Username] = u
	}
	return r
}

func (f *fakeUsersRepo) Get(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[username]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	cp.Groups = slices.Clone(u.Groups)
	return &cp, nil
}

func (f *fakeUsersRepo) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.users[user.Username]; ok {
		return common.ErrAlreadyExists
	}
	cp := *user
	f.users[user.Username] = &cp
	return nil
}

func (f *fakeUsersRepo) update(username string, fn func(u *models.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return common.ErrNotFound
	}
	fn(u)
	return nil
}

func (f *fakeUsersRepo) UpdatePassword(_ context.Context, username, hash string) error {
	return f.update(username, func(u *models.User) { u.PasswordHash = hash })
}

func (f *fakeUsersRepo) UpdateGroups(_ context.Context, username string, groups []string) error {
	return f.update(username, func(u *models.User) { u.Groups = slices.Clone(groups) })
}

func (f *fakeUsersRepo) SetEnabled(_ context.Context, username string, enabled bool) error {
	return f.update(username, func(u *models.User) { u.Enabled = enabled })
}

func (f *fakeUsersRepo) List(_ context.Context) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeUsersRepo) Delete(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[username]; !ok {
		return common.ErrNotFound
	}
	delete(f.users, username)
	return nil
}

func (f *fakeUsersRepo) Exists(ctx context.Context, username string) (bool, error) {
	return usersrepo.Exists(ctx, f, username)
}

type fakeRepoManager struct {
	u *fakeUsersRepo
}

func (m *fakeRepoManager) SQLDriver() string                            { return "fake" }
func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.u }

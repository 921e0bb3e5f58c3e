package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/dmitrijs2005/gophauth/internal/auth"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/models"
	"github.com/dmitrijs2005/gophauth/internal/providers"
	"github.com/dmitrijs2005/gophauth/internal/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
)

// PasswordHasher hashes new passwords and verifies candidates.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) error
}

// UserService provides user provisioning:
// - AddUser / DeleteUser / ListUsers
// - ChangePassword / SetUserStatus / SetGroups
// - SeedUsers: create configured accounts on startup
// - TestAuth: check a pair against the local provider without issuing a token
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      PasswordHasher
	logger      logging.Logger
	now         func() time.Time
}

// NewUserService constructs a UserService over db using the repositories of m.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher PasswordHasher, logger logging.Logger) *UserService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &UserService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		logger:      logger.With("module", "users"),
		now:         time.Now,
	}
}

// AddUser hashes password and stores an enabled user.
// A taken username yields common.ErrAlreadyExists.
func (s *UserService) AddUser(ctx context.Context, username, password string, groups []string) (*models.User, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	user, err := s.newUser(username, password, groups)
	if err != nil {
		return nil, err
	}
	if err := s.repomanager.Users(s.db).Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user %q: %w", username, err)
	}
	s.logger.Info(ctx, "user added", "username", username, "groups", user.Groups)
	return user, nil
}

func (s *UserService) DeleteUser(ctx context.Context, username string) error {
	if err := s.repomanager.Users(s.db).Delete(ctx, username); err != nil {
		return fmt.Errorf("delete user %q: %w", username, err)
	}
	s.logger.Info(ctx, "user deleted", "username", username)
	return nil
}

func (s *UserService) ChangePassword(ctx context.Context, username, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := s.repomanager.Users(s.db).UpdatePassword(ctx, username, hash); err != nil {
		return fmt.Errorf("change password of %q: %w", username, err)
	}
	s.logger.Info(ctx, "password changed", "username", username)
	return nil
}

func (s *UserService) SetUserStatus(ctx context.Context, username string, enabled bool) error {
	if err := s.repomanager.Users(s.db).SetEnabled(ctx, username, enabled); err != nil {
		return fmt.Errorf("set status of %q: %w", username, err)
	}
	s.logger.Info(ctx, "user status changed", "username", username, "enabled", enabled)
	return nil
}

func (s *UserService) SetGroups(ctx context.Context, username string, groups []string) error {
	groups = normalizeGroups(groups)
	if err := s.repomanager.Users(s.db).UpdateGroups(ctx, username, groups); err != nil {
		return fmt.Errorf("set groups of %q: %w", username, err)
	}
	s.logger.Info(ctx, "user groups changed", "username", username, "groups", groups)
	return nil
}

// ListUsers returns all users ordered by username.
func (s *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.repomanager.Users(s.db).List(ctx)
}

// TestAuth runs the local provider against the stored users and returns the
// claims it would issue. Errors are returned unmasked so operators can see
// why a login fails.
func (s *UserService) TestAuth(ctx context.Context, username, password string) (*auth.Claims, error) {
	p := providers.NewLocalProvider(s.repomanager.Users(s.db), s.hasher)
	return p.Authenticate(ctx, username, password)
}

// SeedUsers creates the configured users that do not exist yet, in a single
// transaction. Existing users are left untouched. It returns the number of
// users created.
func (s *UserService) SeedUsers(ctx context.Context, seeds []config.SeedUser) (int, error) {
	if len(seeds) == 0 {
		return 0, nil
	}

	created := 0
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		for _, seed := range seeds {
			exists, err := repo.Exists(ctx, seed.Username)
			if err != nil {
				return fmt.Errorf("seed user %q: %w", seed.Username, err)
			}
			if exists {
				s.logger.Debug(ctx, "seed user exists, skipping", "username", seed.Username)
				continue
			}

			if err := validateUsername(seed.Username); err != nil {
				return fmt.Errorf("seed user %q: %w", seed.Username, err)
			}
			user, err := s.newUser(seed.Username, seed.Password, seed.Groups)
			if err != nil {
				return fmt.Errorf("seed user %q: %w", seed.Username, err)
			}
			user.Enabled = seed.IsEnabled()

			if err := repo.Create(ctx, user); err != nil {
				if errors.Is(err, common.ErrAlreadyExists) {
					continue
				}
				return fmt.Errorf("seed user %q: %w", seed.Username, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info(ctx, "users seeded", "created", created, "configured", len(seeds))
	return created, nil
}

// --- helpers below ---

func (s *UserService) newUser(username, password string, groups []string) (*models.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	return models.NewUser(username, hash, normalizeGroups(groups), s.now()), nil
}

func validateUsername(username string) error {
	if username == "" || strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		return common.ErrInvalidUsername
	}
	return nil
}

// normalizeGroups trims names, drops empty ones and removes duplicates while
// keeping the first occurrence order.
func normalizeGroups(groups []string) []string {
	out := make([]string, 0, len(groups))
	seen := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}

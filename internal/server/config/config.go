// Package config handles configuration for the gophauth server and admin
// CLI, including defaults, JSON overlay, environment variables and
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/password"
	"github.com/dmitrijs2005/gophauth/internal/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/tokens"
)

// Config holds runtime settings.
//
// Fields:
//   - HTTPAddr / GRPCAddr: bind addresses; an empty GRPCAddr disables gRPC.
//   - DatabaseDriver: "sqlite" or "postgres"; DatabaseDSN is passed to the driver.
//   - AutoMigrate: run embedded migrations on startup.
//   - SecretKey: HMAC secret for signing tokens, at least 16 characters.
//   - SessionLifetime: lifetime of issued tokens.
//   - CacheEnabled / CacheTTL: token verification cache.
//   - LogLevel: debug, info, warn or error.
//   - Users: accounts created on startup when missing.
//   - MasterUsername / MasterPasswordHash: HTTP Basic credentials for the
//     /master routes; both empty disables them.
type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	DatabaseDriver  string
	DatabaseDSN     string
	AutoMigrate     bool
	SecretKey       string
	SessionLifetime time.Duration
	CacheEnabled    bool
	CacheTTL        time.Duration
	LogLevel        string
	Users           []SeedUser

	MasterUsername     string
	MasterPasswordHash string
}

// SeedUser is an account provisioned from configuration.
type SeedUser struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Groups   []string `json:"groups"`
	// Enabled defaults to true when omitted.
	Enabled *bool `json:"enabled,omitempty"`
}

func (u SeedUser) IsEnabled() bool {
	return u.Enabled == nil || *u.Enabled
}

// LoadDefaults populates Config with development defaults.
// NOTE: SecretKey is left empty on purpose; Validate rejects it.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = "0.0.0.0:3000"
	c.GRPCAddr = ":50051"
	c.DatabaseDriver = repomanager.DriverSQLite
	c.DatabaseDSN = "gophauth.db"
	c.AutoMigrate = true
	c.SecretKey = ""
	c.SessionLifetime = 24 * time.Hour
	c.CacheEnabled = true
	c.CacheTTL = tokens.DefaultCacheTTL
	c.LogLevel = "info"
	c.Users = nil
	c.MasterUsername = ""
	c.MasterPasswordHash = ""
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}

// Validate reports every problem found, joined into one error matching
// common.ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error

	if len(c.SecretKey) < tokens.MinSecretLength {
		errs = append(errs, fmt.Errorf("secret key must be at least %d characters", tokens.MinSecretLength))
	}
	if c.SessionLifetime <= 0 {
		errs = append(errs, errors.New("session lifetime must be positive"))
	}
	if c.CacheEnabled && c.CacheTTL <= 0 {
		errs = append(errs, errors.New("cache ttl must be positive when the cache is enabled"))
	}
	if _, err := repomanager.New(c.DatabaseDriver); err != nil {
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.DatabaseDriver))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[string]struct{}, len(c.Users))
	for i, u := range c.Users {
		if u.Username == "" {
			errs = append(errs, fmt.Errorf("users[%d]: username is required", i))
			continue
		}
		if _, dup := seen[u.Username]; dup {
			errs = append(errs, fmt.Errorf("users[%d]: duplicate username %q", i, u.Username))
		}
		seen[u.Username] = struct{}{}
		if u.Password == "" {
			errs = append(errs, fmt.Errorf("users[%d]: password is required", i))
		}
	}

	switch {
	case c.MasterUsername == "" && c.MasterPasswordHash == "":
	case c.MasterUsername == "" || c.MasterPasswordHash == "":
		errs = append(errs, errors.New("master username and master password hash must be set together"))
	default:
		if err := password.CheckHash(c.MasterPasswordHash); err != nil {
			errs = append(errs, fmt.Errorf("master password hash: %w", err))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", common.ErrInvalidConfig, errors.Join(errs...))
}

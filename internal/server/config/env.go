package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by the config,
// e.g. GOPHAUTH_SECRET_KEY or GOPHAUTH_CACHE_TTL.
const EnvPrefix = "GOPHAUTH_"

// parseEnv overlays GOPHAUTH_* environment variables. Malformed values panic,
// like malformed JSON files.
func parseEnv(config *Config) {
	if err := LoadEnv(config); err != nil {
		panic(err)
	}
}

// LoadEnv overlays GOPHAUTH_* environment variables onto config.
func LoadEnv(config *Config) error {
	k := koanf.New(".")
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value
		},
	}), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	strs := map[string]*string{
		"http_addr":       &config.HTTPAddr,
		"grpc_addr":       &config.GRPCAddr,
		"database_driver": &config.DatabaseDriver,
		"database_dsn":    &config.DatabaseDSN,
		"secret_key":      &config.SecretKey,
		"log_level":       &config.LogLevel,

		"master_username":      &config.MasterUsername,
		"master_password_hash": &config.MasterPasswordHash,
	}
	for key, dst := range strs {
		if k.Exists(key) {
			*dst = k.String(key)
		}
	}

	bools := map[string]*bool{
		"auto_migrate":  &config.AutoMigrate,
		"cache_enabled": &config.CacheEnabled,
	}
	for key, dst := range bools {
		if !k.Exists(key) {
			continue
		}
		v, err := strconv.ParseBool(k.String(key))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, strings.ToUpper(key), err)
		}
		*dst = v
	}

	durations := map[string]*time.Duration{
		"session_lifetime": &config.SessionLifetime,
		"cache_ttl":        &config.CacheTTL,
	}
	for key, dst := range durations {
		if !k.Exists(key) {
			continue
		}
		v, err := time.ParseDuration(k.String(key))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, strings.ToUpper(key), err)
		}
		*dst = v
	}

	return nil
}

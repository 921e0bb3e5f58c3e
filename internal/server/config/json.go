package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// JsonConfig is the on-disk DTO. Pointer and zero-valued fields that are
// absent from the file leave the corresponding Config value untouched.
type JsonConfig struct {
	HTTPAddr        string         `json:"http_addr"`
	GRPCAddr        *string        `json:"grpc_addr"`
	DatabaseDriver  string         `json:"database_driver"`
	DatabaseDSN     string         `json:"database_dsn"`
	AutoMigrate     *bool          `json:"auto_migrate"`
	SecretKey       string         `json:"secret_key"`
	SessionLifetime timex.Duration `json:"session_lifetime"`
	CacheEnabled    *bool          `json:"cache_enabled"`
	CacheTTL        timex.Duration `json:"cache_ttl"`
	LogLevel        string         `json:"log_level"`
	Users           []SeedUser     `json:"users"`

	MasterUsername     string `json:"master_username"`
	MasterPasswordHash string `json:"master_password_hash"`
}

// parseJson loads the file named by -c/-config into config. Without the flag
// nothing is loaded. An unreadable or invalid file panics.
func parseJson(config *Config) {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return
	}
	if err := LoadJSONFile(config, path); err != nil {
		panic(err)
	}
}

// LoadJSONFile overlays the JSON file at path onto config.
func LoadJSONFile(config *Config, path string) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	if c.GRPCAddr != nil {
		config.GRPCAddr = *c.GRPCAddr
	}
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	if c.AutoMigrate != nil {
		config.AutoMigrate = *c.AutoMigrate
	}
	setString(&config.SecretKey, c.SecretKey)
	if c.SessionLifetime.Duration != 0 {
		config.SessionLifetime = c.SessionLifetime.Duration
	}
	if c.CacheEnabled != nil {
		config.CacheEnabled = *c.CacheEnabled
	}
	if c.CacheTTL.Duration != 0 {
		config.CacheTTL = c.CacheTTL.Duration
	}
	setString(&config.LogLevel, c.LogLevel)
	if c.Users != nil {
		config.Users = c.Users
	}
	setString(&config.MasterUsername, c.MasterUsername)
	setString(&config.MasterPasswordHash, c.MasterPasswordHash)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Package daemon holds the server configuration: defaults, the TOML
// config file, and environment overrides for secrets.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full kami server configuration.
type Config struct {
	API      APIConfig      `toml:"api"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Limits   LimitsConfig   `toml:"limits"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	// Dir is the directory holding the database file.
	Dir string `toml:"dir"`
}

// AuthConfig configures admin authentication.
type AuthConfig struct {
	// JWTSecret signs admin tokens. Overridable via KAMI_JWT_SECRET.
	JWTSecret string `toml:"jwt_secret"`
	// TokenTTLHours is how long issued tokens stay valid.
	TokenTTLHours int `toml:"token_ttl_hours"`
	// AdminUsername/AdminPassword bootstrap the first admin account.
	// The password is overridable via KAMI_ADMIN_PASSWORD.
	AdminUsername string `toml:"admin_username"`
	AdminPassword string `toml:"admin_password"`
}

// LimitsConfig configures abuse protection.
type LimitsConfig struct {
	// VerifyPerMinute caps verification attempts per client IP.
	VerifyPerMinute int `toml:"verify_per_minute"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8321,
		},
		Database: DatabaseConfig{
			Dir: defaultDataDir(),
		},
		Auth: AuthConfig{
			JWTSecret:     "",
			TokenTTLHours: 168, // 7 days
			AdminUsername: "admin",
			AdminPassword: "admin123",
		},
		Limits: LimitsConfig{
			VerifyPerMinute: 30,
		},
	}
}

// Load reads config from path, layering file values over the defaults and
// environment overrides over both. A missing file is not an error; an
// empty path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// Secrets prefer the environment over the config file.
	if secret := os.Getenv("KAMI_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if password := os.Getenv("KAMI_ADMIN_PASSWORD"); password != "" {
		cfg.Auth.AdminPassword = password
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("invalid api port %d", c.API.Port)
	}
	if c.Auth.TokenTTLHours < 1 {
		return fmt.Errorf("invalid token ttl %d hours", c.Auth.TokenTTLHours)
	}
	if c.Limits.VerifyPerMinute < 1 {
		return fmt.Errorf("invalid verify rate limit %d", c.Limits.VerifyPerMinute)
	}
	return nil
}

// Addr returns the host:port the API listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// defaultDataDir is ~/.kami, falling back to the working directory when
// the home directory cannot be resolved.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kami"
	}
	return filepath.Join(home, ".kami")
}

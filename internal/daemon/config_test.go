package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8321 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8321)
	}
	if cfg.Auth.TokenTTLHours != 168 {
		t.Errorf("Auth.TokenTTLHours = %d, want 168", cfg.Auth.TokenTTLHours)
	}
	if cfg.Auth.AdminUsername != "admin" {
		t.Errorf("Auth.AdminUsername = %q, want %q", cfg.Auth.AdminUsername, "admin")
	}
	if cfg.Limits.VerifyPerMinute != 30 {
		t.Errorf("Limits.VerifyPerMinute = %d, want 30", cfg.Limits.VerifyPerMinute)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[api]
host = "0.0.0.0"
port = 9000

[auth]
jwt_secret = "from-file"

[limits]
verify_per_minute = 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.API.Host != "0.0.0.0" || cfg.API.Port != 9000 {
		t.Errorf("api = %s", cfg.Addr())
	}
	if cfg.Auth.JWTSecret != "from-file" {
		t.Errorf("JWTSecret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Limits.VerifyPerMinute != 5 {
		t.Errorf("VerifyPerMinute = %d", cfg.Limits.VerifyPerMinute)
	}
	// Untouched sections keep their defaults.
	if cfg.Auth.TokenTTLHours != 168 {
		t.Errorf("TokenTTLHours = %d, want default 168", cfg.Auth.TokenTTLHours)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[auth]
jwt_secret = "from-file"
admin_password = "from-file"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KAMI_JWT_SECRET", "from-env")
	t.Setenv("KAMI_ADMIN_PASSWORD", "env-password")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Errorf("JWTSecret = %q, want env value", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.AdminPassword != "env-password" {
		t.Errorf("AdminPassword = %q, want env value", cfg.Auth.AdminPassword)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.API.Port != 8321 {
		t.Errorf("Port = %d, want default", cfg.API.Port)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	cases := []string{
		"[api]\nport = 0\n",
		"[auth]\ntoken_ttl_hours = 0\n",
		"[limits]\nverify_per_minute = -1\n",
	}
	for _, content := range cases {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("Load(%q) accepted invalid config", content)
		}
	}
}

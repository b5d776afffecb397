package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "ldap://localhost:389", cfg.Directory.Server)
	assert.Equal(t, 15*time.Minute, cfg.Directory.SyncInterval)
	assert.Equal(t, 10*time.Second, cfg.Directory.ConnectTimeout)
	assert.Equal(t, "(objectClass=*)", cfg.Directory.MemberFilter)
	assert.Equal(t, "uid", cfg.Directory.MemberMapping.Username)
	assert.Equal(t, "member", cfg.Directory.GroupMapping.Members)
	assert.Equal(t, "openkeg", cfg.JWT.Issuer)
	assert.Equal(t, 30*time.Minute, cfg.JWT.Expiration)
	assert.Equal(t, 60*24*time.Hour, cfg.JWT.RenewalExpiration)
	assert.Equal(t, map[string]string{"archive": "Archivists"}, cfg.Roles)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)

	// No key material configured: a warning, not an error.
	assert.NotEmpty(t, cfg.Warnings)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("KEG_LISTEN_ADDR", ":9000")
	t.Setenv("KEG_LDAP_SERVER", "ldaps://dir.example.org:636")
	t.Setenv("KEG_LDAP_DN", "cn=service,dc=example,dc=org")
	t.Setenv("KEG_LDAP_SYNC_INTERVAL_SECONDS", "60")
	t.Setenv("KEG_JWT_EXPIRATION_MINUTES", "5")
	t.Setenv("KEG_JWT_RENEWAL_EXPIRATION_HOURS", "12")
	t.Setenv("KEG_LDAP_ATTR_USERNAME", "sAMAccountName")
	t.Setenv("KEG_LDAP_TITLE_ORDER", "Obmann, Kapellmeister ,Archivar")
	t.Setenv("KEG_ROLES", "archive=Archivare,board=Vorstand")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "ldaps://dir.example.org:636", cfg.Directory.Server)
	assert.Equal(t, time.Minute, cfg.Directory.SyncInterval)
	assert.Equal(t, 5*time.Minute, cfg.JWT.Expiration)
	assert.Equal(t, 12*time.Hour, cfg.JWT.RenewalExpiration)
	assert.Equal(t, "sAMAccountName", cfg.Directory.MemberMapping.Username)
	assert.Equal(t, []string{"Obmann", "Kapellmeister", "Archivar"}, cfg.Directory.TitleOrder)
	assert.Equal(t, map[string]string{"archive": "Archivare", "board": "Vorstand"}, cfg.Roles)
}

func TestLoadFromEnvMalformedRoles(t *testing.T) {
	t.Setenv("KEG_ROLES", "archive")

	_, err := LoadFromEnv()
	assert.Error(t, err)
}

func TestLoadFromEnvProductionRequiresKeys(t *testing.T) {
	t.Setenv("KEG_ENV", "production")
	t.Setenv("KEG_CORS_ALLOWED_ORIGINS", "https://keg.example.org")

	_, err := LoadFromEnv()
	assert.ErrorContains(t, err, "KEG_JWT_PRIVATE_KEY_PATH")
}

func TestLoadFromEnvProductionRejectsCORSWildcard(t *testing.T) {
	t.Setenv("KEG_ENV", "production")
	t.Setenv("KEG_JWT_PRIVATE_KEY_PATH", "/etc/keg/private.pem")
	t.Setenv("KEG_JWT_PUBLIC_KEY_PATH", "/etc/keg/public.pem")

	_, err := LoadFromEnv()
	assert.ErrorContains(t, err, "CORS")
}

func TestSlogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		assert.Equal(t, tt.want, cfg.SlogLevel(), "level %q", tt.level)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nKEG_DOTENV_PROBE=from-file\nKEG_DOTENV_QUOTED='quoted value'\n\nnot a pair\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("KEG_DOTENV_PROBE", "")
	t.Setenv("KEG_DOTENV_QUOTED", "")
	require.NoError(t, LoadDotEnv(path))

	assert.Equal(t, "from-file", os.Getenv("KEG_DOTENV_PROBE"))
	assert.Equal(t, "quoted value", os.Getenv("KEG_DOTENV_QUOTED"))

	// Existing environment wins over the file.
	t.Setenv("KEG_DOTENV_PROBE", "from-env")
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-env", os.Getenv("KEG_DOTENV_PROBE"))
}

func TestLoadDotEnvMissingFile(t *testing.T) {
	t.Parallel()

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SlpAus/standing-backend/internal/platform/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := writeConfig(t, `
server:
  mode: debug
  address: ":9090"
  cors:
    allowedOrigins: ["https://example.org"]
database:
  driver: postgres
  dsn: "host=db user=app"
  redis:
    address: "cache:6379"
    db: 2
auth:
  jwtSecret: "`+testSecret+`"
  tokenTTL: 1h
log:
  level: debug
`)

	cfg, err := config.LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, []string{"https://example.org"}, cfg.Server.Cors.AllowedOrigins)
	assert.Equal(t, config.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "cache:6379", cfg.Database.Redis.Address)
	assert.Equal(t, 2, cfg.Database.Redis.DB)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigDefaultsAndEnv(t *testing.T) {
	dir := writeConfig(t, "auth:\n  jwtSecret: \""+testSecret+"\"\n")
	t.Setenv("SERVER_ADDRESS", ":7070")

	cfg, err := config.LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, config.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 72*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Server.TrustedProxies, "默认不信任任何代理")
}

func TestValidate(t *testing.T) {
	base := config.Config{
		Server:   config.ServerConfig{Mode: "release"},
		Database: config.DatabaseConfig{Driver: config.DriverSQLite, DSN: "x.db"},
		Auth:     config.AuthConfig{JWTSecret: testSecret, TokenTTL: time.Hour},
	}
	require.NoError(t, base.Validate())

	badMode := base
	badMode.Server.Mode = "production"
	assert.Error(t, badMode.Validate())

	badDriver := base
	badDriver.Database.Driver = "mysql"
	assert.Error(t, badDriver.Validate())

	shortSecret := base
	shortSecret.Auth.JWTSecret = "short"
	assert.Error(t, shortSecret.Validate())

	noTTL := base
	noTTL.Auth.TokenTTL = 0
	assert.Error(t, noTTL.Validate())

	proxies := base
	proxies.Server.TrustedProxies = []string{"10.0.0.1", "172.16.0.0/12", "::1"}
	assert.NoError(t, proxies.Validate())

	badProxy := base
	badProxy.Server.TrustedProxies = []string{"gateway.local"}
	assert.Error(t, badProxy.Validate())
}

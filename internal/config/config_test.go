package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadFrom("")
	require.NoError(t, err)
	require.Equal(t, "development", cfg.Environment)
	require.Equal(t, "http://localhost:8080/api/v1", cfg.API.BaseURL)
	require.Equal(t, 15*time.Second, cfg.API.Timeout)
	require.Equal(t, "file", cfg.Session.Store)
	require.Equal(t, ".vote-session.json", cfg.Session.Path)
	require.Equal(t, 30*time.Second, cfg.Worker.ClaimInterval)
	require.Equal(t, 10, cfg.Worker.MaxDeliveries)
	require.Equal(t, 720*time.Hour, cfg.DevServer.Security.JWTRefreshTTL)
}

func TestLoadFrom_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "console.yaml")
	content := `
environment: production
api:
  baseurl: https://vote.example.org/api/v1
  timeout: 3s
session:
  store: redis
devserver:
  allowcorsorigins: https://a.example.org,https://b.example.org
  seedusers:
    - email: admin@example.org
      password: secret-pass
      fullname: Admin
      role: admin
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("VOTE_API_REFRESHTIMEOUT", "2s")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	require.Equal(t, "production", cfg.Environment)
	require.Equal(t, "https://vote.example.org/api/v1", cfg.API.BaseURL)
	require.Equal(t, 3*time.Second, cfg.API.Timeout)
	require.Equal(t, 2*time.Second, cfg.API.RefreshTimeout)
	require.Equal(t, "redis", cfg.Session.Store)
	require.Equal(t, []string{"https://a.example.org", "https://b.example.org"}, cfg.DevServer.AllowCORSOrigins)
	require.Len(t, cfg.DevServer.SeedUsers, 1)
	require.Equal(t, "admin", cfg.DevServer.SeedUsers[0].Role)
}

func TestLoadFrom_MissingExplicitFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"HOST", "PORT", "ALLOWED_ORIGINS", "DATA_DIR", "STORE_BACKEND",
	"MONGO_URI", "LOG_LEVEL", "LOG_FORMAT", "DEFAULT_LIMIT",
}

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "json", cfg.Store.Backend)
	assert.Equal(t, "./data", cfg.Store.DataDir)
	assert.Equal(t, 10, cfg.Pagination.DefaultLimit)
	assert.Equal(t, 100, cfg.Pagination.MaxLimit)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: 9090
  allowed_origins: ["https://app.example.com"]
  shutdown_timeout: 3s
store:
  backend: sqlite
  data_dir: /srv/todos
logging:
  format: json
pagination:
  default_limit: 25
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset keys keep defaults")
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "/srv/todos", cfg.Store.DataDir)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 25, cfg.Pagination.DefaultLimit)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: 9090
store:
  backend: sqlite
`)
	t.Setenv("PORT", "7070")
	t.Setenv("STORE_BACKEND", "badger")
	t.Setenv("DATA_DIR", "/tmp/todos")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEFAULT_LIMIT", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "badger", cfg.Store.Backend)
	assert.Equal(t, "/tmp/todos", cfg.Store.DataDir)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 5, cfg.Pagination.DefaultLimit)
}

func TestLoad_Errors(t *testing.T) {
	cases := map[string]struct {
		file string
		env  map[string]string
	}{
		"malformed yaml":    {file: "server: [valid"},
		"unknown backend":   {file: "store:\n  backend: redis\n"},
		"bad port env":      {env: map[string]string{"PORT": "eighty"}},
		"port out of range": {file: "server:\n  port: 70000\n"},
		"bad limit":         {file: "pagination:\n  default_limit: 0\n"},
		"limit over max":    {file: "pagination:\n  default_limit: 50\n  max_limit: 20\n"},
		"bad log level":     {env: map[string]string{"LOG_LEVEL": "chatty"}},
		"empty data dir":    {file: "store:\n  data_dir: \"\"\n"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			path := ""
			if tc.file != "" {
				path = writeConfig(t, tc.file)
			}
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MemoryBackendNeedsNoDataDir(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "store:\n  backend: memory\n  data_dir: \"\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Backend)
}

func TestLoad_ZeroMaxLimitDisablesCap(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "pagination:\n  default_limit: 500\n  max_limit: 0\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Pagination.MaxLimit)
	assert.Equal(t, 500, cfg.Pagination.DefaultLimit)
}

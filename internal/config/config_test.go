package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-companion/internal/emotion"
)

func mapLookup(m map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 100, cfg.Cache.Capacity)
	assert.Equal(t, 5*time.Second, cfg.Stream.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.Stream.KeepaliveInterval)
	assert.Empty(t, cfg.Providers.BirdeyeAPIKey)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(mapLookup(map[string]string{
		"HTTP_ADDR":          ":8080",
		"BIRDEYE_API_KEY":    "bk",
		"OPENROUTER_API_KEY": "ok",
		"SITE_URL":           "https://companion.example",
		"REDIS_ADDR":         "localhost:6379",
		"REDIS_DB":           "2",
		"CACHE_TTL":          "10s",
		"CACHE_CAPACITY":     "50",
		"POLL_INTERVAL":      "2s",
		"KEEPALIVE_INTERVAL": "15s",
		"LOG_FORMAT":         "json",
		"LLM_MODEL":          "",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "bk", cfg.Providers.BirdeyeAPIKey)
	assert.Equal(t, "ok", cfg.LLM.APIKey)
	assert.Equal(t, "https://companion.example", cfg.SiteURL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 10*time.Second, cfg.CacheOptions().TTL)
	assert.Equal(t, 50, cfg.CacheOptions().Capacity)
	assert.Equal(t, 2*time.Second, cfg.StreamSettings().PollInterval)
	assert.Equal(t, 15*time.Second, cfg.StreamSettings().KeepaliveInterval)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.LLM.Model, "empty env values are ignored")
}

func TestApplyEnv_Invalid(t *testing.T) {
	for _, env := range []map[string]string{
		{"REDIS_DB": "one"},
		{"CACHE_TTL": "soon"},
		{"POLL_INTERVAL": "5"},
	} {
		cfg := Default()
		assert.Error(t, cfg.applyEnv(mapLookup(env)), "%v", env)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":4000"
log:
  level: debug
  format: text
providers:
  birdeye_api_key: from-yaml
cache:
  ttl: 3s
stream:
  poll_interval: 1s
lines:
  happy:
    - "custom happy line"
`), 0o600))

	t.Setenv("HTTP_ADDR", ":5000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.HTTPAddr, "env wins over yaml")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "from-yaml", cfg.Providers.BirdeyeAPIKey)
	assert.Equal(t, 3*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 100, cfg.Cache.Capacity, "unset keys keep defaults")
	assert.Equal(t, time.Second, cfg.Stream.PollInterval)
	assert.Equal(t, []string{"custom happy line"}, cfg.Lines[emotion.Happy])
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("lines:\n  ecstatic: [\"x\"]\n"), 0o600))
	_, err = Load(path)
	assert.ErrorContains(t, err, "unknown emotion")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.HTTPAddr = "" }},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }},
		{"zero capacity", func(c *Config) { c.Cache.Capacity = 0 }},
		{"zero poll", func(c *Config) { c.Stream.PollInterval = 0 }},
		{"negative db", func(c *Config) { c.Redis.DB = -1 }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// Package config loads service configuration from defaults, an optional YAML
// file, a .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"token-companion/internal/cache"
	"token-companion/internal/emotion"
	"token-companion/internal/stream"
)

// Config is the full service configuration.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	// SiteURL is sent as HTTP-Referer to the LLM provider for attribution.
	SiteURL string `yaml:"site_url"`

	Log       LogConfig       `yaml:"log"`
	Providers ProvidersConfig `yaml:"providers"`
	LLM       LLMConfig       `yaml:"llm"`
	Solana    SolanaConfig    `yaml:"solana"`
	Redis     RedisConfig     `yaml:"redis"`
	Stream    StreamConfig    `yaml:"stream"`
	Cache     CacheConfig     `yaml:"cache"`

	// Lines overrides canned companion lines per emotion.
	Lines map[emotion.Emotion][]string `yaml:"lines"`
}

// LogConfig selects level and formatter.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// ProvidersConfig configures upstream price providers.
type ProvidersConfig struct {
	DexScreenerBaseURL string  `yaml:"dexscreener_base_url"`
	JupiterBaseURL     string  `yaml:"jupiter_base_url"`
	BirdeyeBaseURL     string  `yaml:"birdeye_base_url"`
	BirdeyeAPIKey      string  `yaml:"birdeye_api_key"`
	RateLimit          float64 `yaml:"rate_limit"`
	RateBurst          int     `yaml:"rate_burst"`
}

// LLMConfig configures message generation.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// SolanaConfig configures the optional on-chain metadata source.
type SolanaConfig struct {
	RPCEndpoint string `yaml:"rpc_endpoint"`
}

// RedisConfig enables the shared cache backend when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StreamConfig configures streaming sessions.
type StreamConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	KeepaliveInterval time.Duration `yaml:"keepalive_interval"`
}

// CacheConfig configures the price and chart caches.
type CacheConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	Capacity int           `yaml:"capacity"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr: ":3000",
		Log:      LogConfig{Level: "info", Format: "text"},
		Providers: ProvidersConfig{
			RateLimit: 5,
			RateBurst: 10,
		},
		Stream: StreamConfig{
			PollInterval:      stream.DefaultPollInterval,
			KeepaliveInterval: stream.DefaultKeepaliveInterval,
		},
		Cache: CacheConfig{
			TTL:      cache.DefaultTTL,
			Capacity: cache.DefaultCapacity,
		},
	}
}

// Load builds a Config. path may be empty; a missing .env is ignored.
// Existing environment variables win over .env entries.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("HTTP_ADDR", &c.HTTPAddr)
	str("SITE_URL", &c.SiteURL)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("DEXSCREENER_BASE_URL", &c.Providers.DexScreenerBaseURL)
	str("JUPITER_BASE_URL", &c.Providers.JupiterBaseURL)
	str("BIRDEYE_BASE_URL", &c.Providers.BirdeyeBaseURL)
	str("BIRDEYE_API_KEY", &c.Providers.BirdeyeAPIKey)
	str("OPENROUTER_API_KEY", &c.LLM.APIKey)
	str("LLM_MODEL", &c.LLM.Model)
	str("LLM_BASE_URL", &c.LLM.BaseURL)
	str("SOLANA_RPC_ENDPOINT", &c.Solana.RPCEndpoint)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)

	if err := envInt(lookup, "REDIS_DB", &c.Redis.DB); err != nil {
		return err
	}
	if err := envInt(lookup, "CACHE_CAPACITY", &c.Cache.Capacity); err != nil {
		return err
	}
	if err := envDuration(lookup, "CACHE_TTL", &c.Cache.TTL); err != nil {
		return err
	}
	if err := envDuration(lookup, "POLL_INTERVAL", &c.Stream.PollInterval); err != nil {
		return err
	}
	return envDuration(lookup, "KEEPALIVE_INTERVAL", &c.Stream.KeepaliveInterval)
}

func envInt(lookup lookupFunc, key string, dst *int) error {
	v, ok := lookup(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envDuration(lookup lookupFunc, key string, dst *time.Duration) error {
	v, ok := lookup(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("http_addr is required")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Stream.PollInterval <= 0 || c.Stream.KeepaliveInterval <= 0 {
		return errors.New("stream intervals must be positive")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis db must be >= 0, got %d", c.Redis.DB)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	for e := range c.Lines {
		if !e.Valid() {
			return fmt.Errorf("lines: unknown emotion %q", e)
		}
	}
	return nil
}

// CacheOptions returns cache.Options for the configured TTL and capacity.
func (c Config) CacheOptions() cache.Options {
	return cache.Options{TTL: c.Cache.TTL, Capacity: c.Cache.Capacity}
}

// StreamSettings returns the stream session configuration.
func (c Config) StreamSettings() stream.Config {
	return stream.Config{
		PollInterval:      c.Stream.PollInterval,
		KeepaliveInterval: c.Stream.KeepaliveInterval,
	}
}

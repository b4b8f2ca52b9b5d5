// Package main runs the token companion backend:
// - Price and chart lookups over DexScreener, Jupiter and Birdeye
// - Streaming token updates over SSE and websocket
// - Companion message generation
// - Health, status and Prometheus metrics
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"token-companion/internal/aggregator"
	"token-companion/internal/cache"
	"token-companion/internal/companion"
	"token-companion/internal/config"
	"token-companion/internal/domain"
	"token-companion/internal/emotion"
	"token-companion/internal/market"
	"token-companion/internal/provider"
	"token-companion/internal/server"
	"token-companion/internal/solana"
	"token-companion/internal/stream"
)

// caches groups the cache backends used by the services.
type caches struct {
	prices   cache.Cache[domain.PriceResult]
	charts   cache.Cache[domain.ChartSnapshot]
	metadata cache.Cache[solana.MintMetadata]
	close    func()
}

func main() {
	// Parse flags (env vars as defaults)
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "Optional YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.HTTPAddr = *addr
	}

	logger := newLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backends := newCaches(ctx, cfg, logger)
	defer backends.close()

	// Providers in fallback order
	limit := provider.WithRateLimit(cfg.Providers.RateLimit, cfg.Providers.RateBurst)
	dex := provider.NewDexScreener(cfg.Providers.DexScreenerBaseURL, limit)
	jup := provider.NewJupiter(cfg.Providers.JupiterBaseURL, limit)
	bird := provider.NewBirdeye(cfg.Providers.BirdeyeBaseURL, cfg.Providers.BirdeyeAPIKey, limit)
	if !bird.Enabled() {
		logger.Info("BIRDEYE_API_KEY not set, birdeye fallback disabled")
	}

	prices := aggregator.NewService(aggregator.New(logger, dex, jup, bird), backends.prices, logger)

	// On-chain metadata is optional
	var metadata market.MetadataReader
	if cfg.Solana.RPCEndpoint != "" {
		rpc := solana.NewHTTPClient(cfg.Solana.RPCEndpoint,
			solana.WithRateLimit(cfg.Providers.RateLimit, cfg.Providers.RateBurst),
		)
		metadata = solana.NewMetadataSource(rpc, backends.metadata, logger)
		logger.WithField("endpoint", cfg.Solana.RPCEndpoint).Info("on-chain mint metadata enabled")
	}

	feed := market.NewFeed(prices, metadata, logger)
	charts := market.NewChartService(dex, metadata, backends.charts, logger)
	sessions := stream.NewManager(feed, cfg.StreamSettings(), logger)

	var generator emotion.Generator
	if cfg.LLM.APIKey != "" {
		generator = companion.NewLLMClient(cfg.LLM.APIKey,
			companion.WithBaseURL(cfg.LLM.BaseURL),
			companion.WithModel(cfg.LLM.Model),
			companion.WithSiteURL(cfg.SiteURL),
		)
	} else {
		logger.Info("OPENROUTER_API_KEY not set, /generate-message disabled")
	}

	srv := server.New(server.Options{
		Addr:      cfg.HTTPAddr,
		Prices:    prices,
		Charts:    charts,
		Sessions:  sessions,
		Generator: generator,
		Logger:    logger,
	})

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Infof("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warnf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = srv.Run(ctx)
	close(done)
	if err != nil {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Info("Shutdown complete")
}

// newLogger builds the root logger from config.
func newLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logger.Warnf("Unknown log level %q, using info", cfg.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// newCaches returns Redis-backed caches when REDIS_ADDR is set, else in-memory ones.
func newCaches(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) caches {
	opts := cfg.CacheOptions()
	metaOpts := cache.Options{TTL: solana.DefaultMetadataTTL, Capacity: 10 * opts.Capacity}

	if cfg.Redis.Addr == "" {
		return caches{
			prices:   cache.NewMemory[domain.PriceResult](opts),
			charts:   cache.NewMemory[domain.ChartSnapshot](opts),
			metadata: cache.NewMemory[solana.MintMetadata](metaOpts),
			close:    func() {},
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		// Redis errors degrade to cache misses, so keep going.
		logger.WithError(err).Warn("redis ping failed")
	} else {
		logger.WithField("addr", cfg.Redis.Addr).Info("using redis cache")
	}

	return caches{
		prices:   cache.NewRedis[domain.PriceResult](client, cache.DefaultRedisPrefix+":price", opts, logger),
		charts:   cache.NewRedis[domain.ChartSnapshot](client, cache.DefaultRedisPrefix+":chart", opts, logger),
		metadata: cache.NewRedis[solana.MintMetadata](client, cache.DefaultRedisPrefix+":mint", metaOpts, logger),
		close:    func() { client.Close() },
	}
}

// Package main is a terminal companion: it follows one token's stream,
// folds updates into a local view, and prints the companion's reactions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"token-companion/internal/client"
	"token-companion/internal/companion"
	"token-companion/internal/config"
	"token-companion/internal/emotion"
	"token-companion/internal/solana"
	"token-companion/internal/stream"
)

func main() {
	// Parse flags (env vars as defaults)
	serverURL := flag.String("server", envOr("COMPANION_SERVER", "http://localhost:3000"), "Companion server base URL")
	token := flag.String("token", os.Getenv("TOKEN_ADDRESS"), "Token mint address to follow")
	transport := flag.String("transport", "sse", "Stream transport (sse, ws)")
	debounce := flag.Duration("debounce", client.DefaultDebounce, "Minimum spacing between applied updates")
	verbose := flag.Bool("v", false, "Debug logging")
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "Optional YAML config file (canned lines)")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	if *token == "" {
		logger.Fatal("--token is required")
	}
	if err := solana.ValidateAddress(*token); err != nil {
		logger.Fatalf("Invalid --token: %v", err)
	}

	base := strings.TrimRight(*serverURL, "/")
	var source client.Source
	switch *transport {
	case "sse":
		source = client.NewSSESource(base, nil)
	case "ws":
		source = client.NewWSSource("ws" + strings.TrimPrefix(base, "http"))
	default:
		logger.Fatalf("Unknown --transport %q", *transport)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reducer := client.NewReducer(*token, *debounce, nil)
	history := client.NewHistory(client.DefaultHistorySize)
	scheduler := emotion.NewScheduler(
		companion.NewRemoteGenerator(base, nil),
		func(a emotion.Announcement) {
			tag := ""
			if a.Fallback {
				tag = " (canned)"
			}
			fmt.Printf("[%s] %s%s\n", a.Emotion, a.Message, tag)
		},
		emotion.WithLines(emotion.Lines(cfg.Lines)),
		emotion.WithLogger(logger),
	)
	defer scheduler.Stop()

	st := client.NewStream(source, *token, client.WithLogger(logger))
	go func() {
		<-ctx.Done()
		st.Close()
	}()

	err = st.Run(ctx, func(ev stream.Event) {
		switch ev.Type {
		case stream.EventConnected:
			logger.WithField("token", ev.Token).Info("connected")
		case stream.EventError:
			logger.WithField("message", ev.Message).Warn("server reported error")
		case stream.EventUpdate:
			state, ok := reducer.Apply(ev.Data)
			if !ok {
				return
			}
			history.Add(time.UnixMilli(state.LastUpdated), state.Price)
			ratio, _ := history.DeltaRatio()

			fmt.Printf("%s  $%.10g  %+.2f%%  mcap $%.0f\n", symbolOf(state.Symbol), state.Price, state.Change24h, state.MarketCap)
			scheduler.Observe(emotion.Request{
				Emotion:     emotion.Resolve(state.Change24h, ratio),
				Change24h:   state.Change24h,
				Price:       state.Price,
				TokenSymbol: state.Symbol,
			})
		}
	})
	switch {
	case err == nil, errors.Is(err, context.Canceled):
	case errors.Is(err, client.ErrRetriesExhausted):
		logger.Fatalf("Connection lost, giving up: %v", err)
	default:
		logger.Fatalf("Stream error: %v", err)
	}
}

func symbolOf(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

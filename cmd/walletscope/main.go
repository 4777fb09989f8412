package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/walletscope/pkg/config"
	"github.com/walletscope/pkg/httpapi"
	"github.com/walletscope/pkg/mcpserver"
	"github.com/walletscope/pkg/wallet"
)

var version = "dev"

func main() {
	// stdout carries the MCP stream; logs go to stderr.
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	setLevel(cfg.LogLevel)
	log.Info().Str("version", version).Str("transport", cfg.Transport).Msg("🔍 walletscope starting...")

	svc := wallet.NewFromConfig(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	probeCtx, probeCancel := context.WithTimeout(ctx, cfg.RPCTimeout)
	statuses := svc.Probe(probeCtx)
	probeCancel()
	printSummary(os.Stderr, cfg, statuses)

	errCh := make(chan error, 1)
	switch cfg.Transport {
	case "http":
		go func() { errCh <- httpapi.New(svc, cfg.HTTPPort).Run(ctx) }()
	default:
		go func() { errCh <- server.ServeStdio(mcpserver.New(svc, version)) }()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down...")
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("server stopped")
			os.Exit(1)
		}
	}
	log.Info().Msg("goodbye 👋")
}

func setLevel(s string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || lvl == zerolog.NoLevel {
		log.Warn().Str("level", s).Msg("unknown LOG_LEVEL, using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func printSummary(w io.Writer, cfg *config.Config, statuses []wallet.ChainStatus) {
	fmt.Fprintln(w, "\n"+strings.Repeat("═", 60))
	fmt.Fprintln(w, "  🔍 WALLETSCOPE - RUNNING")
	fmt.Fprintln(w, strings.Repeat("═", 60))
	for _, st := range statuses {
		state := "✅ " + st.Client
		if st.Err != "" {
			state = "🔴 " + st.Err
		}
		fmt.Fprintf(w, "  %-10s %s\n", st.Chain, state)
	}
	fmt.Fprintf(w, "  Risk:      %s (token %s)\n", cfg.RiskProvider, config.MaskSecret(riskSecret(cfg)))
	if cfg.Transport == "http" {
		fmt.Fprintf(w, "  API:       http://localhost:%d\n", cfg.HTTPPort)
	} else {
		fmt.Fprintln(w, "  MCP:       stdio")
	}
	fmt.Fprintln(w, strings.Repeat("═", 60)+"\n")
}

func riskSecret(cfg *config.Config) string {
	switch cfg.RiskProvider {
	case "anthropic":
		return cfg.AnthropicAPIKey
	case "openai":
		return cfg.OpenAIAPIKey
	case "ollama":
		return cfg.OllamaURL
	default:
		return cfg.HFToken
	}
}

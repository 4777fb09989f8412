package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const DefaultSolanaRPC = "https://api.mainnet-beta.solana.com"

// Config is built once at startup and passed explicitly to every component.
// Nothing reads the environment after Load returns.
type Config struct {
	// Chain RPC endpoints. An empty endpoint means the chain is not configured.
	EthereumRPC string
	PolygonRPC  string
	ArbitrumRPC string
	SolanaRPC   string
	RPCTimeout  time.Duration

	// Price oracle
	DexScreenerAPI string
	PriceTimeout   time.Duration

	// Risk scoring oracle
	// RISK_PROVIDER: "huggingface" | "anthropic" | "openai" | "ollama"
	RiskProvider    string
	HFToken         string
	RiskModelURL    string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	OllamaURL       string
	AIModel         string
	RiskTimeout     time.Duration

	// Transport
	// TRANSPORT: "stdio" (MCP) | "http"
	Transport string
	HTTPPort  int

	LogLevel string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		EthereumRPC: strings.TrimSpace(os.Getenv("ETH_RPC")),
		PolygonRPC:  strings.TrimSpace(os.Getenv("POL_RPC")),
		ArbitrumRPC: strings.TrimSpace(os.Getenv("ARB_RPC")),
		SolanaRPC:   envOr("SOL_RPC", DefaultSolanaRPC),
		RPCTimeout:  time.Duration(envInt("RPC_TIMEOUT_SECONDS", 30)) * time.Second,

		DexScreenerAPI: envOr("DEXSCREENER_API", "https://api.dexscreener.com"),
		PriceTimeout:   time.Duration(envInt("PRICE_TIMEOUT_SECONDS", 10)) * time.Second,

		RiskProvider:    strings.ToLower(envOr("RISK_PROVIDER", "huggingface")),
		HFToken:         os.Getenv("HF_TOKEN"),
		RiskModelURL:    envOr("RISK_MODEL_URL", "https://api-inference.huggingface.co/models/ProsusAI/finbert"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OllamaURL:       os.Getenv("OLLAMA_URL"),
		AIModel:         os.Getenv("AI_MODEL"),
		RiskTimeout:     time.Duration(envInt("RISK_TIMEOUT_SECONDS", 30)) * time.Second,

		Transport: strings.ToLower(envOr("TRANSPORT", "stdio")),
		HTTPPort:  envInt("HTTP_PORT", 8080),

		LogLevel: envOr("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings that would make the process unable to start.
// Missing chain endpoints are not an error here: they surface when the chain
// is requested.
func (c *Config) Validate() error {
	switch c.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("TRANSPORT must be stdio or http, got %q", c.Transport)
	}
	if c.Transport == "http" && (c.HTTPPort < 1 || c.HTTPPort > 65535) {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	switch c.RiskProvider {
	case "huggingface", "anthropic", "openai", "ollama":
	default:
		return fmt.Errorf("RISK_PROVIDER %q is not supported", c.RiskProvider)
	}
	if c.RPCTimeout <= 0 || c.PriceTimeout <= 0 || c.RiskTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

// MaskSecret hides all but the first and last 4 characters of a secret.
func MaskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// helpers
func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

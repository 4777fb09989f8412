package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/walletscope/pkg/config"
)

// NewClassifier picks the oracle named by RISK_PROVIDER. It returns nil when
// that provider has no credentials; the scorer then answers unknown.
func NewClassifier(cfg *config.Config) Classifier {
	hc := &http.Client{Timeout: cfg.RiskTimeout}

	var c Classifier
	switch cfg.RiskProvider {
	case "huggingface":
		if cfg.HFToken != "" {
			c = &HuggingFaceClassifier{URL: cfg.RiskModelURL, Token: cfg.HFToken, HTTPClient: hc}
		}
	case "anthropic":
		if cfg.AnthropicAPIKey != "" {
			c = &LLMClassifier{
				Provider: "anthropic", APIKey: cfg.AnthropicAPIKey,
				Model:   modelOr(cfg.AIModel, "claude-sonnet-4-20250514"),
				BaseURL: "https://api.anthropic.com/v1/messages", HTTPClient: hc,
			}
		}
	case "openai":
		if cfg.OpenAIAPIKey != "" {
			c = &LLMClassifier{
				Provider: "openai", APIKey: cfg.OpenAIAPIKey,
				Model:   modelOr(cfg.AIModel, "gpt-4o"),
				BaseURL: "https://api.openai.com/v1/chat/completions", HTTPClient: hc,
			}
		}
	case "ollama":
		if cfg.OllamaURL != "" {
			c = &LLMClassifier{
				Provider: "ollama",
				Model:    modelOr(cfg.AIModel, "llama3.1"),
				BaseURL:  strings.TrimRight(cfg.OllamaURL, "/") + "/api/chat", HTTPClient: hc,
			}
		}
	}

	if c == nil {
		log.Warn().Str("provider", cfg.RiskProvider).Msg("⚠️ risk oracle not configured - risk labels will be unknown")
		return nil
	}
	log.Info().Str("provider", cfg.RiskProvider).Msg("🤖 risk oracle initialized")
	return c
}

func modelOr(model, fallback string) string {
	if model != "" {
		return model
	}
	return fallback
}

// ── HuggingFace inference ───────────────────────────────────

// HuggingFaceClassifier calls a text-classification model on the inference
// API (ProsusAI/finbert by default).
type HuggingFaceClassifier struct {
	URL        string
	Token      string
	HTTPClient *http.Client
}

func (h *HuggingFaceClassifier) Classify(ctx context.Context, text string) ([]Prediction, json.RawMessage, error) {
	body, _ := json.Marshal(map[string]string{"inputs": text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.Token)

	respBody, err := doRequest(httpClient(h.HTTPClient), req)
	if err != nil {
		return nil, nil, fmt.Errorf("huggingface: %w", err)
	}

	// Single input yields [[{label,score}...]]; some deployments flatten it.
	var nested [][]Prediction
	if err := json.Unmarshal(respBody, &nested); err == nil {
		if len(nested) == 0 {
			return nil, respBody, nil
		}
		return nested[0], respBody, nil
	}
	var flat []Prediction
	if err := json.Unmarshal(respBody, &flat); err != nil {
		return nil, nil, fmt.Errorf("huggingface: decode predictions: %w", err)
	}
	return flat, respBody, nil
}

// ── Chat LLMs (Anthropic, OpenAI, Ollama) ───────────────────

// LLMClassifier asks a chat model to label the wallet description and answer
// with a JSON verdict.
type LLMClassifier struct {
	Provider   string // "anthropic", "openai", "ollama"
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

const llmPrompt = `You are a blockchain risk analyst. Classify the risk of the wallet described below.

WALLET:
%s

Return JSON:
{"label": "low|medium|high", "confidence": 0.0-1.0}

Return ONLY valid JSON.`

type llmVerdict struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

func (l *LLMClassifier) Classify(ctx context.Context, text string) ([]Prediction, json.RawMessage, error) {
	reply, err := l.callLLM(ctx, fmt.Sprintf(llmPrompt, text))
	if err != nil {
		return nil, nil, err
	}

	raw := extractJSON(reply)
	var v llmVerdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, nil, fmt.Errorf("%s: decode verdict: %w", l.Provider, err)
	}
	if v.Label == "" {
		return nil, raw, nil
	}
	return []Prediction{{Label: v.Label, Score: v.Confidence}}, raw, nil
}

func (l *LLMClassifier) callLLM(ctx context.Context, prompt string) (string, error) {
	switch l.Provider {
	case "anthropic":
		return l.callAnthropic(ctx, prompt)
	case "openai":
		return l.callOpenAI(ctx, prompt)
	case "ollama":
		return l.callOllama(ctx, prompt)
	default:
		return "", fmt.Errorf("unknown llm provider %q", l.Provider)
	}
}

func (l *LLMClassifier) post(ctx context.Context, payload any, headers map[string]string) ([]byte, error) {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	respBody, err := doRequest(httpClient(l.HTTPClient), req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l.Provider, err)
	}
	return respBody, nil
}

func (l *LLMClassifier) callAnthropic(ctx context.Context, prompt string) (string, error) {
	respBody, err := l.post(ctx, map[string]interface{}{
		"model":      l.Model,
		"max_tokens": 256,
		"messages":   []map[string]string{{"role": "user", "content": prompt}},
	}, map[string]string{
		"x-api-key":         l.APIKey,
		"anthropic-version": "2023-06-01",
	})
	if err != nil {
		return "", err
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("empty response from anthropic")
	}
	return result.Content[0].Text, nil
}

func (l *LLMClassifier) callOpenAI(ctx context.Context, prompt string) (string, error) {
	respBody, err := l.post(ctx, map[string]interface{}{
		"model":      l.Model,
		"max_tokens": 256,
		"messages":   []map[string]string{{"role": "user", "content": prompt}},
	}, map[string]string{"Authorization": "Bearer " + l.APIKey})
	if err != nil {
		return "", err
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai")
	}
	return result.Choices[0].Message.Content, nil
}

func (l *LLMClassifier) callOllama(ctx context.Context, prompt string) (string, error) {
	respBody, err := l.post(ctx, map[string]interface{}{
		"model":    l.Model,
		"messages": []map[string]string{{"role": "user", "content": prompt}},
		"stream":   false,
		"format":   "json",
	}, nil)
	if err != nil {
		return "", err
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	return result.Message.Content, nil
}

// ── helpers ─────────────────────────────────────────────────

func httpClient(c *http.Client) *http.Client {
	if c == nil {
		return &http.Client{Timeout: 30 * time.Second}
	}
	return c
}

func doRequest(c *http.Client, req *http.Request) ([]byte, error) {
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(body)), 200))
	}
	return body, nil
}

func extractJSON(s string) []byte {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return []byte(s[start : end+1])
	}
	return []byte(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

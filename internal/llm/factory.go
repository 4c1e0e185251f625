package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agenthands/inkwell/internal/config"
)

func NewClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (Client, error) {
	provider := strings.ToLower(cfg.Provider)

	switch provider {
	case "openai":
		return NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens, cfg.Temperature), nil

	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model)

	case "claude", "anthropic":
		return NewClaudeClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens), nil

	case "ollama":
		baseURL := OllamaBaseURL(cfg.BaseURL)
		logger.Info("using Ollama through its OpenAI-compatible API", zap.String("base_url", baseURL))

		// Ollama ignores the key but the client wants one.
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama"
		}
		return NewOpenAIClient(apiKey, cfg.Model, baseURL, cfg.MaxTokens, cfg.Temperature), nil

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}

// OllamaBaseURL points a bare Ollama address at its /v1 endpoint.
func OllamaBaseURL(base string) string {
	if base == "" {
		base = "http://localhost:11434"
	}
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return fmt.Sprintf("%s/v1", strings.TrimRight(base, "/"))
}

// Package llm adapts the configured LLM provider behind a single generate
// capability. Providers form a closed set selected by configuration at run
// start; every transport, auth, quota, or timeout failure surfaces as a
// *ProviderError so callers can treat them uniformly as recoverable.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider names accepted by New.
const (
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
	ProviderDeepSeek = "deepseek"
	ProviderKimi     = "kimi"
)

// OpenAI-compatible endpoints for the non-OpenAI providers.
const (
	deepseekBaseURL = "https://api.deepseek.com/v1"
	kimiBaseURL     = "https://api.moonshot.cn/v1"
)

// Default models per provider.
var defaultModels = map[string]string{
	ProviderOpenAI:   "gpt-4-turbo-preview",
	ProviderGemini:   "gemini-1.5-pro",
	ProviderDeepSeek: "deepseek-chat",
	ProviderKimi:     "moonshot-v1-128k",
}

// ProviderError reports a failed generation call.
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Client is the uniform generate capability consumed by the agents.
type Client interface {
	Name() string
	Generate(ctx context.Context, systemPrompt, userContext string) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider    string        `koanf:"provider"`
	Model       string        `koanf:"model"`
	APIKey      string        `koanf:"api_key"`
	BaseURL     string        `koanf:"base_url"` // override for self-hosted OpenAI-compatible endpoints
	Temperature float64       `koanf:"temperature"`
	Timeout     time.Duration `koanf:"timeout"`
}

// New builds a client for the configured provider. Unknown provider names
// are a configuration error, not a runtime dispatch concern.
func New(ctx context.Context, cfg Config) (Client, error) {
	model := cfg.Model
	if model == "" {
		model = defaultModels[cfg.Provider]
	}
	temp := cfg.Temperature
	if temp == 0 {
		temp = 0.1
	}

	var (
		m   llms.Model
		err error
	)
	switch cfg.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		m, err = openai.New(opts...)
	case ProviderDeepSeek:
		m, err = openai.New(
			openai.WithToken(cfg.APIKey),
			openai.WithModel(model),
			openai.WithBaseURL(orDefault(cfg.BaseURL, deepseekBaseURL)),
		)
	case ProviderKimi:
		m, err = openai.New(
			openai.WithToken(cfg.APIKey),
			openai.WithModel(model),
			openai.WithBaseURL(orDefault(cfg.BaseURL, kimiBaseURL)),
		)
	case ProviderGemini:
		m, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(model),
		)
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init provider %s: %w", cfg.Provider, err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &client{
		name:        cfg.Provider,
		model:       m,
		modelName:   model,
		temperature: temp,
		timeout:     timeout,
	}, nil
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

type client struct {
	name        string
	model       llms.Model
	modelName   string
	temperature float64
	timeout     time.Duration
}

func (c *client) Name() string { return c.name }

// Generate sends one system+user exchange and returns the raw text of the
// first choice. The call carries a bounded timeout; expiry is reported as a
// *ProviderError like any other transport failure.
func (c *client) Generate(ctx context.Context, systemPrompt, userContext string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userContext),
	}
	resp, err := c.model.GenerateContent(ctx, msgs, llms.WithTemperature(c.temperature))
	if err != nil {
		return "", &ProviderError{Provider: c.name, Message: err.Error(), Err: err}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", &ProviderError{Provider: c.name, Message: "empty completion"}
	}
	return resp.Choices[0].Content, nil
}

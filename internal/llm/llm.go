// Package llm provides chat completion clients for the generation agents.
// Each agent gets its own client so planner, generators and evaluator can
// run against different backends and models.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
)

// maxResponseLogBytes is the max length of a completion to log in full.
const maxResponseLogBytes = 8192

// Supported providers.
const (
	ProviderOpenAI   = "openai" // any OpenAI-compatible endpoint (Ollama, vLLM, OpenAI)
	ProviderGoogleAI = "googleai"
)

// Completer is the completion contract the agents depend on.
type Completer interface {
	Complete(ctx context.Context, system, user string, temperature float64) (string, error)
}

// Config describes one agent's LLM backend.
type Config struct {
	Provider  string
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
}

// Client implements Completer on top of a langchaingo model.
type Client struct {
	role      string
	model     string
	maxTokens int
	llm       llms.Model
}

// New creates a completion client for an agent role.
func New(role string, cfg Config) (*Client, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}

	var (
		model llms.Model
		err   error
	)
	switch cfg.Provider {
	case ProviderGoogleAI:
		opts := []googleai.Option{googleai.WithAPIKey(cfg.APIKey), googleai.WithDefaultModel(cfg.Model)}
		if cfg.BaseURL != "" {
			if hc := httpClientForEndpoint(cfg.BaseURL); hc != nil {
				opts = append(opts, googleai.WithHTTPClient(hc))
			}
		}
		model, err = googleai.New(context.Background(), opts...)
	case ProviderOpenAI, "":
		opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initialize %s LLM: %w", role, err)
	}

	log.Info().
		Str("role", role).
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Str("base_url", cfg.BaseURL).
		Int("max_tokens", cfg.MaxTokens).
		Msg("LLM client initialized")

	return &Client{role: role, model: cfg.Model, maxTokens: cfg.MaxTokens, llm: model}, nil
}

// Complete sends a system+user exchange and returns the trimmed response.
// An empty system prompt is omitted from the message list.
func (c *Client) Complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	var messages []llms.MessageContent
	if system != "" {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextContent{Text: system}},
		})
	}
	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextContent{Text: user}},
	})

	log.Debug().
		Str("role", c.role).
		Str("model", c.model).
		Int("prompt_chars", len(system)+len(user)).
		Msg("LLM request")

	resp, err := c.llm.GenerateContent(ctx, messages,
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", c.role, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s completion: no choices in response", c.role)
	}

	out := strings.TrimSpace(resp.Choices[0].Content)
	logResponse(c.role, out)
	return out, nil
}

// logResponse logs a completion, truncating if over maxResponseLogBytes.
func logResponse(role, raw string) {
	if len(raw) <= maxResponseLogBytes {
		log.Debug().Str("role", role).Str("response", raw).Msg("LLM response")
		return
	}
	log.Debug().
		Str("role", role).
		Str("response", raw[:maxResponseLogBytes]+"... [truncated]").
		Int("response_len", len(raw)).
		Msg("LLM response")
}

package llmservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"document-qa/internal/config"
)

// Completer turns a filled prompt into the model's raw text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Client is a Completer over any langchaingo model.
type Client struct {
	llm         llms.Model
	temperature float64
}

func New(llmConfig *config.LLMConfig) (*Client, error) {
	llm, err := NewModel(llmConfig)
	if err != nil {
		return nil, err
	}
	return NewClient(llm, llmConfig.Temperature), nil
}

func NewClient(llm llms.Model, temperature float64) *Client {
	return &Client{llm: llm, temperature: temperature}
}

// NewModel builds the langchaingo model named by llmConfig.Provider.
func NewModel(llmConfig *config.LLMConfig) (llms.Model, error) {
	log.Debug().Str("provider", llmConfig.Provider).Str("model", llmConfig.Model).Msg("Creating LLM client")
	httpClient := &http.Client{}
	if llmConfig.TimeoutSecs > 0 {
		httpClient.Timeout = time.Duration(llmConfig.TimeoutSecs) * time.Second
	}

	switch llmConfig.Provider {
	case config.ProviderOllama:
		return ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
			ollama.WithHTTPClient(httpClient),
		)
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
			openai.WithModel(llmConfig.Model),
			openai.WithHTTPClient(httpClient),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", llmConfig.Provider)
	}
}

func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	msgContent := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	res, err := GenerateContent(ctx, c.llm, msgContent, llms.WithTemperature(c.temperature))
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return res.Choices[0].Content, nil
}

// call llm
func GenerateContent(ctx context.Context, llm llms.Model, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	start := time.Now()
	res, err := llm.GenerateContent(ctx, messages, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	log.Debug().Dur("took", time.Since(start)).Int("choices", len(res.Choices)).Msg("Generated content")
	return res, nil
}

package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/relevo-cloud/relevo/internal/domain"
	"github.com/relevo-cloud/relevo/internal/metrics"
)

var _ domain.ChatCompleter = (*ChatCompleter)(nil)

// ChatCompleter generates chat completions via the OpenAI-compatible API.
type ChatCompleter struct {
	client   *openai.Client
	model    string
	provider string
	retry    retryPolicy
	logger   *zap.Logger
}

// ChatConfig holds the chat completion provider settings.
type ChatConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	Provider      string
	RetryAttempts int
	RetryBackoff  time.Duration
	Timeout       time.Duration
	Logger        *zap.Logger
}

// NewChatCompleter creates an OpenAI-compatible chat completion provider.
func NewChatCompleter(cfg *ChatConfig) *ChatCompleter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &ChatCompleter{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		provider: cfg.Provider,
		retry:    newRetryPolicy(cfg.RetryAttempts, cfg.RetryBackoff),
		logger:   cfg.Logger,
	}
}

// Complete implements domain.ChatCompleter.
func (c *ChatCompleter) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages: %w", domain.ErrProviderRejected)
	}

	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}

	var resp openai.ChatCompletionResponse

	start := time.Now()

	err := c.retry.do(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = c.client.CreateChatCompletion(ctx, req)
		if callErr != nil {
			return parseAPIError(callErr)
		}
		return nil
	})

	duration := time.Since(start)

	if err != nil {
		metrics.CompletionRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		return "", fmt.Errorf("%w: %w", domain.ErrCompletionFailed, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		metrics.CompletionRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		return "", fmt.Errorf("empty completion response: %w", domain.ErrCompletionFailed)
	}

	metrics.CompletionRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
	metrics.CompletionRequestDuration.WithLabelValues(c.provider, c.model).Observe(duration.Seconds())

	c.logger.Debug("Completion request completed",
		zap.String("provider", c.provider),
		zap.String("model", c.model),
		zap.Duration("duration", duration),
		zap.Int("messages", len(messages)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return resp.Choices[0].Message.Content, nil
}

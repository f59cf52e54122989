package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/relevo-cloud/relevo/internal/domain"
)

// retryPolicy retries transient provider failures with exponential backoff.
// Rejections (4xx) are never retried: resending the same bad input cannot
// succeed.
type retryPolicy struct {
	attempts int
	backoff  time.Duration
}

func newRetryPolicy(attempts int, backoff time.Duration) retryPolicy {
	if attempts <= 0 {
		attempts = 3
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return retryPolicy{attempts: attempts, backoff: backoff}
}

func (p retryPolicy) do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := p.backoff

	for attempt := 1; attempt <= p.attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, domain.ErrProviderRejected) {
			return lastErr
		}
		if attempt == p.attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	return lastErr
}

// parseAPIError classifies an API error: 4xx responses map to
// ErrProviderRejected, everything else to ErrProviderUnavailable.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		wrap := classifyStatus(reqErr.HTTPStatusCode)
		if detail := extractDetail(reqErr.Body); detail != "" {
			return fmt.Errorf("API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("API error %d: %s: %w", reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		wrap := classifyStatus(apiErr.HTTPStatusCode)
		return fmt.Errorf("API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("request failed: %w: %w", domain.ErrProviderUnavailable, err)
}

func classifyStatus(status int) error {
	// 429 is transient despite being a 4xx.
	if status >= 400 && status < 500 && status != 429 {
		return domain.ErrProviderRejected
	}
	return domain.ErrProviderUnavailable
}

// extractDetail extracts the "detail" field from a JSON error body, used by
// some OpenAI-compatible gateways.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}

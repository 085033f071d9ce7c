package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"founder-scheduler/internal/common/config"
	apperrors "founder-scheduler/internal/common/errors"
	commonhttp "founder-scheduler/internal/common/http"
	"founder-scheduler/internal/common/logger"
	"founder-scheduler/internal/common/metrics"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const defaultInitialBackoff = 100 * time.Millisecond

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// retryableError marks failures worth another attempt (transport errors,
// 429 and 5xx).
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// Client is a Backend for OpenAI-compatible chat-completions APIs.
type Client struct {
	cfg            config.InferenceConfig
	http           *commonhttp.Client
	limiter        *rate.Limiter
	logger         logger.Logger
	initialBackoff time.Duration
}

type Option func(*Client)

// WithInitialBackoff overrides the first retry delay.
func WithInitialBackoff(d time.Duration) Option {
	return func(c *Client) { c.initialBackoff = d }
}

func NewClient(cfg config.InferenceConfig, log logger.Logger, opts ...Option) *Client {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		cfg:            cfg,
		http:           commonhttp.NewClient(config.GetDuration(cfg.Timeout)),
		limiter:        rate.NewLimiter(limit, burst),
		logger:         log.With(map[string]interface{}{"component": "inference"}),
		initialBackoff: defaultInitialBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends one chat completion, retrying transient failures with
// exponential backoff. Failures wrap ErrInferenceTimeout when ctx expired and
// ErrInferenceFailed otherwise.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limiter: %v", apperrors.ErrInferenceTimeout, err)
	}

	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserContent},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	}

	var content string
	operation := func() error {
		text, err := c.doRequest(ctx, body)
		if err == nil {
			content = text
			return nil
		}
		var retryable *retryableError
		if errors.As(err, &retryable) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialBackoff
	policy.MaxElapsedTime = 0

	maxRetries := c.cfg.MaxRetries
	if req.MaxRetries != nil {
		maxRetries = *req.MaxRetries
	}
	retries := uint64(0)
	if maxRetries > 0 {
		retries = uint64(maxRetries)
	}

	notify := func(err error, next time.Duration) {
		metrics.InferenceRetries.WithLabelValues(req.Stage).Inc()
		c.logger.Warn("retrying inference request", map[string]interface{}{
			"stage":   req.Stage,
			"error":   err.Error(),
			"backoff": next.String(),
		})
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx), notify)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", apperrors.ErrInferenceTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", apperrors.ErrInferenceFailed, err)
	}
	return content, nil
}

func (c *Client) doRequest(ctx context.Context, body chatRequest) (string, error) {
	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	resp, err := c.http.PostJSON(ctx, url, headers, body)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("API request failed: %w", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &retryableError{err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode >= 500 {
		return "", &retryableError{err: fmt.Errorf("server error (%d): %s", resp.StatusCode, truncate(resp.Body))}
	}
	if resp.StatusCode != http.StatusOK {
		var errResp apiError
		if err := json.Unmarshal(resp.Body, &errResp); err == nil && errResp.Error.Message != "" {
			return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, truncate(resp.Body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty response from API")
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

var _ Backend = (*Client)(nil)

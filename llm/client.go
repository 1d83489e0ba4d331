// Package llm provides the answer-generation client for the QA service.
//
// The client speaks the OpenAI-compatible chat completions protocol, so
// any gateway exposing that surface works. Requests are rate limited
// client-side and every call carries the request context deadline.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Completion is one generated answer with a confidence estimate.
type Completion struct {
	Answer           string
	Confidence       float64
	PromptTokens     int
	CompletionTokens int
}

// Provider generates an answer for a composed prompt.
type Provider interface {
	Complete(ctx context.Context, prompt string) (*Completion, error)
	Model() string
}

// Config holds client settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	RateLimit   float64 // requests per second, 0 disables limiting
	RateBurst   int
}

// Client is an OpenAI-compatible chat completions client.
type Client struct {
	config  Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a completion client.
func NewClient(config Config, logger *zap.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 45 * time.Second
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 700
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	return &Client{
		config:  config,
		http:    &http.Client{Timeout: config.Timeout},
		limiter: limiter,
		logger:  logger.With(zap.String("component", "llm")),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      chatMessage `json:"message"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
	Error   *apiError    `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// Complete sends the prompt and returns the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (*Completion, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.config.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(data)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("llm returned status %d: %s", resp.StatusCode, msg)
	}

	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("llm returned no choices")
	}

	answer := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if answer == "" {
		return nil, fmt.Errorf("llm returned an empty answer")
	}

	c.logger.Debug("llm completion",
		zap.String("model", c.config.Model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", parsed.Usage.PromptTokens),
		zap.Int("completion_tokens", parsed.Usage.CompletionTokens),
	)

	return &Completion{
		Answer:           answer,
		Confidence:       completionConfidence(parsed.Choices[0], parsed.Usage),
		PromptTokens:     parsed.Usage.PromptTokens,
		CompletionTokens: parsed.Usage.CompletionTokens,
	}, nil
}

// completionConfidence estimates answer confidence from response shape:
// a truncated answer (length finish) is less trustworthy, and very short
// completions tend to be refusals.
func completionConfidence(choice chatChoice, usage chatUsage) float64 {
	confidence := 0.9
	if choice.FinishReason == "length" {
		confidence -= 0.2
	}
	if usage.CompletionTokens > 0 && usage.CompletionTokens < 20 {
		confidence -= 0.2
	}
	if confidence < 0.1 {
		confidence = 0.1
	}
	return confidence
}

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
)

const (
	// anthropicAPIVersion is the Anthropic API version header value.
	anthropicAPIVersion = "2023-06-01"

	defaultAnthropicBaseURL   = "https://api.anthropic.com"
	defaultAnthropicMaxTokens = 1024
)

// messagesRequest is the request body for the Anthropic Messages API.
type messagesRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

// anthropicMessage represents a single message in the Anthropic Messages API.
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// contentBlock represents a content block in the Anthropic Messages API response.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// messagesResponse is the response body from the Anthropic Messages API.
type messagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []contentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      anthropicUsage `json:"usage"`
}

// anthropicUsage contains token usage information from the Anthropic API.
type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// AnthropicSummarizer implements Summarizer using the Anthropic Messages API.
type AnthropicSummarizer struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	maxTokens   int
	maxRetries  int
	retryDelay  time.Duration
}

// AnthropicConfig holds the parameters needed to create an Anthropic summarizer.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key.
	APIKey string
	// Model is the model identifier (e.g., "claude-3-5-haiku-latest").
	Model string
	// BaseURL is the API base URL. Defaults to the public endpoint.
	BaseURL string
	// Temperature controls response randomness.
	Temperature float64
	// MaxTokens caps the response length. Defaults to 1024.
	MaxTokens int
	// Timeout is the HTTP client timeout for API calls.
	Timeout time.Duration
	// MaxRetries controls how many times transient errors are retried.
	MaxRetries int
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration
}

// NewAnthropicSummarizer creates a summarizer backed by the Anthropic Messages API.
func NewAnthropicSummarizer(cfg AnthropicConfig) *AnthropicSummarizer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAnthropicBaseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultAnthropicMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	return &AnthropicSummarizer{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
	}
}

// Summarize sends the abstract to the Anthropic Messages API and returns the
// text of the first content block. An empty abstract short-circuits to the
// placeholder without an API call.
//
// Transient errors (status 429 and 5xx, network failures) are retried up to
// MaxRetries times. When the provider supplies a Retry-After hint the wait
// honors it; otherwise the base delay doubles on each attempt. Context
// cancellation is respected between retries.
func (s *AnthropicSummarizer) Summarize(ctx context.Context, title, abstract string) (string, error) {
	if strings.TrimSpace(abstract) == "" {
		return PlaceholderSummary, nil
	}

	apiReq := messagesRequest{
		Model:     s.model,
		MaxTokens: s.maxTokens,
		System:    summarySystemPrompt,
		Messages: []anthropicMessage{
			{
				Role:    "user",
				Content: buildSummaryPrompt(title, abstract),
			},
		},
		Temperature: s.temperature,
	}

	var resp *messagesResponse
	var lastErr error

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			delay := retryAfterHint(lastErr)
			if delay <= 0 {
				delay = s.retryDelay * time.Duration(1<<(attempt-1))
			}
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("anthropic: context cancelled during retry: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, lastErr = s.sendRequest(ctx, apiReq)
		if lastErr == nil {
			break
		}

		// Only retry on transient errors.
		if !isTransientError(lastErr) {
			return "", lastErr
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("anthropic: all %d retries exhausted: %w", s.maxRetries, lastErr)
	}

	return extractSummaryText(resp)
}

// Provider returns the provider name.
func (s *AnthropicSummarizer) Provider() string {
	return "anthropic"
}

// Model returns the model identifier being used.
func (s *AnthropicSummarizer) Model() string {
	return s.model
}

// sendRequest sends a single request to the Anthropic Messages API and returns
// the parsed response or an error.
func (s *AnthropicSummarizer) sendRequest(ctx context.Context, apiReq messagesRequest) (*messagesResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to marshal request: %w", err)
	}

	endpoint := s.baseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", s.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	httpResp, err := s.httpClient.Do(httpReq)
	if err != nil {
		// Network errors are considered transient and eligible for retry.
		return nil, &APIError{
			Provider:   "anthropic",
			StatusCode: 0,
			Message:    fmt.Sprintf("request failed: %v", err),
			Type:       "network_error",
		}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20))
	if err != nil {
		return nil, &APIError{
			Provider:   "anthropic",
			StatusCode: 0,
			Message:    fmt.Sprintf("failed to read response body: %v", err),
			Type:       "network_error",
		}
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseAnthropicAPIError(httpResp.StatusCode, respBody, httpResp.Header.Get("Retry-After"))
	}

	var resp messagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("anthropic: failed to unmarshal response: %w", err)
	}

	return &resp, nil
}

// extractSummaryText returns the text of the first text content block.
func extractSummaryText(resp *messagesResponse) (string, error) {
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("anthropic: response contains no content blocks")
	}

	for _, block := range resp.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return strings.TrimSpace(block.Text), nil
		}
	}

	return "", fmt.Errorf("anthropic: response contains no text content blocks")
}

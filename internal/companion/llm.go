package companion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"token-companion/internal/emotion"
)

// Default configuration values.
const (
	DefaultLLMBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel      = "mistralai/mistral-7b-instruct"
	DefaultTitle      = "Token Companion"
	DefaultTimeout    = 10 * time.Second
	maxTokens         = 60
)

// LLMClient calls an OpenAI-compatible chat completions endpoint.
type LLMClient struct {
	baseURL string
	apiKey  string
	model   string
	siteURL string
	title   string
	client  *http.Client
}

var _ emotion.Generator = (*LLMClient)(nil)

// LLMOption configures LLMClient.
type LLMOption func(*LLMClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) LLMOption {
	return func(c *LLMClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithModel sets the model id.
func WithModel(m string) LLMOption {
	return func(c *LLMClient) {
		if m != "" {
			c.model = m
		}
	}
}

// WithSiteURL sets the HTTP-Referer attribution header.
func WithSiteURL(u string) LLMOption {
	return func(c *LLMClient) {
		c.siteURL = u
	}
}

// WithTitle sets the X-Title attribution header.
func WithTitle(t string) LLMOption {
	return func(c *LLMClient) {
		c.title = t
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) LLMOption {
	return func(c *LLMClient) {
		c.client = client
	}
}

// NewLLMClient creates a chat completions client.
func NewLLMClient(apiKey string, opts ...LLMOption) *LLMClient {
	c := &LLMClient{
		baseURL: DefaultLLMBaseURL,
		apiKey:  apiKey,
		model:   DefaultModel,
		title:   DefaultTitle,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is set.
func (c *LLMClient) Configured() bool {
	return c.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Generate returns one short message for req.
func (c *LLMClient) Generate(ctx context.Context, req emotion.Request) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	system, user := BuildPrompt(req)
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.9,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.siteURL != "" {
		httpReq.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.title != "" {
		httpReq.Header.Set("X-Title", c.title)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrUpstream, err)
	}

	if resp.StatusCode == http.StatusPaymentRequired || isCreditsError(string(respBody)) && resp.StatusCode >= 400 {
		return "", ErrInsufficientCredits
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	if out.Error != nil {
		if isCreditsError(out.Error.Message) {
			return "", ErrInsufficientCredits
		}
		return "", fmt.Errorf("%w: %s", ErrUpstream, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrUpstream)
	}

	msg := strings.Trim(strings.TrimSpace(out.Choices[0].Message.Content), `"`)
	if msg == "" {
		return "", fmt.Errorf("%w: empty message", ErrUpstream)
	}
	return msg, nil
}

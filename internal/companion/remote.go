package companion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"token-companion/internal/emotion"
)

// RemoteGenerator calls POST /generate-message on a companion server.
type RemoteGenerator struct {
	baseURL string
	client  *http.Client
}

var _ emotion.Generator = (*RemoteGenerator)(nil)

// NewRemoteGenerator creates a remote generator. httpClient may be nil.
func NewRemoteGenerator(baseURL string, httpClient *http.Client) *RemoteGenerator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &RemoteGenerator{baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}
}

// MessageResponse is the /generate-message response body.
type MessageResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Generate requests a message. HTTP 402 maps to ErrInsufficientCredits.
func (g *RemoteGenerator) Generate(ctx context.Context, req emotion.Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/generate-message", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPaymentRequired {
		return "", ErrInsufficientCredits
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var out MessageResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	if out.Message == "" {
		return "", fmt.Errorf("%w: empty message", ErrUpstream)
	}
	return out.Message, nil
}

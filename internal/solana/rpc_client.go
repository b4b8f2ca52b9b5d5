package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"token-companion/internal/observability"
	"token-companion/internal/provider"
)

// Default configuration values.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultMaxDelay   = 8 * time.Second

	maxRPCBodyBytes = 8 << 20
)

// HTTPClient talks JSON-RPC 2.0 to a Solana node over HTTP.
//
// Transport failures share the price providers' error taxonomy: a 429 wraps
// provider.ErrRateLimited, network errors and other statuses wrap
// provider.ErrUnavailable, and an undecodable body wraps
// provider.ErrMalformedResponse. Only the first two are retried. A JSON-RPC
// error object comes back as *RPCError on the first attempt.
type HTTPClient struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	retry    retryPolicy
	nextID   atomic.Uint64
}

var _ RPCClient = (*HTTPClient)(nil)

// retryPolicy doubles base per retry up to max.
type retryPolicy struct {
	retries int
	base    time.Duration
	max     time.Duration
}

// delay returns the wait before retry n, counting from 1.
func (p retryPolicy) delay(n int) time.Duration {
	d := p.base
	for i := 1; i < n; i++ {
		if p.max > 0 && d >= p.max {
			break
		}
		d *= 2
	}
	if p.max > 0 && d > p.max {
		d = p.max
	}
	return d
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.http.Timeout = d
	}
}

// WithMaxRetries sets how many times a retryable failure is retried.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		if n < 0 {
			n = 0
		}
		c.retry.retries = n
	}
}

// WithRetryDelay sets the first backoff delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retry.base = d
	}
}

// WithMaxDelay caps the backoff delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retry.max = d
	}
}

// WithRateLimit bounds outbound RPC requests, retries included.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *HTTPClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.http = client
	}
}

// NewHTTPClient creates a Solana RPC client for endpoint.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: DefaultTimeout},
		retry: retryPolicy{
			retries: DefaultMaxRetries,
			base:    DefaultRetryDelay,
			max:     DefaultMaxDelay,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object. It is never retried.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call runs method and decodes its result into out.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	start := time.Now()
	err := c.callWithRetry(ctx, method, params, out)
	observability.RecordRPCCall(method, callOutcome(err), time.Since(start).Seconds())
	return err
}

func (c *HTTPClient) callWithRetry(ctx context.Context, method string, params []interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retry.retries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.retry.delay(attempt)); err != nil {
				return err
			}
		}

		resp, err := c.post(ctx, body)
		if err == nil {
			return decodeResult(method, resp, out)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%s: gave up after %d attempts: %w", method, c.retry.retries+1, lastErr)
}

// post sends one request and decodes the envelope.
func (c *HTTPClient) post(ctx context.Context, body []byte) (*rpcResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", provider.ErrUnavailable, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", provider.ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxRPCBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", provider.ErrUnavailable, err)
	}

	switch {
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("solana rpc: %w (429)", provider.ErrRateLimited)
	case httpResp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d: %s", provider.ErrUnavailable, httpResp.StatusCode, excerpt(raw))
	}

	var resp rpcResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrMalformedResponse, err)
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return &resp, nil
}

func decodeResult(method string, resp *rpcResponse, out interface{}) error {
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%s result: %w: %v", method, provider.ErrMalformedResponse, err)
	}
	return nil
}

func retryable(err error) bool {
	return errors.Is(err, provider.ErrRateLimited) || errors.Is(err, provider.ErrUnavailable)
}

func callOutcome(err error) string {
	var rpcErr *RPCError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &rpcErr):
		return "rpc_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, provider.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, provider.ErrMalformedResponse):
		return "malformed"
	default:
		return "error"
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// excerpt trims an error body for logging.
func excerpt(b []byte) string {
	const limit = 200
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

// GetAccountInfo retrieves account info by public key.
// Returns nil if account not found.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error) {
	params := []interface{}{
		pubkey,
		map[string]interface{}{
			"encoding": "base64",
		},
	}

	var result getAccountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, nil
	}

	info := &AccountInfo{
		Lamports:   result.Value.Lamports,
		Owner:      result.Value.Owner,
		Executable: result.Value.Executable,
		RentEpoch:  result.Value.RentEpoch,
	}

	if len(result.Value.Data) >= 1 {
		info.Data = result.Value.Data[0]
	}

	return info, nil
}

type getAccountInfoResult struct {
	Value *getAccountInfoValue `json:"value"`
}

type getAccountInfoValue struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [base64_data, encoding]
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

// GetTokenSupply retrieves the total supply of an SPL token mint.
func (c *HTTPClient) GetTokenSupply(ctx context.Context, mint string) (*TokenAmount, error) {
	var result struct {
		Value *TokenAmount `json:"value"`
	}
	if err := c.call(ctx, "getTokenSupply", []interface{}{mint}, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, fmt.Errorf("getTokenSupply %s: %w", mint, ErrMintNotFound)
	}
	return result.Value, nil
}

package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-companion/internal/provider"
)

func writeRPCResult(w http.ResponseWriter, id uint64, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
}

func TestHTTPClient_GetAccountInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Method != "getAccountInfo" {
			t.Errorf("expected method getAccountInfo, got %s", req.Method)
		}

		writeRPCResult(w, req.ID, map[string]interface{}{
			"context": map[string]interface{}{"slot": 1},
			"value": map[string]interface{}{
				"lamports":   int64(1461600),
				"owner":      "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
				"data":       []string{"AQID", "base64"},
				"executable": false,
				"rentEpoch":  int64(361),
			},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	info, err := client.GetAccountInfo(context.Background(), "mint")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}

	if info == nil {
		t.Fatal("expected account info, got nil")
	}

	if info.Data != "AQID" {
		t.Errorf("expected data AQID, got %s", info.Data)
	}

	if info.Owner != "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA" {
		t.Errorf("unexpected owner %s", info.Owner)
	}
}

func TestHTTPClient_GetAccountInfo_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		writeRPCResult(w, req.ID, map[string]interface{}{"value": nil})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	info, err := client.GetAccountInfo(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}

	if info != nil {
		t.Errorf("expected nil for missing account, got %+v", info)
	}
}

func TestHTTPClient_GetTokenSupply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "getTokenSupply" {
			t.Errorf("expected method getTokenSupply, got %s", req.Method)
		}

		writeRPCResult(w, req.ID, map[string]interface{}{
			"value": map[string]interface{}{
				"amount":         "1000000000",
				"decimals":       6,
				"uiAmount":       1000.0,
				"uiAmountString": "1000",
			},
		})
	}))
	defer server.Close()

	supply, err := NewHTTPClient(server.URL).GetTokenSupply(context.Background(), "mint")
	if err != nil {
		t.Fatalf("GetTokenSupply: %v", err)
	}

	if supply.Decimals != 6 || supply.UIAmount != 1000 {
		t.Errorf("unexpected supply %+v", supply)
	}
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		writeRPCResult(w, req.ID, map[string]interface{}{"value": nil})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)

	if _, err := client.GetAccountInfo(context.Background(), "mint"); err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}

	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestHTTPClient_RateLimitExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(1),
		WithRetryDelay(time.Millisecond),
	)

	_, err := client.GetAccountInfo(context.Background(), "mint")
	if !errors.Is(err, provider.ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32602,
				"message": "Invalid param: could not find mint",
			},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(time.Millisecond))

	_, err := client.GetTokenSupply(context.Background(), "mint")
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %v", err)
	}

	if rpcErr.Code != -32602 {
		t.Errorf("expected code -32602, got %d", rpcErr.Code)
	}

	if attempts.Load() != 1 {
		t.Errorf("RPC errors must not be retried, got %d attempts", attempts.Load())
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(5),
		WithRetryDelay(time.Second),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.GetAccountInfo(ctx, "mint")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestHTTPClient_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		want     error
		attempts int32
	}{
		{
			name: "server error is retried then unavailable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			want:     provider.ErrUnavailable,
			attempts: 3,
		},
		{
			name: "garbage body is malformed and not retried",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>maintenance</html>"))
			},
			want:     provider.ErrMalformedResponse,
			attempts: 1,
		},
		{
			name: "result of the wrong shape is malformed",
			handler: func(w http.ResponseWriter, r *http.Request) {
				var req rpcRequest
				json.NewDecoder(r.Body).Decode(&req)
				writeRPCResult(w, req.ID, map[string]interface{}{"value": "not an object"})
			},
			want:     provider.ErrMalformedResponse,
			attempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempts.Add(1)
				tt.handler(w, r)
			}))
			defer server.Close()

			client := NewHTTPClient(server.URL, WithMaxRetries(2), WithRetryDelay(time.Millisecond))

			_, err := client.GetAccountInfo(context.Background(), "mint")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.attempts, attempts.Load())
		})
	}
}

func TestHTTPClient_EmptySupplyIsMintNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		writeRPCResult(w, req.ID, map[string]interface{}{"value": nil})
	}))
	defer server.Close()

	_, err := NewHTTPClient(server.URL).GetTokenSupply(context.Background(), "mint")
	assert.ErrorIs(t, err, ErrMintNotFound)
}

func TestHTTPClient_RateLimitOptionSpacesRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		writeRPCResult(w, req.ID, map[string]interface{}{"value": nil})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRateLimit(20, 1))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.GetAccountInfo(context.Background(), "mint")
		require.NoError(t, err)
	}
	// burst 1 at 20 rps: two waits of ~50ms each.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := retryPolicy{retries: 5, base: 100 * time.Millisecond, max: time.Second}

	assert.Equal(t, 100*time.Millisecond, p.delay(1))
	assert.Equal(t, 200*time.Millisecond, p.delay(2))
	assert.Equal(t, 400*time.Millisecond, p.delay(3))
	assert.Equal(t, 800*time.Millisecond, p.delay(4))
	assert.Equal(t, time.Second, p.delay(5))
	assert.Equal(t, time.Second, p.delay(30))
}

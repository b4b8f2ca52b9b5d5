package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"token-companion/internal/stream"
)

// Reader yields events from one connection.
type Reader interface {
	Next() (stream.Event, error)
	Close() error
}

// Source opens a connection to the token stream.
type Source interface {
	Open(ctx context.Context, token string) (Reader, error)
}

// SSESource consumes GET /stream?token=.
type SSESource struct {
	baseURL string
	client  *http.Client
}

// NewSSESource creates an SSE source. httpClient may be nil.
func NewSSESource(baseURL string, httpClient *http.Client) *SSESource {
	if httpClient == nil {
		// No overall timeout: the response body is held open indefinitely.
		httpClient = &http.Client{}
	}
	return &SSESource{baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}
}

// Open connects and returns a frame reader.
func (s *SSESource) Open(ctx context.Context, token string) (Reader, error) {
	endpoint := fmt.Sprintf("%s/stream?token=%s", s.baseURL, url.QueryEscape(token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("connect: unexpected status %d", resp.StatusCode)
	}
	return newSSEReader(resp.Body), nil
}

// WSSource consumes GET /ws?token= over a websocket.
type WSSource struct {
	baseURL string
	dialer  *websocket.Dialer
}

// NewWSSource creates a websocket source. baseURL uses ws:// or wss://.
func NewWSSource(baseURL string) *WSSource {
	return &WSSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Open dials the websocket endpoint.
func (s *WSSource) Open(ctx context.Context, token string) (Reader, error) {
	endpoint := fmt.Sprintf("%s/ws?token=%s", s.baseURL, url.QueryEscape(token))

	conn, _, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	// Unblock ReadJSON when ctx is cancelled.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	return &wsReader{conn: conn, stop: stop}, nil
}

type wsReader struct {
	conn *websocket.Conn
	stop func() bool
}

func (r *wsReader) Next() (stream.Event, error) {
	var ev stream.Event
	if err := r.conn.ReadJSON(&ev); err != nil {
		return stream.Event{}, err
	}
	return ev, nil
}

func (r *wsReader) Close() error {
	r.stop()
	return r.conn.Close()
}

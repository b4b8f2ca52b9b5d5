package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrStreamingUnsupported is returned when the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("streaming unsupported")

// Emitter delivers events to one client. Implementations are safe for
// concurrent use.
type Emitter interface {
	Emit(ev Event) error
}

// SSEEmitter writes events as "data: <json>\n\n" frames.
type SSEEmitter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEEmitter sets the event-stream headers on w.
func NewSSEEmitter(w http.ResponseWriter) (*SSEEmitter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEEmitter{w: w, flusher: flusher}, nil
}

// Emit writes one frame and flushes it.
func (e *SSEEmitter) Emit(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	e.flusher.Flush()
	return nil
}

// DefaultWriteTimeout bounds a single websocket write.
const DefaultWriteTimeout = 10 * time.Second

// WSEmitter writes each event as one JSON text frame.
type WSEmitter struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	writeTimeout time.Duration
}

// NewWSEmitter wraps an upgraded websocket connection.
func NewWSEmitter(conn *websocket.Conn) *WSEmitter {
	return &WSEmitter{conn: conn, writeTimeout: DefaultWriteTimeout}
}

// Emit writes one frame.
func (e *WSEmitter) Emit(ev Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.conn.SetWriteDeadline(time.Now().Add(e.writeTimeout))
	if err := e.conn.WriteJSON(ev); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// Close sends a normal closure frame and closes the connection.
func (e *WSEmitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return e.conn.Close()
}

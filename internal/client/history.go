package client

import (
	"sync"
	"time"
)

// DefaultHistorySize bounds the rolling price buffer.
const DefaultHistorySize = 300

// Point is one observed price.
type Point struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// History is a rolling buffer of observed prices, oldest first.
type History struct {
	mu     sync.Mutex
	size   int
	points []Point
}

// NewHistory creates a buffer holding at most size points.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size}
}

// Add appends a point, dropping the oldest when full. Non-positive prices
// are ignored.
func (h *History) Add(t time.Time, price float64) {
	if price <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.points = append(h.points, Point{Time: t, Price: price})
	if over := len(h.points) - h.size; over > 0 {
		h.points = append(h.points[:0], h.points[over:]...)
	}
}

// Points returns a copy of the buffer.
func (h *History) Points() []Point {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Point(nil), h.points...)
}

// Len returns the number of points.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.points)
}

// DeltaRatio returns (last-prev)/prev over the two newest points.
func (h *History) DeltaRatio() (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.points)
	if n < 2 {
		return 0, false
	}
	prev, last := h.points[n-2].Price, h.points[n-1].Price
	return (last - prev) / prev, true
}

// Reset clears the buffer.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.points = nil
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"token-companion/internal/companion"
	"token-companion/internal/domain"
	"token-companion/internal/emotion"
	"token-companion/internal/market"
	"token-companion/internal/provider"
	"token-companion/internal/solana"
	"token-companion/internal/stream"
)

const maxBodyBytes = 16 << 10

type errorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status    string    `json:"status"`
	Uptime    string    `json:"uptime"`
	StartedAt time.Time `json:"started_at"`
	Sessions  int       `json:"sessions"`
	CacheSize int       `json:"cache_size"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// addressParam reads and validates a mint address query parameter.
func addressParam(r *http.Request, name string) (string, string) {
	addr := r.URL.Query().Get(name)
	if addr == "" {
		return "", name + " is required"
	}
	if err := solana.ValidateAddress(addr); err != nil {
		return "", "invalid " + name
	}
	return addr, ""
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	addr, msg := addressParam(r, "address")
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	result, err := s.prices.Price(r.Context(), addr)
	if err != nil {
		s.log.WithError(err).WithField("address", addr).Warn("price lookup failed")
		result = domain.NoData()
		if errors.Is(err, provider.ErrRateLimited) {
			result.RateLimited = true
			writeJSON(w, http.StatusTooManyRequests, result)
			return
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	addr, msg := addressParam(r, "address")
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	snap, err := s.charts.Snapshot(r.Context(), addr)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, snap)
	case errors.Is(err, provider.ErrNoPairs):
		writeError(w, http.StatusNotFound, "no pairs found for token")
	case errors.Is(err, market.ErrZeroPrice):
		writeError(w, http.StatusBadRequest, "token price is zero")
	case errors.Is(err, provider.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited by upstream provider")
	default:
		s.log.WithError(err).WithField("address", addr).Warn("chart lookup failed")
		writeError(w, http.StatusBadGateway, "upstream provider unavailable")
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	addr, msg := addressParam(r, "token")
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	emit, err := stream.NewSSEEmitter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.sessions.Serve(r.Context(), addr, emit); err != nil {
		s.log.WithError(err).WithField("address", addr).Debug("sse session ended")
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	addr, msg := addressParam(r, "token")
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied.
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	emit := stream.NewWSEmitter(conn)
	defer emit.Close()

	// Hijacked connections do not cancel the request context; a failed read
	// is the disconnect signal.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.sessions.Serve(ctx, addr, emit); err != nil {
		s.log.WithError(err).WithField("address", addr).Debug("websocket session ended")
	}
}

func (s *Server) handleGenerateMessage(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		writeError(w, http.StatusServiceUnavailable, "message generation not configured")
		return
	}

	var req emotion.Request
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Emotion.Valid() {
		writeError(w, http.StatusBadRequest, "unknown emotion")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), companion.DefaultTimeout)
	defer cancel()

	message, err := s.generator.Generate(ctx, req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, companion.MessageResponse{Message: message})
	case errors.Is(err, companion.ErrInsufficientCredits):
		writeError(w, http.StatusPaymentRequired, "insufficient credits")
	case errors.Is(err, companion.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "message generation not configured")
	default:
		s.log.WithError(err).WithFields(logrus.Fields{
			"emotion": req.Emotion,
			"symbol":  req.TokenSymbol,
		}).Warn("message generation failed")
		writeError(w, http.StatusBadGateway, "message generation failed")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:    "running",
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		StartedAt: s.started,
		Sessions:  s.sessions.Count(),
		CacheSize: s.prices.CacheLen(r.Context()),
	})
}

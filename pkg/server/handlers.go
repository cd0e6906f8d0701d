package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"portfolio-gateway/pkg/errs"
	"portfolio-gateway/pkg/logging"
	"portfolio-gateway/pkg/market"
	"portfolio-gateway/pkg/portfolio"
	"portfolio-gateway/pkg/retry"
	"portfolio-gateway/pkg/upstream"
)

type envelope struct {
	Success          bool      `json:"success"`
	Data             any       `json:"data,omitempty"`
	Stats            any       `json:"stats,omitempty"`
	Message          string    `json:"message,omitempty"`
	AvailableActions []string  `json:"availableActions,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	Fallback         bool      `json:"fallback,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	Warnings         []string  `json:"warnings,omitempty"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	chainIDs, err := portfolio.ParseChainIDs(q.Get("chainIds"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid chainIds parameter", err.Error())
		return
	}

	summary, err := s.svc.Summary(r.Context(), q.Get("address"), chainIDs, q.Get("refresh") == "true")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success:   true,
		Data:      summary,
		Timestamp: s.now().UTC(),
		Warnings:  summary.Warnings,
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	view, err := s.svc.Balances(r.Context(), q.Get("address"), q.Get("refresh") == "true")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success:   true,
		Data:      view,
		Timestamp: s.now().UTC(),
		Fallback:  view.Fallback,
		Reason:    view.Reason,
		Warnings:  view.Warnings,
	})
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("addresses"))
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Token addresses parameter is required", "")
		return
	}

	prices, err := s.svc.Prices(r.Context(), strings.Split(raw, ","))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success:   true,
		Data:      prices,
		Timestamp: s.now().UTC(),
	})
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("action") {
	case "stats":
		writeJSON(w, http.StatusOK, envelope{
			Success:   true,
			Stats:     s.caches.Stats(),
			Timestamp: s.now().UTC(),
		})
	case "clear":
		s.handleCacheClear(w, r)
	default:
		writeJSON(w, http.StatusOK, envelope{
			Success:          true,
			Message:          "Cache management endpoint",
			AvailableActions: []string{"stats", "clear"},
			Stats:            s.caches.Stats(),
			Timestamp:        s.now().UTC(),
		})
	}
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.caches.Clear()
	logging.Info(r.Context(), "cache cleared")
	writeJSON(w, http.StatusOK, envelope{
		Success:   true,
		Message:   "Cache cleared successfully",
		Timestamp: s.now().UTC(),
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, title := classify(err)
	if status >= http.StatusInternalServerError {
		logging.Error(r.Context(), "request failed", slog.Int("status", status), slog.Any("err", errs.Loggable(err)))
	} else {
		logging.Warn(r.Context(), "request rejected", slog.Int("status", status), slog.Any("err", errs.Loggable(err)))
	}
	writeError(w, status, title, err.Error())
}

// classify maps service errors to an HTTP status and a short title.
func classify(err error) (int, string) {
	var statusErr *upstream.StatusError
	var transportErr *retry.TransportError

	switch {
	case errors.Is(err, portfolio.ErrInvalidAddress):
		return http.StatusBadRequest, "Invalid Ethereum address format"
	case errors.Is(err, market.ErrInvalidParameter):
		return http.StatusBadRequest, "Invalid request parameters"
	case errors.Is(err, retry.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, "Rate limit exceeded"
	case errors.Is(err, portfolio.ErrNoData):
		return http.StatusNotFound, "No portfolio data found for any supported chains"
	case errors.As(err, &statusErr), errors.As(err, &transportErr):
		return http.StatusBadGateway, "Upstream request failed"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func writeError(w http.ResponseWriter, status int, title, message string) {
	writeJSON(w, status, errorBody{Error: title, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

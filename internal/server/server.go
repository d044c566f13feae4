// Package server exposes the gateway over HTTP: alert submission, server
// lookup, the delivery journal, health and metrics.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"alert-relay/internal/endpoint"
	"alert-relay/internal/gateway"
	"alert-relay/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultDeliveriesLimit = 50
	maxDeliveriesLimit     = 500
	maxSubmissionBytes     = 64 << 10
)

// Submitter is the part of the gateway the HTTP layer needs.
type Submitter interface {
	Submit(key, text, instrument, timeframe, url string) error
	Pending() int
}

type Handlers struct {
	gw        Submitter
	journal   storage.Journal
	log       *slog.Logger
	version   string
	startedAt time.Time
}

// SubmitRequest is the JSON body of POST /api/v1/alerts. URL wins over
// Server; with neither the gateway's default server is used.
type SubmitRequest struct {
	Key        string               `json:"key"`
	Text       string               `json:"text"`
	Instrument string               `json:"instrument"`
	TimeFrame  string               `json:"timeframe"`
	URL        string               `json:"url,omitempty"`
	Server     *endpoint.ServerType `json:"server,omitempty"`
}

// NewRouter sets up all routes. journal and gatherer may be nil; version is
// reported by /healthz.
func NewRouter(gw Submitter, journal storage.Journal, gatherer prometheus.Gatherer, version string, log *slog.Logger) http.Handler {
	h := &Handlers{
		gw:        gw,
		journal:   journal,
		log:       log,
		version:   version,
		startedAt: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/alerts", h.SubmitAlert)
		r.Get("/servers/{type}", h.GetServer)
		r.Get("/deliveries", h.Deliveries)
	})

	return r
}

func (h *Handlers) SubmitAlert(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmissionBytes))
	if err := dec.Decode(&req); err != nil {
		h.log.Warn("dropping malformed submission", "error", err)
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	url := req.URL
	if url == "" && req.Server != nil {
		url = endpoint.Resolve(*req.Server)
	}

	err := h.gw.Submit(req.Key, req.Text, req.Instrument, req.TimeFrame, url)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]interface{}{"status": "queued"})
	case errors.Is(err, gateway.ErrEmptyKey), errors.Is(err, gateway.ErrMalformedInput):
		h.log.Warn("dropping rejected submission", "key", req.Key, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, gateway.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Error("submit failed", "key", req.Key, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handlers) GetServer(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.ParseInt(chi.URLParam(r, "type"), 10, 8)
	if err != nil {
		writeError(w, http.StatusBadRequest, "server type must be a small integer")
		return
	}
	t := endpoint.ServerType(n)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"type": t,
		"url":  endpoint.Resolve(t),
	})
}

func (h *Handlers) Deliveries(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, http.StatusNotFound, "delivery journal is not configured")
		return
	}

	limit := defaultDeliveriesLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxDeliveriesLimit)
	}

	rows, err := h.journal.Recent(r.Context(), limit)
	if err != nil {
		h.log.Error("failed to read delivery journal", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rows == nil {
		rows = []storage.Delivery{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"version":        h.version,
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"pending_events": h.gw.Pending(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

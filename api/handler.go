// Package api serves the latest reading and the history over HTTP.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/alepar/aranet4/aranet"
	"github.com/alepar/aranet4/history"
)

const index = `Aranet4 HTTP Server

Endpoints:
  GET /api/sensor - Get current sensor data
  GET /api/history?hours=N&limit=M - Get stored readings, oldest first
  GET /health - Health check
  GET /metrics - Prometheus metrics
`

type Handler struct {
	latest   *aranet.Latest
	store    history.Store
	gatherer prometheus.Gatherer
	log      log.FieldLogger
}

func NewHandler(latest *aranet.Latest, store history.Store) *Handler {
	return &Handler{
		latest:   latest,
		store:    store,
		gatherer: prometheus.DefaultGatherer,
		log:      log.StandardLogger(),
	}
}

func (h *Handler) Routes() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: log.StandardLogger(), NoColor: true}))
	mux.Use(middleware.Recoverer)

	mux.Get("/", h.Index)
	mux.Get("/health", h.Health)
	mux.Get("/api/sensor", h.Sensor)
	mux.Get("/api/history", h.History)
	mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{
		// Opt into OpenMetrics to support exemplars.
		EnableOpenMetrics: true,
	}))
	return mux
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, index)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) Sensor(w http.ResponseWriter, r *http.Request) {
	reading, ok := h.latest.Get()
	if !ok {
		http.Error(w, "No sensor data available yet. Waiting for first reading...", http.StatusServiceUnavailable)
		return
	}
	h.writeJSON(w, reading)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	var hours *int
	if s := r.URL.Query().Get("hours"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "hours must be a non-negative integer", http.StatusBadRequest)
			return
		}
		hours = &n
	}

	limit := history.DefaultLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	readings, err := h.store.Query(r.Context(), hours, limit)
	if err != nil {
		h.log.Errorf("failed to query history: %s", err)
		http.Error(w, "Failed to query history", http.StatusInternalServerError)
		return
	}
	if readings == nil {
		readings = []aranet.Reading{}
	}
	h.writeJSON(w, readings)
}

func (h *Handler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Errorf("failed to write response: %s", err)
	}
}

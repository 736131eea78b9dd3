package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// loggingMiddleware logs method, path, status, and latency for every
// request, grounded on tanushdev-DocuMind's router.go loggingMiddleware
// but through slog instead of the standard log package, matching
// vecdb's structured-logging convention everywhere else.
func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// NewRouter builds the full HTTP surface described by spec.md §6, plus
// the ambient /metrics endpoint every service in the retrieval pack
// carries. gatherer backs the Prometheus handler; pass
// prometheus.DefaultGatherer to use the global registry.
func NewRouter(h *Handler, logger *slog.Logger, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware(logger))

	r.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", h.HandleStats).Methods(http.MethodGet)
	r.HandleFunc("/collections", h.HandleListCollections).Methods(http.MethodGet)
	r.HandleFunc("/collections", h.HandleCreateCollection).Methods(http.MethodPost)
	r.HandleFunc("/collections/{name}", h.HandleDropCollection).Methods(http.MethodDelete)
	r.HandleFunc("/vectors", h.HandleUpsert).Methods(http.MethodPost)
	r.HandleFunc("/vectors/bulk", h.HandleBulkUpsert).Methods(http.MethodPost)
	r.HandleFunc("/vectors/{id}", h.HandleGetVector).Methods(http.MethodGet)
	r.HandleFunc("/vectors/{id}", h.HandleDeleteVector).Methods(http.MethodDelete)
	r.HandleFunc("/search", h.HandleSearch).Methods(http.MethodPost)
	r.HandleFunc("/save", h.HandleSave).Methods(http.MethodPost)
	r.HandleFunc("/load", h.HandleLoad).Methods(http.MethodPost)
	r.HandleFunc("/clear", h.HandleClear).Methods(http.MethodDelete)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return r
}

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smarteb/smarteb/internal/api/swagger"
	"github.com/smarteb/smarteb/internal/auth"
	"github.com/smarteb/smarteb/internal/consumers"
	"github.com/smarteb/smarteb/internal/metrics"
	"github.com/smarteb/smarteb/internal/notification"
	"github.com/smarteb/smarteb/internal/ocr"
	"github.com/smarteb/smarteb/internal/storage"
)

// Deps carries the services the HTTP layer exposes. Auth may be nil, which
// disables authentication entirely (useful for tests and local runs).
type Deps struct {
	Store     storage.Storage
	Consumers *consumers.Service
	Auth      *auth.Service
	Notifier  *notification.Service
}

type handler struct {
	deps Deps
}

// NewMux constructs the HTTP mux: consumer/billing API, auth, email settings,
// metrics, health endpoints and the Swagger UI.
func NewMux(deps Deps) *http.ServeMux {
	h := &handler{deps: deps}
	mux := http.NewServeMux()

	// Metrics endpoint.
	mux.Handle("/metrics", promhttp.Handler())

	// Health / readiness / liveness.
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.Ping(r.Context()); err != nil {
			log.Printf("readyz: db ping failed: %v", err)
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})

	withAuth := func(handler http.Handler) http.Handler {
		if deps.Auth == nil {
			return handler
		}
		return deps.Auth.Middleware(handler)
	}

	// Consumer and billing API. Sub-resources (add-reading, bill-summary,
	// mark-paid, fines, validate-meter-image) are dispatched inside.
	mux.Handle("/api/v1/consumers", withAuth(h.instrument("/api/v1/consumers", h.handleConsumers)))
	mux.Handle("/api/v1/consumers/", withAuth(h.instrument("/api/v1/consumers/", h.handleConsumerSubtree)))

	if deps.Auth != nil {
		registerAuthRoutes(mux, deps.Auth)
		registerNotificationRoutes(mux, deps.Auth, deps.Notifier)
	}

	// API documentation.
	mux.Handle("/swagger/", http.StripPrefix("/swagger", swagger.Handler()))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/swagger/", http.StatusFound)
	})

	return mux
}

// instrument wraps a handler with request count/duration/error metrics under
// a fixed path label.
func (h *handler) instrument(label string, fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.RequestsTotal.WithLabelValues(label).Inc()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)

		metrics.RequestDurationSeconds.WithLabelValues(label, r.Method).Observe(time.Since(start).Seconds())
		if rec.status >= 400 {
			metrics.RequestErrorsTotal.WithLabelValues(label, http.StatusText(rec.status)).Inc()
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response failed: %v", err)
	}
}

type errorBody struct {
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, errorBody{Message: message})
}

// writeServiceError maps service-layer errors onto the API taxonomy: 404 for
// lookup misses, 400 for validation and OCR extraction failures (the latter
// tagged so clients can fall back to manual entry), 500 for everything else
// including an unreachable AI service.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "consumer not found")
	case errors.Is(err, consumers.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ocr.ErrExtractionFailed):
		writeJSON(w, http.StatusBadRequest, errorBody{Message: err.Error(), Status: "OCR_FAILED"})
	default:
		log.Printf("request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: err.Error()})
	}
}

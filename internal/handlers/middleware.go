package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"crash-dashboard/pkg/logging"
	"crash-dashboard/pkg/metrics"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RequestID reuses an incoming X-Request-ID or assigns a new UUID, and puts
// it on the request context for the logger.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// AccessLog logs every request and records request count and duration by
// route template, so path variables do not explode label cardinality.
func AccessLog(logger *logging.StructuredLogger, m *metrics.Collector) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			elapsed := time.Since(start)

			endpoint := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, err := route.GetPathTemplate(); err == nil {
					endpoint = tpl
				}
			}
			m.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(rec.status))
			m.APIRequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())

			fields := logging.Fields{
				"method":      r.Method,
				"endpoint":    endpoint,
				"status":      rec.status,
				"duration_ms": elapsed.Milliseconds(),
			}
			if rec.status >= http.StatusInternalServerError {
				logger.Warn(r.Context(), "[HTTP_REQUEST] Request failed", fields)
				return
			}
			logger.Debug(r.Context(), "[HTTP_REQUEST] Request served", fields)
		})
	}
}

package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// LoggingMiddleware logs each request with method, path, status, duration
// and a request id. The id is taken from X-Request-ID when the client
// sends one, otherwise generated, and is echoed back on the response.
func LoggingMiddleware(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)

			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)
			logger.Printf("%s %s %d %s request_id=%s", r.Method, r.URL.Path, rw.statusCode, time.Since(start), requestID)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

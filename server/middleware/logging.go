package middleware

import (
	"net/http"
	"slices"
	"time"

	"github.com/kbukum/execkit/logger"
)

var probePaths = []string{"/healthz", "/readyz", "/livez", "/metrics"}

// RequestLogger returns middleware that logs every request with method,
// path, status code, body size and duration. Probe and scrape paths are skipped.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(probePaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			fields := logger.MergeWithDuration(map[string]interface{}{
				"method":           r.Method,
				"path":             r.URL.Path,
				"bytes":            sw.written,
				logger.FieldStatus: sw.status,
			}, time.Since(start))
			if id := r.Header.Get(RequestIDHeader); id != "" {
				fields[logger.FieldCorrelationID] = id
			}

			switch {
			case sw.status >= 500:
				log.Error("Request completed", fields)
			case sw.status >= 400:
				log.Warn("Request completed", fields)
			default:
				log.Debug("Request completed", fields)
			}
		})
	}
}

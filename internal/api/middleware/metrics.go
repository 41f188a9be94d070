package middleware

import (
	"net/http"
	"time"

	"github.com/kiranshivaraju/pixelrelay/internal/metrics"
)

// Metrics records each request in c, labelled with the matched route pattern.
func Metrics(c *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			c.RecordHTTPRequest(r.Method, routePattern(r), rec.status, time.Since(start))
		})
	}
}

package middleware

import (
	"net/http"
	"strconv"

	"github.com/kiranshivaraju/rightsdesk/internal/metrics"
)

// Instrument counts requests by method and status code.
func Instrument(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			m.ObserveHTTP(r.Method, strconv.Itoa(rec.status))
		})
	}
}

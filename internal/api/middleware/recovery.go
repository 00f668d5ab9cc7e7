package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/kiranshivaraju/rightsdesk/internal/api/response"
)

// Recovery turns a handler panic into a 500 envelope. When the handler had
// already started its response (an event stream, typically) only the log line
// is written. http.ErrAbortHandler is re-raised so net/http aborts quietly.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			if err == http.ErrAbortHandler {
				panic(err)
			}
			attrs := []any{
				"error", err,
				"stack", string(debug.Stack()),
				"method", r.Method,
				"path", r.URL.Path,
				"response_started", rec.wrote,
			}
			slog.Error("panic recovered", append(attrs, routeAttrs(r)...)...)
			if !rec.wrote {
				response.Error(w, http.StatusInternalServerError,
					response.CodeInternal, "An unexpected error occurred", nil)
			}
		}()
		next.ServeHTTP(rec, r)
	})
}

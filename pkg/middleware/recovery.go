package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/verdantlabs/verdant/pkg/httputil"
)

// Recovery converts a handler panic into a 500 response. The panic value
// and stack are logged; the client only sees a generic message.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				l.ErrorContext(r.Context(), "panic recovered",
					slog.Any("panic", rec),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				httputil.WriteDetail(w, http.StatusInternalServerError, "an internal error occurred")
			}()

			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// Recovery returns middleware that turns a handler panic into a JSON 500 and
// counts it per route.
func Recovery(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
					panic(rec)
				}

				route := routeLabel(r)
				httpPanicsTotal.WithLabelValues(route).Inc()

				logger.WithFields(logrus.Fields{
					"error":       fmt.Sprintf("%v", rec),
					"stack":       string(debug.Stack()),
					"method":      r.Method,
					"route":       route,
					"path":        r.URL.Path,
					"remote_addr": r.RemoteAddr,
				}).Error("Panic recovered")

				writeErrorJSON(w, http.StatusInternalServerError, "internal server error", 0)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

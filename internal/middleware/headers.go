package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/fragezeichen/roulette/internal/headers"
)

// Headers applies the first matching header policy before the handler runs,
// so handlers can still override individual headers.
func Headers(manager *headers.Manager, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if policy := manager.Apply(w.Header(), r.URL.Path); policy != "" {
				log.WithFields(logrus.Fields{
					"path":   r.URL.Path,
					"policy": policy,
				}).Trace("Applied header policy")
			}

			next.ServeHTTP(w, r)
		})
	}
}

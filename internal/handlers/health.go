//nolint:tagliatelle // superior snake-case yo.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/fragezeichen/roulette/internal/version"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	CatalogItems int    `json:"catalog_items"`
}

// Health returns an HTTP handler for the health check endpoint. The process
// is live even with an empty catalog; the status then reads "degraded".
func Health(catalogSize func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := catalogSize()

		response := HealthResponse{
			Status:       "healthy",
			Version:      version.Short(),
			CatalogItems: n,
		}

		if n == 0 {
			response.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)

			return
		}
	}
}

// Package api holds the JSON handlers of the public HTTP interface.
package api

//go:generate mockgen -package mocks -destination mocks/mock_service.go github.com/fragezeichen/roulette/internal/api Service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/fragezeichen/roulette/internal/catalog"
	"github.com/fragezeichen/roulette/internal/model"
	"github.com/fragezeichen/roulette/internal/roulette"
)

// Service is what the handlers need from the roulette service.
type Service interface {
	Pick(ctx context.Context, bucket model.BucketName) (model.Item, error)
	Search(query string) []model.Item
	Size() int
	Buckets(ctx context.Context) (model.Table, error)
	Stats() *model.Counters
	Refresh() catalog.RefreshStatus
}

// Verify interface compliance at compile time.
var _ Service = (*roulette.Service)(nil)

// errorResponse is the body of every non-2xx API reply.
type errorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func writeJSON(log logrus.FieldLogger, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("Failed to encode response")
	}
}

func writeError(log logrus.FieldLogger, w http.ResponseWriter, status int, message string) {
	writeJSON(log, w, status, errorResponse{Error: message, Status: status})
}

// FormatDuration renders milliseconds as m:ss. Zero or negative values
// are "unknown".
func FormatDuration(ms int64) string {
	if ms <= 0 {
		return "unknown"
	}

	return fmt.Sprintf("%d:%02d", ms/60000, (ms%60000)/1000)
}

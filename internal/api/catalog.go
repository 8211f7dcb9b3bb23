//nolint:tagliatelle // superior snake-case yo.
package api

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/fragezeichen/roulette/internal/catalog"
	"github.com/fragezeichen/roulette/internal/model"
)

// Verify interface compliance at compile time.
var (
	_ http.Handler = (*CatalogHandler)(nil)
	_ http.Handler = (*BucketsHandler)(nil)
	_ http.Handler = (*StatsHandler)(nil)
	_ http.Handler = (*RefreshHandler)(nil)
)

// CatalogResponse lists catalog items.
type CatalogResponse struct {
	Total int          `json:"total"`
	Query string       `json:"query,omitempty"`
	Items []model.Item `json:"items"`
}

// CatalogHandler handles GET /api/v1/catalog requests.
type CatalogHandler struct {
	service Service
	logger  logrus.FieldLogger
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(service Service, logger logrus.FieldLogger) *CatalogHandler {
	return &CatalogHandler{
		service: service,
		logger:  logger.WithField("handler", "catalog"),
	}
}

// ServeHTTP returns the catalog, filtered by ?q= when present.
func (h *CatalogHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	items := h.service.Search(query)
	if items == nil {
		items = []model.Item{}
	}

	writeJSON(h.logger, w, http.StatusOK, CatalogResponse{
		Total: h.service.Size(),
		Query: query,
		Items: items,
	})
}

// BucketsResponse holds the number of items per bucket.
type BucketsResponse struct {
	Total   int                      `json:"total"`
	Buckets map[model.BucketName]int `json:"buckets"`
}

// BucketsHandler handles GET /api/v1/buckets requests.
type BucketsHandler struct {
	service Service
	logger  logrus.FieldLogger
}

// NewBucketsHandler creates a new buckets handler.
func NewBucketsHandler(service Service, logger logrus.FieldLogger) *BucketsHandler {
	return &BucketsHandler{
		service: service,
		logger:  logger.WithField("handler", "buckets"),
	}
}

func (h *BucketsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	table, err := h.service.Buckets(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load buckets")
		writeError(h.logger, w, http.StatusInternalServerError, "internal server error")

		return
	}

	counts := make(map[model.BucketName]int, len(model.BucketNames))
	for _, name := range model.BucketNames {
		counts[name] = len(table[name])
	}

	writeJSON(h.logger, w, http.StatusOK, BucketsResponse{
		Total:   h.service.Size(),
		Buckets: counts,
	})
}

// StatsHandler handles GET /api/v1/stats requests.
type StatsHandler struct {
	service Service
	logger  logrus.FieldLogger
}

// NewStatsHandler creates a new usage statistics handler.
func NewStatsHandler(service Service, logger logrus.FieldLogger) *StatsHandler {
	return &StatsHandler{
		service: service,
		logger:  logger.WithField("handler", "stats"),
	}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	writeJSON(h.logger, w, http.StatusOK, h.service.Stats())
}

// RefreshResponse reports whether a refresh was started.
type RefreshResponse struct {
	Status catalog.RefreshStatus `json:"status"`
	Items  int                   `json:"items"`
}

// RefreshHandler handles POST /api/v1/admin/refresh requests.
type RefreshHandler struct {
	service Service
	logger  logrus.FieldLogger
}

// NewRefreshHandler creates a new refresh trigger handler.
func NewRefreshHandler(service Service, logger logrus.FieldLogger) *RefreshHandler {
	return &RefreshHandler{
		service: service,
		logger:  logger.WithField("handler", "refresh"),
	}
}

// ServeHTTP starts a forced background refresh. It answers 202 when a refresh
// was started and 200 when one is already running.
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	status := h.service.Refresh()

	code := http.StatusAccepted
	if status == catalog.RefreshAlreadyRunning {
		code = http.StatusOK
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(h.logger, w, code, RefreshResponse{
		Status: status,
		Items:  h.service.Size(),
	})
}

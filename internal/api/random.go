//nolint:tagliatelle // superior snake-case yo.
package api

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fragezeichen/roulette/internal/model"
	"github.com/fragezeichen/roulette/internal/roulette"
)

const (
	// AgeCookie remembers the last selected bucket.
	AgeCookie    = "age"
	ageCookieTTL = 90 * 24 * time.Hour
)

// Verify interface compliance at compile time.
var _ http.Handler = (*RandomHandler)(nil)

// RandomResponse is a drawn item with its display duration.
type RandomResponse struct {
	model.Item
	Bucket   model.BucketName `json:"bucket"`
	Duration string           `json:"duration"`
}

// RandomHandler handles GET /api/v1/random requests.
type RandomHandler struct {
	service Service
	logger  logrus.FieldLogger
}

// NewRandomHandler creates a new random pick handler.
func NewRandomHandler(service Service, logger logrus.FieldLogger) *RandomHandler {
	return &RandomHandler{
		service: service,
		logger:  logger.WithField("handler", "random"),
	}
}

// ServeHTTP draws one item from the bucket named by ?age=, falling back to
// the age cookie and then to "all".
func (h *RandomHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucket := requestedBucket(r)

	// Every response is a fresh draw.
	w.Header().Set("Cache-Control", "no-store")
	setAgeCookie(w, r, bucket)

	item, err := h.service.Pick(r.Context(), bucket)
	if err != nil {
		if roulette.IsNoItem(err) {
			h.logger.WithField("bucket", bucket).Debug("No item available")
			writeError(h.logger, w, http.StatusNotFound, "no item available")

			return
		}

		h.logger.WithError(err).WithField("bucket", bucket).Error("Failed to draw item")
		writeError(h.logger, w, http.StatusInternalServerError, "internal server error")

		return
	}

	resp := RandomResponse{
		Item:     item,
		Bucket:   bucket,
		Duration: "unknown",
	}

	if item.DurationMillis != nil {
		resp.Duration = FormatDuration(*item.DurationMillis)
	}

	writeJSON(h.logger, w, http.StatusOK, resp)

	h.logger.WithFields(logrus.Fields{
		"bucket": bucket,
		"id":     item.ID,
	}).Debug("Served random item")
}

func requestedBucket(r *http.Request) model.BucketName {
	if age := r.URL.Query().Get("age"); age != "" {
		return model.ParseBucketName(age)
	}

	if c, err := r.Cookie(AgeCookie); err == nil {
		return model.ParseBucketName(c.Value)
	}

	return model.BucketAll
}

func setAgeCookie(w http.ResponseWriter, r *http.Request, bucket model.BucketName) {
	http.SetCookie(w, &http.Cookie{
		Name:     AgeCookie,
		Value:    string(bucket),
		Path:     "/",
		MaxAge:   int(ageCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

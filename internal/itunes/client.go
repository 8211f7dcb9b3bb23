package itunes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Compile-time interface compliance check.
var _ Source = (*Client)(nil)

var upstreamRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "itunes_requests_total",
		Help: "Total number of iTunes API attempts by endpoint and outcome",
	},
	[]string{"endpoint", "outcome"},
)

func init() {
	prometheus.MustRegister(upstreamRequestsTotal)
}

// retryPolicy describes how one endpoint is retried.
type retryPolicy struct {
	attempts        int
	timeout         time.Duration
	throttleStep    time.Duration // wait throttleStep*(attempt+1) after 403/429
	errorBase       time.Duration // wait errorBase*2^attempt after other failures
	giveUpOnTimeout bool
}

// Client talks to the iTunes Search API.
type Client struct {
	config     *Config
	logger     logrus.FieldLogger
	httpClient *http.Client
	sleep      func(ctx context.Context, d time.Duration) error
}

// New creates a new iTunes client.
func New(cfg *Config, logger logrus.FieldLogger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		config:     cfg,
		logger:     logger.WithField("component", "itunes"),
		httpClient: cfg.HTTPClient(),
		sleep:      sleepContext,
	}, nil
}

// Search runs an album search for term.
func (c *Client) Search(ctx context.Context, term string) (*Response, bool) {
	params := url.Values{}
	params.Set("term", term)
	params.Set("entity", "album")
	params.Set("limit", strconv.Itoa(c.config.SearchLimit))
	params.Set("country", c.config.Country)

	return c.get(ctx, "search", params, retryPolicy{
		attempts:     c.config.SearchAttempts,
		timeout:      c.config.RequestTimeout,
		throttleStep: c.config.ThrottleBackoff,
		errorBase:    c.config.ErrorBackoff,
	})
}

// Lookup fetches the songs of a collection. A timed out attempt is not
// retried; runtime lookups sit on the request path.
func (c *Client) Lookup(ctx context.Context, collectionID int64) (*Response, bool) {
	params := url.Values{}
	params.Set("id", strconv.FormatInt(collectionID, 10))
	params.Set("entity", "song")
	params.Set("country", c.config.Country)

	return c.get(ctx, "lookup", params, retryPolicy{
		attempts:        c.config.LookupAttempts,
		timeout:         c.config.LookupTimeout,
		throttleStep:    c.config.LookupThrottleBackoff,
		errorBase:       c.config.ErrorBackoff,
		giveUpOnTimeout: true,
	})
}

func (c *Client) get(
	ctx context.Context,
	endpoint string,
	params url.Values,
	policy retryPolicy,
) (*Response, bool) {
	reqURL := fmt.Sprintf("%s/%s?%s", c.config.BaseURL, endpoint, params.Encode())
	log := c.logger.WithField("endpoint", endpoint)

	for attempt := 0; attempt < policy.attempts; attempt++ {
		var wait time.Duration

		resp, status, err := c.do(ctx, reqURL, policy.timeout)

		switch {
		case err != nil:
			if ctx.Err() != nil {
				upstreamRequestsTotal.WithLabelValues(endpoint, "canceled").Inc()

				return nil, false
			}

			if policy.giveUpOnTimeout && isTimeout(err) {
				upstreamRequestsTotal.WithLabelValues(endpoint, "timeout").Inc()
				log.WithError(err).Debug("Request timed out, giving up")

				return nil, false
			}

			upstreamRequestsTotal.WithLabelValues(endpoint, "error").Inc()
			log.WithError(err).WithField("attempt", attempt+1).Debug("Request failed")

			wait = policy.errorBase << attempt
		case status == http.StatusOK:
			upstreamRequestsTotal.WithLabelValues(endpoint, "ok").Inc()

			return resp, true
		case status == http.StatusForbidden || status == http.StatusTooManyRequests:
			upstreamRequestsTotal.WithLabelValues(endpoint, "throttled").Inc()

			wait = policy.throttleStep * time.Duration(attempt+1)

			log.WithFields(logrus.Fields{
				"status":  status,
				"attempt": attempt + 1,
				"wait":    wait,
			}).Warn("Throttled by upstream")
		default:
			upstreamRequestsTotal.WithLabelValues(endpoint, "status_"+strconv.Itoa(status)).Inc()
			log.WithFields(logrus.Fields{
				"status":  status,
				"attempt": attempt + 1,
			}).Debug("Unexpected status code")

			wait = policy.errorBase << attempt
		}

		if attempt == policy.attempts-1 {
			break
		}

		if err := c.sleep(ctx, wait); err != nil {
			return nil, false
		}
	}

	log.WithField("attempts", policy.attempts).Debug("Upstream unavailable, retries exhausted")

	return nil, false
}

// do performs one attempt. Non-200 responses are reported through the status
// code with a nil error.
func (c *Client) do(
	ctx context.Context,
	reqURL string,
	timeout time.Duration,
) (*Response, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil, resp.StatusCode, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	var parsed Response
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("parse JSON: %w", err)
	}

	return &parsed, resp.StatusCode, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

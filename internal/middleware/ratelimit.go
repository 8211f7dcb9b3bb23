package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fragezeichen/roulette/internal/config"
	"github.com/fragezeichen/roulette/internal/ratelimit"
)

type compiledRule struct {
	rule    ratelimit.Rule
	pattern *regexp.Regexp
}

// RateLimit returns a middleware that enforces the configured request budgets.
// Rules are matched against the path in order; the first match applies.
func RateLimit(
	log logrus.FieldLogger,
	cfg config.RateLimitingConfig,
	limiter ratelimit.Service,
) func(http.Handler) http.Handler {
	log = log.WithField("component", "ratelimit_middleware")

	rules := make([]compiledRule, len(cfg.Rules))
	for i, r := range cfg.Rules {
		rules[i] = compiledRule{
			rule:    ratelimit.Rule{Name: r.Name, Limit: r.Limit, Window: r.Window},
			pattern: regexp.MustCompile(r.PathPattern),
		}
	}

	exemptNets := parseExemptIPs(cfg.ExemptIPs)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)

			if isExempt(ip, exemptNets) {
				next.ServeHTTP(w, r)

				return
			}

			match := findMatchingRule(r.URL.Path, rules)
			if match == nil {
				next.ServeHTTP(w, r)

				return
			}

			rule := match.rule

			d, err := limiter.Allow(r.Context(), ip, rule)
			if err != nil {
				rateLimitErrorsTotal.WithLabelValues(rule.Name).Inc()

				log.WithError(err).WithFields(logrus.Fields{
					"ip":   ip,
					"path": r.URL.Path,
					"rule": rule.Name,
				}).Error("Rate limit check failed")

				writeErrorJSON(w, http.StatusServiceUnavailable, "rate limiter unavailable", 0)

				return
			}

			if !d.ResetAt.IsZero() {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
			}

			if !d.Allowed {
				rateLimitDeniedTotal.WithLabelValues(rule.Name).Inc()

				retryAfter := int(time.Until(d.ResetAt).Seconds())
				if retryAfter <= 0 {
					retryAfter = int(rule.Window.Seconds())
				}

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeErrorJSON(w, http.StatusTooManyRequests, "rate limit exceeded", retryAfter)

				log.WithFields(logrus.Fields{
					"ip":          ip,
					"path":        r.URL.Path,
					"rule":        rule.Name,
					"retry_after": retryAfter,
				}).Warn("Rate limit exceeded")

				return
			}

			rateLimitAllowedTotal.WithLabelValues(rule.Name).Inc()
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP picks the client address: CF-Connecting-IP, then the first
// X-Forwarded-For entry, then X-Real-IP, then RemoteAddr.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")

		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}

func parseExemptIPs(exemptIPs []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(exemptIPs))

	for _, entry := range exemptIPs {
		if _, network, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, network)

			continue
		}

		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}

		bits := 128
		if ip.To4() != nil {
			ip = ip.To4()
			bits = 32
		}

		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}

	return nets
}

func isExempt(ip string, exemptNets []*net.IPNet) bool {
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}

	for _, network := range exemptNets {
		if network.Contains(parsedIP) {
			return true
		}
	}

	return false
}

func findMatchingRule(path string, rules []compiledRule) *compiledRule {
	for i := range rules {
		if rules[i].pattern.MatchString(path) {
			return &rules[i]
		}
	}

	return nil
}

func writeErrorJSON(w http.ResponseWriter, status int, message string, retryAfter int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"error":  message,
		"status": status,
	}

	if retryAfter > 0 {
		response["retry_after"] = retryAfter
	}

	_ = json.NewEncoder(w).Encode(response)
}

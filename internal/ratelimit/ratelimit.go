// Package ratelimit implements fixed-window request limits shared through Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/fragezeichen/roulette/internal/redis"
)

// Failure modes applied when Redis cannot be reached.
const (
	FailOpen   = "fail_open"
	FailClosed = "fail_closed"
)

// Compile-time interface compliance check.
var _ Service = (*service)(nil)

// hit increments KEYS[1] and returns the count with the remaining window in
// milliseconds. The window starts on the first hit.
var hit = goredis.NewScript(`
local count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// Rule is a named request budget.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Service checks client requests against a rule.
type Service interface {
	Start(ctx context.Context) error
	Stop() error
	Allow(ctx context.Context, ip string, rule Rule) (Decision, error)
}

type service struct {
	log   logrus.FieldLogger
	redis redis.Client
	now   func() time.Time

	// Failure mode: "fail_open" or "fail_closed"
	failureMode string
}

// NewService creates a limiter that counts in the given Redis client.
func NewService(
	log logrus.FieldLogger,
	client redis.Client,
	failureMode string,
) Service {
	return &service{
		log:         log.WithField("component", "ratelimit"),
		redis:       client,
		now:         time.Now,
		failureMode: failureMode,
	}
}

func (s *service) Start(_ context.Context) error {
	s.log.WithField("failure_mode", s.failureMode).Info("Rate limiter started")

	return nil
}

func (s *service) Stop() error {
	s.log.Info("Rate limiter stopped")

	return nil
}

// Allow counts one request of ip against rule. Counter and window expiry are
// updated in a single script so concurrent replicas never lose the TTL.
func (s *service) Allow(ctx context.Context, ip string, rule Rule) (Decision, error) {
	key := s.redis.Key(fmt.Sprintf("ratelimit:%s:%s", rule.Name, ip))

	res, err := hit.Run(ctx, s.redis.GetClient(), []string{key}, rule.Window.Milliseconds()).Int64Slice()
	if err == nil && len(res) != 2 {
		err = fmt.Errorf("unexpected script reply %v", res)
	}

	if err != nil {
		s.log.WithError(err).WithField("rule", rule.Name).Error("Rate limit counter update failed")

		if s.failureMode == FailClosed {
			return Decision{}, fmt.Errorf("rate limiter unavailable: %w", err)
		}

		return Decision{Allowed: true}, nil
	}

	count, ttl := res[0], time.Duration(res[1])*time.Millisecond

	d := Decision{
		Allowed: count <= int64(rule.Limit),
		ResetAt: s.now().Add(ttl),
	}

	if d.Allowed {
		d.Remaining = rule.Limit - int(count)
	}

	return d, nil
}

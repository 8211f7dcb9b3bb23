package refreshlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fragezeichen/roulette/internal/redis"
)

// ErrLocked is returned by TryLock while another holder owns the lease.
var ErrLocked = errors.New("refresh lease held by another instance")

// Locker hands out the cluster-wide refresh lease.
type Locker interface {
	TryLock(ctx context.Context) (*Lease, error)
}

// Compile-time interface compliance check.
var _ Locker = (*Lock)(nil)

// Lock is a Redis lease shared by every instance using the same key.
type Lock struct {
	log   logrus.FieldLogger
	cfg   Config
	redis redis.Client
	key   string
}

// New creates a lock over a started Redis client.
func New(log logrus.FieldLogger, cfg Config, client redis.Client) *Lock {
	return &Lock{
		log:   log.WithField("component", "refreshlock"),
		cfg:   cfg,
		redis: client,
		key:   client.Key(cfg.Key),
	}
}

// TryLock acquires the lease without waiting. The returned lease is renewed
// in the background until Release.
func (l *Lock) TryLock(ctx context.Context) (*Lease, error) {
	token := uuid.New().String()

	acquired, err := l.redis.SetNX(ctx, l.key, token, l.cfg.TTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire refresh lease: %w", err)
	}

	if !acquired {
		holder, _ := l.redis.Get(ctx, l.key)
		l.log.WithField("holder", holder).Debug("Refresh lease is held elsewhere")

		return nil, ErrLocked
	}

	lease := &Lease{
		lock:  l,
		token: token,
		done:  make(chan struct{}),
	}

	lease.wg.Add(1)

	go lease.renewLoop()

	l.log.WithField("token", token).Debug("Acquired refresh lease")

	return lease, nil
}

// Lease is one held refresh lease.
type Lease struct {
	lock  *Lock
	token string

	mu   sync.Mutex
	lost bool

	once sync.Once
	done chan struct{}
	wg   sync.WaitGroup
}

// Token returns the value stored under the lease key.
func (l *Lease) Token() string {
	return l.token
}

// Lost reports whether the lease expired or was taken over while held.
func (l *Lease) Lost() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.lost
}

// Release stops renewal and deletes the key if it still carries our token.
// It is safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(func() {
		close(l.done)
		l.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		released, err := l.lock.redis.CompareAndDelete(ctx, l.lock.key, l.token)
		if err != nil {
			l.lock.log.WithError(err).Warn("Failed to release refresh lease")

			return
		}

		if !released {
			l.lock.log.Warn("Refresh lease was no longer ours at release")

			return
		}

		l.lock.log.Debug("Released refresh lease")
	})
}

func (l *Lease) renewLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.lock.cfg.RenewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			if !l.renew() {
				return
			}
		}
	}
}

func (l *Lease) renew() bool {
	ctx, cancel := context.WithTimeout(context.Background(), l.lock.cfg.RenewInterval)
	defer cancel()

	held, err := l.extend(ctx)
	if err != nil {
		// Transient; the TTL still covers the next attempt.
		l.lock.log.WithError(err).Warn("Failed to renew refresh lease")

		return true
	}

	if held {
		l.lock.log.Debug("Renewed refresh lease")
	}

	return held
}

// Confirm extends the lease and reports whether it is still ours. Once lost
// a lease stays lost. A Redis error keeps the last known state, which the
// TTL still backs.
func (l *Lease) Confirm(ctx context.Context) bool {
	if l.Lost() {
		return false
	}

	held, err := l.extend(ctx)
	if err != nil {
		l.lock.log.WithError(err).Warn("Failed to confirm refresh lease")

		return !l.Lost()
	}

	return held
}

// extend pushes the expiry out by one TTL if the key still carries our
// token, and marks the lease lost otherwise.
func (l *Lease) extend(ctx context.Context) (bool, error) {
	renewed, err := l.lock.redis.CompareAndExpire(ctx, l.lock.key, l.token, l.lock.cfg.TTL)
	if err != nil {
		return false, err
	}

	if !renewed {
		l.mu.Lock()
		wasLost := l.lost
		l.lost = true
		l.mu.Unlock()

		if !wasLost {
			l.lock.log.Warn("Lost refresh lease to another instance")
		}

		return false, nil
	}

	return true, nil
}

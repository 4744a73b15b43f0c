// Package ratelimit paces outbound requests of one browser session and rides out
// "too many requests" responses with a bounded cooldown retry.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"go-jobharvest/internal/browser"
)

var (
	// ErrRateLimited is returned by a request func when the response looks like a 429.
	ErrRateLimited = errors.New("rate limited")
	// ErrRetriesExhausted means every cooldown retry was rate limited too.
	ErrRetriesExhausted = errors.New("rate limit retries exhausted")
)

type Config struct {
	MinDelay   time.Duration
	Cooldown   time.Duration
	MaxRetries int
	//optional burst budget on top of MinDelay; disabled when either is zero
	Requests int
	Window   time.Duration
}

// State is the pacing state of one session. It is never shared between sessions.
type State struct {
	LastRequest    time.Time
	Consecutive429 int
	Total429       int
}

// Limiter is owned by a single session or crawler and is not safe for concurrent use.
type Limiter struct {
	cfg    Config
	state  State
	budget *rate.Limiter
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	log    logrus.FieldLogger

	// OnRateLimited runs each time a rate-limit signal is seen.
	OnRateLimited func()
}

type Option func(*Limiter)

// WithClock replaces wall-clock time and sleeping, for tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) {
		l.now = now
		l.sleep = sleep
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Limiter) { l.log = log }
}

func New(cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		cfg:   cfg,
		now:   time.Now,
		sleep: browser.Sleep,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if cfg.Requests > 0 && cfg.Window > 0 {
		l.budget = rate.NewLimiter(rate.Every(cfg.Window/time.Duration(cfg.Requests)), cfg.Requests)
	}
	return l
}

func (l *Limiter) State() State { return l.state }

// Wait blocks until MinDelay has passed since the previous request, then stamps the new one.
func (l *Limiter) Wait(ctx context.Context) error {
	if !l.state.LastRequest.IsZero() {
		if elapsed := l.now().Sub(l.state.LastRequest); elapsed < l.cfg.MinDelay {
			remaining := l.cfg.MinDelay - elapsed
			l.log.Debugf("⏳ Rate limit: waiting %s", remaining.Round(time.Millisecond))
			if err := l.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}

	if l.budget != nil {
		now := l.now()
		r := l.budget.ReserveN(now, 1)
		if !r.OK() {
			return fmt.Errorf("request budget of %d per %s cannot be met", l.cfg.Requests, l.cfg.Window)
		}
		if d := r.DelayFrom(now); d > 0 {
			if err := l.sleep(ctx, d); err != nil {
				r.CancelAt(now)
				return err
			}
		}
	}

	l.state.LastRequest = l.now()
	return nil
}

// Backoff records a rate-limit signal seen outside Do and sleeps the cooldown.
func (l *Limiter) Backoff(ctx context.Context) error {
	l.state.Consecutive429++
	l.state.Total429++
	if l.OnRateLimited != nil {
		l.OnRateLimited()
	}
	l.log.Warnf("🚫 Rate limited, cooling down for %s", l.cfg.Cooldown)
	return l.sleep(ctx, l.cfg.Cooldown)
}

// Do paces and runs fn. When fn reports ErrRateLimited it cools down and retries the same
// request, at most MaxRetries times.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	for retries := 0; ; retries++ {
		if err := l.Wait(ctx); err != nil {
			return err
		}

		err := fn(ctx)
		if !errors.Is(err, ErrRateLimited) {
			if err == nil {
				l.state.Consecutive429 = 0
			}
			return err
		}

		l.state.Consecutive429++
		l.state.Total429++
		if l.OnRateLimited != nil {
			l.OnRateLimited()
		}

		if retries >= l.cfg.MaxRetries {
			l.log.Warnf("❌ Rate limit retries exhausted (%d)", retries)
			return fmt.Errorf("%w after %d retries: %w", ErrRetriesExhausted, retries, err)
		}

		l.log.Warnf("🚫 Rate limited, cooling down for %s (retry %d/%d)", l.cfg.Cooldown, retries+1, l.cfg.MaxRetries)
		if err := l.sleep(ctx, l.cfg.Cooldown); err != nil {
			return err
		}
	}
}

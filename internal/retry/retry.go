// Package retry wraps a single navigation or page action with bounded, classified retries.
package retry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"go-jobharvest/internal/browser"
)

type Policy struct {
	MaxAttempts    int
	Delay          time.Duration
	Exponential    bool
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

type Controller struct {
	policy Policy
	sleep  func(ctx context.Context, d time.Duration) error
	log    logrus.FieldLogger
}

type Option func(*Controller)

func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) { c.sleep = sleep }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Controller) { c.log = log }
}

func New(policy Policy, opts ...Option) *Controller {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	c := &Controller{
		policy: policy,
		sleep:  browser.Sleep,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do runs fn until it succeeds, fails fatally, or runs out of attempts. Each attempt gets its
// own timeout and is detached from ctx cancellation, so a cancelled session stops between
// attempts rather than inside one. Exhaustion returns an *ExhaustedError.
func (c *Controller) Do(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	var last error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.attempt(ctx, fn)
		if err == nil {
			if attempt > 1 {
				c.log.Infof("✅ %s succeeded on attempt %d", label, attempt)
			}
			return nil
		}
		if IsFatal(err) {
			return err
		}

		last = err
		c.log.Warnf("⚠️ %s failed (attempt %d/%d): %v", label, attempt, c.policy.MaxAttempts, err)
		if attempt == c.policy.MaxAttempts {
			break
		}
		if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
			return err
		}
	}

	return &ExhaustedError{Label: label, Attempts: c.policy.MaxAttempts, Last: last}
}

func (c *Controller) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	attemptCtx := context.WithoutCancel(ctx)
	if c.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(attemptCtx, c.policy.AttemptTimeout)
		defer cancel()
	}
	return fn(attemptCtx)
}

// backoff is the wait after the given failed attempt (1-based).
func (c *Controller) backoff(attempt int) time.Duration {
	d := c.policy.Delay
	if c.policy.Exponential {
		d = c.policy.Delay << (attempt - 1)
	}
	if c.policy.MaxDelay > 0 && d > c.policy.MaxDelay {
		d = c.policy.MaxDelay
	}
	return d
}

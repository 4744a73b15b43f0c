package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go-jobharvest/internal/breadcrumb"
	"go-jobharvest/internal/browser"
	"go-jobharvest/internal/extract"
	"go-jobharvest/internal/ratelimit"
	"go-jobharvest/internal/retry"
)

// ErrBlocked means an anti-bot interstitial replaced the page.
var ErrBlocked = errors.New("blocked by anti-bot challenge")

var challengeTitles = []string{"attention required", "just a moment", "cloudflare", "access denied"}

// Navigator performs outbound page loads for a session: paced by the rate limiter, retried
// by the retry controller, checked for throttling and challenge pages.
type Navigator struct {
	Retry   *retry.Controller
	Limiter *ratelimit.Limiter
	Detect  ratelimit.Detector
	Crumbs  *breadcrumb.Recorder
}

// Goto loads url into page.
func (n *Navigator) Goto(ctx context.Context, page browser.Page, url string) error {
	err := n.Limiter.Do(ctx, func(ctx context.Context) error {
		return n.Retry.Do(ctx, "goto "+url, func(actx context.Context) error {
			status, err := page.Goto(actx, url)
			if err != nil {
				return err
			}
			return n.check(page, status, url)
		})
	})
	n.record("goto", url, err)
	return err
}

// Click clicks selector on page as one paced, retried action. A click is never repeated
// after it landed: if it led to a rate-limit page, the resulting URL is reloaded after a
// cooldown instead.
func (n *Navigator) Click(ctx context.Context, page browser.Page, selector string) error {
	if err := n.Limiter.Wait(ctx); err != nil {
		return err
	}
	err := n.Retry.Do(ctx, "click "+selector, func(actx context.Context) error {
		return page.Click(actx, selector)
	})
	if err == nil {
		err = n.check(page, 0, selector)
		if errors.Is(err, ratelimit.ErrRateLimited) {
			if err = n.Limiter.Backoff(ctx); err == nil {
				err = n.Goto(ctx, page, page.URL())
			}
		}
	}
	n.record("click", selector, err)
	return err
}

// Act retries an action that does not hit the network on its own.
func (n *Navigator) Act(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	err := n.Retry.Do(ctx, label, fn)
	n.record("act", label, err)
	return err
}

func (n *Navigator) check(page browser.Page, status int, target string) error {
	switch {
	case status == http.StatusNotFound || status == http.StatusGone:
		return retry.Fatal(fmt.Errorf("%s returned %d", target, status))
	case status >= 500:
		return fmt.Errorf("%s returned %d", target, status)
	}

	title, _ := page.Title()
	sig := ratelimit.Signal{Status: status, Title: title}
	if status != http.StatusTooManyRequests {
		if html, err := page.Content(); err == nil {
			sig.Body = extract.BodyText(html)
		}
	}
	if n.Detect != nil && n.Detect(sig) {
		if n.Crumbs != nil {
			n.Crumbs.Incr(breadcrumb.RateLimitsHit, 1)
		}
		return fmt.Errorf("%s: %w", target, ratelimit.ErrRateLimited)
	}

	lower := strings.ToLower(title)
	for _, marker := range challengeTitles {
		if strings.Contains(lower, marker) {
			return retry.Fatal(fmt.Errorf("%s (%q): %w", target, title, ErrBlocked))
		}
	}
	return nil
}

func (n *Navigator) record(action, target string, err error) {
	if n.Crumbs == nil {
		return
	}
	if err != nil {
		n.Crumbs.Add(action, target, "failed: "+err.Error())
		return
	}
	n.Crumbs.Add(action, target, "ok")
}

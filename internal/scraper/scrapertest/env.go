// Package scrapertest builds strategy environments that never sleep, for unit tests.
package scrapertest

import (
	"context"
	"time"

	"go-jobharvest/internal/breadcrumb"
	"go-jobharvest/internal/browser"
	"go-jobharvest/internal/config"
	"go-jobharvest/internal/logging"
	"go-jobharvest/internal/ratelimit"
	"go-jobharvest/internal/retry"
	"go-jobharvest/internal/scraper"
)

// NoSleep returns immediately unless ctx is already done.
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// Navigator retries twice with no delay and never waits on the limiter.
func Navigator(crumbs *breadcrumb.Recorder) *scraper.Navigator {
	log := logging.Discard()
	return &scraper.Navigator{
		Retry: retry.New(retry.Policy{MaxAttempts: 2, AttemptTimeout: 5 * time.Second},
			retry.WithSleep(NoSleep), retry.WithLogger(log)),
		Limiter: ratelimit.New(ratelimit.Config{MaxRetries: 1},
			ratelimit.WithClock(time.Now, NoSleep), ratelimit.WithLogger(log)),
		Detect: ratelimit.NewDetector(ratelimit.SessionIndicators),
		Crumbs: crumbs,
	}
}

// Env wires site to a quiet navigator. Pauses are recorded into pauses when it is non-nil.
func Env(site config.SiteConfig, pauses *int) scraper.Env {
	return scraper.Env{
		Site: site,
		Nav:  Navigator(breadcrumb.New(100)),
		Log:  logging.Discard(),
		Pause: func(ctx context.Context, min, max time.Duration) error {
			if pauses != nil {
				*pauses++
			}
			return ctx.Err()
		},
		Known: func(context.Context, string) bool { return false },
	}
}

// Site is a minimal enabled descriptor with settings defaults applied.
func Site(name, typ, rawURL string, selectors map[string]string) config.SiteConfig {
	return config.SiteConfig{
		Name:      name,
		URL:       rawURL,
		Group:     "test",
		Type:      typ,
		Selectors: selectors,
		Settings:  config.SiteSettings{StartPage: 1, URLPattern: "{base_url}?page={page_num}", MaxPages: 500, MaxConsecutiveErrors: 8},
		Enabled:   true,
	}
}

// Drive runs the open/extract/advance loop the way a session does and returns the links
// in order plus the number of pages read.
func Drive(ctx context.Context, s scraper.Strategy, page browser.Page) ([]scraper.JobLink, int, error) {
	st := scraper.NewState()
	if err := s.Open(ctx, page, st); err != nil {
		return nil, 0, err
	}
	var links []scraper.JobLink
	pages := 0
	for pages < 100 {
		batch, err := s.ExtractLinks(ctx, page, st)
		if err != nil {
			return links, pages, err
		}
		st.MarkRead(len(batch.Links))
		pages++
		links = append(links, batch.Links...)

		step, err := s.Advance(ctx, page, st)
		if err != nil {
			return links, pages, err
		}
		if step == scraper.Exhausted {
			break
		}
	}
	return links, pages, nil
}

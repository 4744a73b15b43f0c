package scraper

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go-jobharvest/internal/breadcrumb"
	"go-jobharvest/internal/browser"
	"go-jobharvest/internal/cache"
	"go-jobharvest/internal/config"
	"go-jobharvest/internal/extract"
	"go-jobharvest/internal/reporter"
	"go-jobharvest/internal/retry"
	"go-jobharvest/utils"
)

// ErrConsecutiveFailures aborts a session whose job links keep failing back to back.
var ErrConsecutiveFailures = errors.New("too many consecutive failures")

type Options struct {
	EmptyPageRetries int
	SettleDelay      time.Duration
	//MaxBackoff caps the wait between consecutive link failures
	MaxBackoff time.Duration
}

// Session is one end-to-end run over a single site. It owns its page, cursor, limiter and
// recorder; only the cache is shared with other sessions.
type Session struct {
	ID       string
	Site     config.SiteConfig
	Strategy Strategy
	Nav      *Navigator
	Cache    *cache.Cache
	Crumbs   *breadcrumb.Recorder
	Reporter reporter.Reporter
	Browser  browser.Session
	Debug    *utils.ScreenShotDebugger
	Opts     Options
	Sleep    func(ctx context.Context, d time.Duration) error
	//Scroll nudges lazy-loading lists before an empty page is re-read; nil skips it
	Scroll func(ctx context.Context, page browser.Page) error
	Log    logrus.FieldLogger
}

type Result struct {
	SessionID      string           `json:"session_id"`
	Site           string           `json:"site"`
	Group          string           `json:"group"`
	Type           string           `json:"type"`
	Success        bool             `json:"success"`
	Classification string           `json:"classification,omitempty"`
	Error          string           `json:"error,omitempty"`
	Pages          int              `json:"pages"`
	Links          []JobLink        `json:"links"`
	Stats          breadcrumb.Stats `json:"stats"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     time.Time        `json:"finished_at"`
}

// run carries the mutable bits of one Run call.
type run struct {
	res      Result
	st       *PaginationState
	listing  browser.Page
	detail   browser.Page
	seen     mapset.Set[string]
	failures int
}

// Run drives the strategy until it reports exhaustion, the page cap is hit, or a listing
// level failure aborts the session. It never panics on site errors; the outcome is in Result.
func (s *Session) Run(ctx context.Context) Result {
	r := &run{
		res: Result{
			SessionID: s.ID,
			Site:      s.Site.Name,
			Group:     s.Site.Group,
			Type:      s.Site.Type,
			StartedAt: time.Now(),
		},
		st:   NewState(),
		seen: mapset.NewThreadUnsafeSet[string](),
	}
	defer func() {
		if r.detail != nil {
			r.detail.Close()
		}
		if r.listing != nil {
			r.listing.Close()
		}
	}()

	s.Log.Infof("🚀 Scraping %s (%s) from %s", s.Site.Name, s.Site.Type, s.Site.URL)

	listing, err := s.Browser.NewPage()
	if err != nil {
		return s.abort(ctx, r, "new_page", err)
	}
	r.listing = listing

	if err := s.Strategy.Open(ctx, listing, r.st); err != nil {
		return s.abort(ctx, r, "open", err)
	}

	maxPages := s.Site.Settings.MaxPages
	for {
		//Cancellation lands between pagination steps
		if err := ctx.Err(); err != nil {
			return s.abort(ctx, r, "between_pages", err)
		}

		s.Crumbs.Incr(breadcrumb.PagesVisited, 1)
		batch, err := s.extract(ctx, r.listing, r.st)
		if err != nil {
			return s.abort(ctx, r, "extract_links", err)
		}
		r.st.MarkRead(len(batch.Links))
		r.res.Pages++
		s.Crumbs.Add("extract", fmt.Sprintf("page %d", r.st.Page), fmt.Sprintf("%d links", len(batch.Links)))
		s.Log.Infof("📄 %s page %d: %d links", s.Site.Name, r.st.Page, len(batch.Links))

		for _, skip := range batch.Skipped {
			if err := s.skip(ctx, r, skip.Target, skip.Err); err != nil {
				return s.abort(ctx, r, "extract_links", err)
			}
		}

		for _, link := range batch.Links {
			if err := ctx.Err(); err != nil {
				return s.abort(ctx, r, "collect", err)
			}
			key := s.Cache.Normalize(link.URL)
			if r.seen.Contains(key) {
				continue
			}
			r.seen.Add(key)
			s.Crumbs.Incr(breadcrumb.LinksFound, 1)

			got, err := s.collect(ctx, r, link)
			if err != nil {
				if ctx.Err() != nil {
					return s.abort(ctx, r, "collect", err)
				}
				if err := s.skip(ctx, r, link.URL, err); err != nil {
					return s.abort(ctx, r, "collect", err)
				}
				continue
			}
			r.failures = 0
			r.res.Links = append(r.res.Links, got)
		}

		if maxPages > 0 && r.res.Pages >= maxPages {
			s.Log.Warnf("🛑 %s reached max_pages (%d), stopping", s.Site.Name, maxPages)
			s.Crumbs.Add("advance", "max_pages", "stopped")
			break
		}

		step, err := s.Strategy.Advance(ctx, r.listing, r.st)
		if err != nil {
			return s.abort(ctx, r, "advance", err)
		}
		if step == Exhausted {
			s.Crumbs.Add("advance", fmt.Sprintf("page %d", r.st.Page), "exhausted")
			s.Log.Infof("✅ %s: no more pages after page %d", s.Site.Name, r.st.Page)
			break
		}
	}

	r.res.Success = true
	return s.finish(ctx, r)
}

// extract reads the current page, re-reading a transiently empty one after a settle delay.
func (s *Session) extract(ctx context.Context, page browser.Page, st *PaginationState) (Batch, error) {
	batch, err := s.Strategy.ExtractLinks(ctx, page, st)
	for attempt := 0; err == nil && len(batch.Links) == 0 && len(batch.Skipped) == 0 && attempt < s.Opts.EmptyPageRetries; attempt++ {
		s.Log.Debugf("⏳ %s page %d looks empty, waiting %s", s.Site.Name, st.Page, s.Opts.SettleDelay)
		if err := s.Sleep(ctx, s.Opts.SettleDelay); err != nil {
			return Batch{}, err
		}
		if s.Scroll != nil {
			if err := s.Scroll(ctx, page); err != nil && ctx.Err() != nil {
				return Batch{}, ctx.Err()
			}
		}
		batch, err = s.Strategy.ExtractLinks(ctx, page, st)
	}
	return batch, err
}

// collect makes sure the posting is in the cache, fetching it on a miss.
func (s *Session) collect(ctx context.Context, r *run, link JobLink) (JobLink, error) {
	if link.Content != "" {
		return s.store(ctx, link, link.Content), nil
	}

	if s.Cache.Has(ctx, link.URL) {
		s.Crumbs.Incr(breadcrumb.CacheHits, 1)
		s.Crumbs.Add("cache", link.URL, "hit")
		link.Cached = true
		return link, nil
	}

	if r.detail == nil {
		page, err := s.Browser.NewPage()
		if err != nil {
			return link, fmt.Errorf("failed to open detail page: %w", err)
		}
		r.detail = page
	}

	if err := s.Nav.Goto(ctx, r.detail, link.URL); err != nil {
		return link, err
	}
	html, err := r.detail.Content()
	if err != nil {
		return link, fmt.Errorf("failed to read %s: %w", link.URL, err)
	}
	content := FormatContent(link.URL, html)
	if content == "" {
		return link, fmt.Errorf("%s: %w", link.URL, cache.ErrEmptyContent)
	}

	link = s.store(ctx, link, content)
	if d := s.Site.Settings.SleepBetweenJobs.Duration; d > 0 {
		if err := s.Sleep(ctx, d); err != nil {
			return link, err
		}
	}
	return link, nil
}

// store writes content through the cache. A failed write is recorded and the link is still
// returned with its content attached.
func (s *Session) store(ctx context.Context, link JobLink, content string) JobLink {
	link.Content = content
	written, err := s.Cache.Put(ctx, s.Site.Name, link.URL, content)
	switch {
	case err != nil:
		s.Crumbs.Incr(breadcrumb.CacheWriteFailures, 1)
		s.Crumbs.Add("cache_write", link.URL, "failed: "+err.Error())
		s.Log.Warnf("⚠️ Cache write failed for %s: %v", link.URL, err)
	case written:
		s.Crumbs.Incr(breadcrumb.PagesCached, 1)
		s.Crumbs.Add("cache_write", link.URL, "stored")
		link.Cached = true
	default:
		s.Crumbs.Incr(breadcrumb.CacheHits, 1)
		s.Crumbs.Add("cache_write", link.URL, "already cached")
		link.Cached = true
	}
	return link
}

// skip records a failed job link and waits 2^n seconds before the next one. It returns
// ErrConsecutiveFailures once the site's limit is reached.
func (s *Session) skip(ctx context.Context, r *run, target string, cause error) error {
	s.Crumbs.Incr(breadcrumb.LinksSkipped, 1)
	s.Crumbs.Incr(breadcrumb.FetchFailures, 1)
	s.Crumbs.Add("skip", target, cause.Error())
	s.Log.Warnf("⚠️ Skipping %s: %v", target, cause)

	r.failures++
	limit := s.Site.Settings.MaxConsecutiveErrors
	if limit > 0 && r.failures >= limit {
		return fmt.Errorf("%w (%d): %w", ErrConsecutiveFailures, r.failures, cause)
	}

	wait := time.Duration(math.Pow(2, float64(r.failures))) * time.Second
	if s.Opts.MaxBackoff > 0 && wait > s.Opts.MaxBackoff {
		wait = s.Opts.MaxBackoff
	}
	return s.Sleep(ctx, wait)
}

// Classify extends retry.Classify with the session-level failure classes.
func Classify(err error) string {
	if errors.Is(err, ErrConsecutiveFailures) {
		return "consecutive_failures"
	}
	if errors.Is(err, ErrBlocked) {
		return "blocked"
	}
	return retry.Classify(err)
}

func (s *Session) abort(ctx context.Context, r *run, stage string, err error) Result {
	class := Classify(err)
	r.res.Classification = class
	r.res.Error = err.Error()
	s.Crumbs.Add("abort", stage, err.Error())
	s.Log.Errorf("❌ %s aborted at %s (%s): %v", s.Site.Name, stage, class, err)

	var shot, dump, at string
	if r.listing != nil {
		at = r.listing.URL()
		if s.Debug != nil {
			shot, dump = s.Debug.Capture(r.listing, s.Site.Name, fmt.Sprintf("Capturing %s after %s failure", s.Site.Name, stage))
		}
	}

	rec := reporter.FailureRecord{
		ID:             uuid.NewString(),
		SessionID:      s.ID,
		Site:           s.Site.Name,
		Group:          s.Site.Group,
		Type:           s.Site.Type,
		Classification: class,
		Stage:          stage,
		Message:        err.Error(),
		URL:            at,
		Page:           r.st.Page,
		Breadcrumbs:    s.Crumbs.Snapshot(),
		Stats:          s.Crumbs.Stats(),
		Screenshot:     shot,
		HTMLDump:       dump,
		OccurredAt:     time.Now(),
	}
	//The run may be aborting because ctx was cancelled; the report still goes out
	if rerr := s.Reporter.ReportFailure(context.WithoutCancel(ctx), rec); rerr != nil {
		s.Log.Warnf("⚠️ Failed to report failure for %s: %v", s.Site.Name, rerr)
	}
	return s.finish(ctx, r)
}

func (s *Session) finish(ctx context.Context, r *run) Result {
	r.res.FinishedAt = time.Now()
	r.res.Stats = s.Crumbs.Stats()

	sum := reporter.Summary{
		SessionID:      r.res.SessionID,
		Site:           r.res.Site,
		Success:        r.res.Success,
		Classification: r.res.Classification,
		Pages:          r.res.Pages,
		Links:          len(r.res.Links),
		Stats:          r.res.Stats,
		StartedAt:      r.res.StartedAt,
		FinishedAt:     r.res.FinishedAt,
	}
	if err := s.Reporter.ReportSummary(context.WithoutCancel(ctx), sum); err != nil {
		s.Log.Warnf("⚠️ Failed to report summary for %s: %v", s.Site.Name, err)
	}
	return r.res
}

// FormatContent is what gets cached for a posting: its URL, a blank line, and the main text.
// Pages with no readable text are cached as raw HTML; an empty page yields "".
func FormatContent(url, html string) string {
	if text := strings.TrimSpace(extract.MainText(html)); text != "" {
		return url + "\n\n" + text
	}
	if strings.TrimSpace(html) == "" {
		return ""
	}
	return html
}

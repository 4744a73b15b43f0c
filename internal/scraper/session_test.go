package scraper_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-jobharvest/internal/breadcrumb"
	"go-jobharvest/internal/browser"
	"go-jobharvest/internal/browser/browsertest"
	"go-jobharvest/internal/cache"
	"go-jobharvest/internal/config"
	"go-jobharvest/internal/logging"
	"go-jobharvest/internal/reporter"
	"go-jobharvest/internal/scraper"
	"go-jobharvest/internal/scraper/scrapertest"
	"go-jobharvest/internal/scraper/standard"
	"go-jobharvest/utils"
)

const listingURL = "https://jobs.example.com/jobs"

type recorder struct {
	mu        sync.Mutex
	failures  []reporter.FailureRecord
	summaries []reporter.Summary
}

func (r *recorder) ReportFailure(_ context.Context, rec reporter.FailureRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, rec)
	return nil
}

func (r *recorder) ReportSummary(_ context.Context, sum reporter.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summaries = append(r.summaries, sum)
	return nil
}

func jobURL(page, n int) string {
	return fmt.Sprintf("https://jobs.example.com/job/%d-%d", page, n)
}

// listingDocs is two listing pages with two postings each.
func listingDocs() map[string]string {
	return map[string]string{
		listingURL: `<html><head><title>Jobs</title></head><body>
<a class="job" href="/job/1-1">One</a><a class="job" href="/job/1-2?utm_source=feed">Two</a>
<a class="next" href="/jobs?p=2">Next</a></body></html>`,
		listingURL + "?p=2": `<html><head><title>Jobs</title></head><body>
<a class="job" href="/job/2-1">Three</a><a class="job" href="/job/2-2">Four</a>
<a class="job" href="/job/1-1">One again</a></body></html>`,
	}
}

func detailDocs(urls ...string) map[string]string {
	docs := make(map[string]string)
	for _, u := range urls {
		docs[u] = fmt.Sprintf(`<html><head><title>Posting</title></head><body>
<nav>Menu</nav><main><h1>Posting %s</h1><p>Duties and requirements.</p></main></body></html>`, u)
	}
	return docs
}

func allDetails() map[string]string {
	return detailDocs(jobURL(1, 1), jobURL(1, 2)+"?utm_source=feed", jobURL(2, 1), jobURL(2, 2))
}

type harness struct {
	sess    *scraper.Session
	rep     *recorder
	listing *browsertest.Page
	detail  *browsertest.Page
	sleeps  []time.Duration
	debug   string
}

type opts struct {
	site     func(*config.SiteConfig)
	backend  cache.Backend
	strategy scraper.Strategy
	details  map[string]string
	cache    *cache.Cache
}

func newHarness(t *testing.T, o opts) *harness {
	t.Helper()
	h := &harness{rep: &recorder{}, debug: t.TempDir()}

	site := scrapertest.Site("acme", standard.Type, listingURL, map[string]string{"job_link": "a.job", "next_page": "a.next"})
	if o.site != nil {
		o.site(&site)
	}

	c := o.cache
	if c == nil {
		backend := o.backend
		if backend == nil {
			fb, err := cache.NewFileBackend(t.TempDir())
			require.NoError(t, err)
			backend = fb
		}
		c = cache.New(backend)
	}

	if o.details == nil {
		o.details = allDetails()
	}
	h.listing = browsertest.New(listingDocs())
	h.detail = browsertest.New(o.details)

	log := logging.Discard()
	crumbs := breadcrumb.New(50)
	nav := scrapertest.Navigator(crumbs)

	strategy := o.strategy
	if strategy == nil {
		var err error
		strategy, err = standard.New(scraper.Env{
			Site:  site,
			Nav:   nav,
			Log:   log,
			Pause: func(ctx context.Context, _, _ time.Duration) error { return ctx.Err() },
			Known: c.Has,
		})
		require.NoError(t, err)
	}

	h.sess = &scraper.Session{
		ID:       "test-session",
		Site:     site,
		Strategy: strategy,
		Nav:      nav,
		Cache:    c,
		Crumbs:   crumbs,
		Reporter: h.rep,
		Browser:  &browsertest.Session{Pages: []*browsertest.Page{h.listing, h.detail}},
		Debug:    utils.NewScreenShotDebugger(h.debug, log),
		Opts:     scraper.Options{MaxBackoff: 10 * time.Second},
		Sleep: func(ctx context.Context, d time.Duration) error {
			h.sleeps = append(h.sleeps, d)
			return ctx.Err()
		},
		Log: log,
	}
	return h
}

func TestSessionCachesEveryPosting(t *testing.T) {
	h := newHarness(t, opts{})
	res := h.sess.Run(context.Background())

	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.Pages)
	require.Len(t, res.Links, 4, "the repeated link on page 2 is collected once")
	assert.Equal(t, 4, res.Stats.PagesCached)
	assert.Equal(t, 4, res.Stats.LinksFound)
	assert.Equal(t, 2, res.Stats.PagesVisited)
	assert.Zero(t, res.Stats.LinksSkipped)

	entry, err := h.sess.Cache.Get(context.Background(), jobURL(1, 2)+"?utm_source=feed")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(entry.Content, jobURL(1, 2)+"?utm_source=feed\n\n"))
	assert.Contains(t, entry.Content, "Duties and requirements.")
	assert.NotContains(t, entry.Content, "Menu")

	assert.True(t, h.listing.Closed)
	assert.True(t, h.detail.Closed)
	require.Len(t, h.rep.summaries, 1)
	assert.True(t, h.rep.summaries[0].Success)
	assert.Empty(t, h.rep.failures)
}

func TestSessionRerunResumesFromCache(t *testing.T) {
	fb, err := cache.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	shared := cache.New(fb)

	first := newHarness(t, opts{cache: shared})
	require.True(t, first.sess.Run(context.Background()).Success)

	second := newHarness(t, opts{cache: shared})
	res := second.sess.Run(context.Background())
	require.True(t, res.Success)
	assert.Equal(t, 4, res.Stats.CacheHits)
	assert.Zero(t, res.Stats.PagesCached)
	assert.Zero(t, second.detail.GotoCount(), "nothing re-fetched")
	for _, l := range res.Links {
		assert.True(t, l.Cached)
	}
}

func TestSessionSkipsMissingPosting(t *testing.T) {
	details := allDetails()
	delete(details, jobURL(2, 1))
	h := newHarness(t, opts{details: details})

	res := h.sess.Run(context.Background())
	require.True(t, res.Success)
	assert.Len(t, res.Links, 3)
	assert.Equal(t, 1, res.Stats.LinksSkipped)
	assert.Equal(t, 1, res.Stats.FetchFailures)
	assert.Equal(t, []time.Duration{2 * time.Second}, h.sleeps)

	var skipped bool
	for _, c := range h.sess.Crumbs.Snapshot() {
		if c.Action == "skip" && c.Target == jobURL(2, 1) {
			skipped = true
		}
	}
	assert.True(t, skipped, "a skipped link leaves a breadcrumb")
}

func TestSessionAbortsAfterConsecutiveFailures(t *testing.T) {
	h := newHarness(t, opts{
		details: map[string]string{},
		site:    func(s *config.SiteConfig) { s.Settings.MaxConsecutiveErrors = 3 },
	})

	res := h.sess.Run(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, "consecutive_failures", res.Classification)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, h.sleeps)

	require.Len(t, h.rep.failures, 1)
	rec := h.rep.failures[0]
	assert.Equal(t, "acme", rec.Site)
	assert.Equal(t, "collect", rec.Stage)
	assert.Equal(t, 3, rec.Stats.LinksSkipped)
	assert.NotEmpty(t, rec.Breadcrumbs)
}

func TestSessionBackoffIsCapped(t *testing.T) {
	h := newHarness(t, opts{
		details: map[string]string{},
		site:    func(s *config.SiteConfig) { s.Settings.MaxConsecutiveErrors = 0 },
	})
	h.sess.Opts.MaxBackoff = 3 * time.Second

	res := h.sess.Run(context.Background())
	assert.True(t, res.Success, "no limit means failures only skip")
	assert.Equal(t, []time.Duration{2 * time.Second, 3 * time.Second, 3 * time.Second, 3 * time.Second}, h.sleeps)
}

func TestSessionAbortsWhenListingUnreachable(t *testing.T) {
	h := newHarness(t, opts{})
	h.listing.GotoErrs[listingURL] = []error{errors.New("net::ERR_TIMED_OUT"), errors.New("net::ERR_TIMED_OUT")}

	res := h.sess.Run(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, "navigation_exhausted", res.Classification)

	require.Len(t, h.rep.failures, 1)
	rec := h.rep.failures[0]
	assert.Equal(t, "open", rec.Stage)
	assert.Equal(t, "test-session", rec.SessionID)
	assert.NotEmpty(t, rec.ID)
	require.NotEmpty(t, rec.Screenshot)
	_, err := os.Stat(rec.Screenshot)
	assert.NoError(t, err)
	require.NotEmpty(t, rec.HTMLDump)
	_, err = os.Stat(rec.HTMLDump)
	assert.NoError(t, err)

	require.Len(t, h.rep.summaries, 1)
	assert.False(t, h.rep.summaries[0].Success)
}

func TestSessionRateLimitedPostingIsSkipped(t *testing.T) {
	details := allDetails()
	details[jobURL(1, 1)] = `<html><head><title>429 Too Many Requests</title></head><body>Slow down</body></html>`
	h := newHarness(t, opts{details: details})

	res := h.sess.Run(context.Background())
	require.True(t, res.Success)
	assert.Len(t, res.Links, 3)
	assert.Equal(t, 1, res.Stats.LinksSkipped)
	assert.Equal(t, 2, res.Stats.RateLimitsHit, "first attempt plus one cooldown retry")
}

func TestSessionCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := newHarness(t, opts{})
	res := h.sess.Run(ctx)
	assert.False(t, res.Success)
	assert.Equal(t, "cancelled", res.Classification)
	require.Len(t, h.rep.failures, 1, "cancelled sessions still report")
	assert.Zero(t, h.detail.GotoCount())
}

type failingBackend struct{}

func (failingBackend) Load(context.Context, string) (*cache.Entry, error) { return nil, cache.ErrMiss }
func (failingBackend) Store(context.Context, *cache.Entry, bool) (bool, error) {
	return false, errors.New("disk full")
}
func (failingBackend) Delete(context.Context, string) error { return nil }
func (failingBackend) Close() error                         { return nil }

func TestSessionKeepsLinksWhenCacheWriteFails(t *testing.T) {
	h := newHarness(t, opts{backend: failingBackend{}})

	res := h.sess.Run(context.Background())
	require.True(t, res.Success)
	require.Len(t, res.Links, 4)
	assert.Equal(t, 4, res.Stats.CacheWriteFailures)
	assert.Zero(t, res.Stats.LinksSkipped)
	for _, l := range res.Links {
		assert.NotEmpty(t, l.Content)
		assert.False(t, l.Cached)
	}
}

func TestSessionStopsAtMaxPages(t *testing.T) {
	h := newHarness(t, opts{site: func(s *config.SiteConfig) { s.Settings.MaxPages = 1 }})

	res := h.sess.Run(context.Background())
	require.True(t, res.Success)
	assert.Equal(t, 1, res.Pages)
	assert.Len(t, res.Links, 2)
	assert.Zero(t, h.listing.ClickCount("a.next"))
}

// scripted returns prepared batches, then reports exhaustion.
type scripted struct {
	batches  []scraper.Batch
	extracts int
}

func (s *scripted) Type() string { return "scripted" }

func (s *scripted) Open(_ context.Context, _ browser.Page, st *scraper.PaginationState) error {
	st.Page = 1
	return nil
}

func (s *scripted) ExtractLinks(context.Context, browser.Page, *scraper.PaginationState) (scraper.Batch, error) {
	b := s.batches[s.extracts]
	s.extracts++
	return b, nil
}

func (s *scripted) Advance(context.Context, browser.Page, *scraper.PaginationState) (scraper.Step, error) {
	return scraper.Exhausted, nil
}

func TestSessionRereadsTransientlyEmptyPage(t *testing.T) {
	strat := &scripted{batches: []scraper.Batch{
		{},
		{Links: []scraper.JobLink{{URL: jobURL(1, 1)}, {URL: jobURL(2, 1)}}},
	}}
	h := newHarness(t, opts{strategy: strat})
	h.sess.Opts.EmptyPageRetries = 1
	h.sess.Opts.SettleDelay = 1500 * time.Millisecond

	res := h.sess.Run(context.Background())
	require.True(t, res.Success)
	assert.Equal(t, 2, strat.extracts)
	assert.Len(t, res.Links, 2)
	assert.Equal(t, 1500*time.Millisecond, h.sleeps[0])
}

func TestSessionStoresInlineContent(t *testing.T) {
	strat := &scripted{batches: []scraper.Batch{
		{Links: []scraper.JobLink{{URL: jobURL(9, 9), Content: jobURL(9, 9) + "\n\nInline body"}}},
	}}
	h := newHarness(t, opts{strategy: strat})

	res := h.sess.Run(context.Background())
	require.True(t, res.Success)
	assert.Equal(t, 1, res.Stats.PagesCached)
	assert.Zero(t, h.detail.GotoCount())

	entry, err := h.sess.Cache.Get(context.Background(), jobURL(9, 9))
	require.NoError(t, err)
	assert.Equal(t, jobURL(9, 9)+"\n\nInline body", entry.Content)
}

func TestFormatContent(t *testing.T) {
	assert.Equal(t, "", scraper.FormatContent("https://x", "   "))
	assert.Equal(t, "https://x\n\nHello", scraper.FormatContent("https://x", "<html><body><p>Hello</p></body></html>"))
	raw := "<html><body><script>var x = 1;</script></body></html>"
	assert.Equal(t, raw, scraper.FormatContent("https://x", raw))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "consecutive_failures", scraper.Classify(fmt.Errorf("x: %w", scraper.ErrConsecutiveFailures)))
	assert.Equal(t, "blocked", scraper.Classify(fmt.Errorf("x: %w", scraper.ErrBlocked)))
	assert.Equal(t, "cancelled", scraper.Classify(context.Canceled))
	assert.Equal(t, "", scraper.Classify(nil))
}

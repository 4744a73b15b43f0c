// Package discovery searches a search engine for smaller job boards and ranks them.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"

	"go-jobharvest/internal/browser"
	"go-jobharvest/internal/config"
	"go-jobharvest/internal/extract"
	"go-jobharvest/internal/ratelimit"
	"go-jobharvest/utils"
)

// ErrNoResults means none of the result selectors matched the search page.
var ErrNoResults = errors.New("no result selector matched")

// Stats counts a run. QueriesProcessed includes failed queries; QueryFailures is the
// subset that produced no results page.
type Stats struct {
	QueriesProcessed      int `json:"queries_processed"`
	TotalResultsFound     int `json:"total_results_found"`
	ExcludedBigBoards     int `json:"excluded_big_boards"`
	ExcludedDuplicateURLs int `json:"excluded_duplicate_urls"`
	ExcludedLowScore      int `json:"excluded_low_score"`
	BoardsAdded           int `json:"boards_added"`
	RateLimitsHit         int `json:"rate_limits_hit"`
	QueryFailures         int `json:"query_failures"`
}

// Crawler runs queries one at a time on a single page. It is not safe for concurrent use.
type Crawler struct {
	Engine  config.SearchEngineConfig
	Page    browser.Page
	Limiter *ratelimit.Limiter
	Detect  ratelimit.Detector
	Scorer  *Scorer
	//optional; captures the page when no result selector matches
	Debug *utils.ScreenShotDebugger
	Now   func() time.Time
	Log   logrus.FieldLogger

	boards  Boards
	visited mapset.Set[string]
	stats   Stats
}

// NewCrawler wires a crawler with its own limiter; discovery never shares pacing with
// the site sessions.
func NewCrawler(cfg config.DiscoveryConfig, page browser.Page, log logrus.FieldLogger) *Crawler {
	c := &Crawler{
		Engine: cfg.SearchEngine,
		Page:   page,
		Detect: ratelimit.NewDetector(ratelimit.DefaultIndicators),
		Scorer: NewScorer(cfg),
		Now:    time.Now,
		Log:    log,
	}
	c.Limiter = ratelimit.New(ratelimit.Config{
		MinDelay:   cfg.RateLimit.MinDelay.Duration,
		Cooldown:   cfg.RateLimit.Cooldown.Duration,
		MaxRetries: cfg.RateLimit.Retries(),
		Requests:   cfg.RateLimit.Requests,
		Window:     cfg.RateLimit.Window.Duration,
	}, ratelimit.WithLogger(log))
	c.Limiter.OnRateLimited = c.countRateLimit
	return c
}

func (c *Crawler) countRateLimit() { c.stats.RateLimitsHit++ }

func (c *Crawler) Stats() Stats { return c.stats }

func (c *Crawler) Boards() Boards { return c.boards }

func (c *Crawler) init() {
	if c.boards == nil {
		c.boards = Boards{}
	}
	if c.visited == nil {
		c.visited = mapset.NewThreadUnsafeSet[string]()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Log == nil {
		c.Log = logrus.StandardLogger()
	}
}

// Run searches every query in order. A failed query is counted and skipped; only
// cancellation stops the run early, keeping whatever was found so far.
func (c *Crawler) Run(ctx context.Context, queries []string) error {
	c.init()
	c.Log.Infof("🚀 Starting discovery: %d queries", len(queries))

	for i, query := range queries {
		if err := ctx.Err(); err != nil {
			c.Log.Warnf("🛑 Discovery cancelled after %d/%d queries", i, len(queries))
			return err
		}

		c.Log.Infof("🔎 [%d/%d] Searching: %q", i+1, len(queries), query)
		results, err := c.search(ctx, query)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.stats.QueriesProcessed++
			c.stats.QueryFailures++
			c.Log.Errorf("❌ Query %q failed: %v", query, err)
			continue
		}

		c.stats.TotalResultsFound += len(results)
		added := 0
		for _, r := range results {
			if c.process(r) {
				added++
			}
		}
		c.stats.QueriesProcessed++
		c.Log.Infof("📊 Query done: %d results, %d new boards, %d boards total", len(results), added, len(c.boards))
	}

	c.Log.Infof("✅ Discovery finished: %d boards from %d queries", len(c.boards), c.stats.QueriesProcessed)
	return nil
}

func (c *Crawler) search(ctx context.Context, query string) ([]Result, error) {
	target := SearchURL(c.Engine.BaseURL, c.Engine.Engine, query)

	var html string
	err := c.Limiter.Do(ctx, func(ctx context.Context) error {
		status, err := c.Page.Goto(ctx, target)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", target, err)
		}
		content, err := c.Page.Content()
		if err != nil {
			return fmt.Errorf("failed to read results page: %w", err)
		}
		title, _ := c.Page.Title()
		if c.Detect(ratelimit.Signal{Status: status, Title: title, Body: extract.BodyText(content)}) {
			return ratelimit.ErrRateLimited
		}
		html = content
		return nil
	})
	if err != nil {
		return nil, err
	}

	results, selector, err := ParseResults(html, c.Page.URL(), c.Engine)
	if err != nil {
		return nil, err
	}
	if selector == "" {
		if c.Debug != nil {
			c.Debug.Capture(c.Page, "selector_fail", fmt.Sprintf("No results for %q", query))
		}
		return nil, ErrNoResults
	}
	c.Log.Debugf("🎯 %d results via %q", len(results), selector)
	return results, nil
}

// process applies dedup, exclusion and scoring to one hit; true when a new domain was added.
func (c *Crawler) process(r Result) bool {
	if c.visited.Contains(r.URL) {
		c.stats.ExcludedDuplicateURLs++
		return false
	}
	c.visited.Add(r.URL)

	if c.Scorer.IsExcluded(r.URL) {
		c.stats.ExcludedBigBoards++
		c.Log.Debugf("⛔ Excluded big board: %s", r.URL)
		return false
	}

	domain := ExtractDomain(r.URL)
	score, indicators := c.Scorer.Score(r.URL, r.Title, r.Snippet)
	if score <= 0 || domain == "" {
		c.stats.ExcludedLowScore++
		return false
	}

	added, replaced := c.boards.Observe(Board{
		URL:          r.URL,
		Domain:       domain,
		Title:        r.Title,
		Snippet:      r.Snippet,
		Score:        score,
		Indicators:   indicators,
		DiscoveredAt: c.Now(),
	})
	switch {
	case added:
		c.stats.BoardsAdded++
		c.Log.Infof("✨ New board %s (score %.1f)", domain, score)
	case replaced:
		c.Log.Infof("🔄 Better score %.1f for %s", score, domain)
	}
	return added
}

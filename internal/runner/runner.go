// Package runner executes scrape sessions for many sites with bounded concurrency.
// Sessions are independent: one failing or being cancelled never stops its siblings.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"go-jobharvest/internal/config"
	"go-jobharvest/internal/reporter"
	"go-jobharvest/internal/scraper"
)

// SessionMaker is satisfied by *factory.Factory.
type SessionMaker interface {
	NewSession(ctx context.Context, site config.SiteConfig) (*scraper.Session, error)
}

type Runner struct {
	Maker       SessionMaker
	Concurrency int
	Reporter    reporter.Reporter
	Log         logrus.FieldLogger
}

// Run scrapes every site and returns one result per site, in input order.
func (r *Runner) Run(ctx context.Context, sites []config.SiteConfig) []scraper.Result {
	results := make([]scraper.Result, len(sites))

	var g errgroup.Group
	limit := r.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, site := range sites {
		i, site := i, site
		g.Go(func() error {
			results[i] = r.runOne(ctx, site)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (r *Runner) runOne(ctx context.Context, site config.SiteConfig) scraper.Result {
	if err := ctx.Err(); err != nil {
		return r.setupFailure(ctx, site, err)
	}

	sess, err := r.Maker.NewSession(ctx, site)
	if err != nil {
		return r.setupFailure(ctx, site, err)
	}
	defer func() {
		if err := sess.Browser.Close(); err != nil {
			r.Log.Warnf("⚠️ Failed to close browser session for %s: %v", site.Name, err)
		}
	}()

	r.Log.Infof("▶️ Starting scraper: %s", site.Name)
	return sess.Run(ctx)
}

// setupFailure covers sites that never got a session, so they still leave a record.
func (r *Runner) setupFailure(ctx context.Context, site config.SiteConfig, err error) scraper.Result {
	now := time.Now()
	class := "setup"
	if ctx.Err() != nil {
		class = "cancelled"
	}
	r.Log.Errorf("❌ Error running scraper %s: %v", site.Name, err)

	rec := reporter.FailureRecord{
		ID:             uuid.NewString(),
		Site:           site.Name,
		Group:          site.Group,
		Type:           site.Type,
		Classification: class,
		Stage:          "setup",
		Message:        err.Error(),
		OccurredAt:     now,
	}
	if r.Reporter != nil {
		if rerr := r.Reporter.ReportFailure(context.WithoutCancel(ctx), rec); rerr != nil {
			r.Log.Warnf("⚠️ Failed to report failure for %s: %v", site.Name, rerr)
		}
	}
	return scraper.Result{
		Site:           site.Name,
		Group:          site.Group,
		Type:           site.Type,
		Classification: class,
		Error:          err.Error(),
		StartedAt:      now,
		FinishedAt:     now,
	}
}

// Summary is the file written after a run.
type Summary struct {
	Date      string           `json:"date"`
	Sites     int              `json:"sites"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Links     int              `json:"links"`
	Sessions  []scraper.Result `json:"sessions"`
}

func Summarize(results []scraper.Result, now time.Time) Summary {
	sum := Summary{Date: now.Format(time.RFC3339), Sites: len(results), Sessions: results}
	for _, res := range results {
		if res.Success {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
		sum.Links += len(res.Links)
	}
	return sum
}

// WriteSummary saves results as <dir>/scrape-summary-YYYY-MM-DD.json.
func WriteSummary(dir string, results []scraper.Result, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create logs directory: %w", err)
	}

	data, err := json.MarshalIndent(Summarize(results, now), "", " ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal summary: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("scrape-summary-%s.json", now.Format("2006-01-02")))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write summary: %w", err)
	}
	return path, nil
}

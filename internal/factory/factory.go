// Package factory turns site descriptors into ready-to-run scrape sessions.
package factory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go-jobharvest/internal/breadcrumb"
	"go-jobharvest/internal/browser"
	"go-jobharvest/internal/cache"
	"go-jobharvest/internal/config"
	"go-jobharvest/internal/ratelimit"
	"go-jobharvest/internal/reporter"
	"go-jobharvest/internal/retry"
	"go-jobharvest/internal/scraper"
	"go-jobharvest/internal/scraper/clickthrough"
	"go-jobharvest/internal/scraper/customnav"
	"go-jobharvest/internal/scraper/iframe"
	"go-jobharvest/internal/scraper/standard"
	"go-jobharvest/internal/scraper/urlpaging"
	"go-jobharvest/utils"
)

// DefaultRegistry knows every built-in pagination type.
func DefaultRegistry() *scraper.Registry {
	r := scraper.NewRegistry()
	r.MustRegister(standard.Type, standard.New)
	r.MustRegister(iframe.Type, iframe.New)
	r.MustRegister(urlpaging.Type, urlpaging.New)
	r.MustRegister(clickthrough.Type, clickthrough.New)
	r.MustRegister(customnav.Type, customnav.New)
	return r
}

type Factory struct {
	Cfg      *config.Config
	Registry *scraper.Registry
	Engine   browser.Engine
	Cache    *cache.Cache
	Reporter reporter.Reporter
	Log      logrus.FieldLogger
}

// Validate checks every descriptor's type tag before anything is launched.
func (f *Factory) Validate(sites []config.SiteConfig) error {
	var errs []error
	for _, s := range sites {
		if !f.Registry.Has(s.Type) {
			errs = append(errs, fmt.Errorf("site %s: %w %q (known: %v)", s.Name, scraper.ErrUnknownType, s.Type, f.Registry.Types()))
		}
	}
	return errors.Join(errs...)
}

// Navigator builds the per-session pacing and retry stack. Nothing in it is shared.
func (f *Factory) Navigator(crumbs *breadcrumb.Recorder, log logrus.FieldLogger) *scraper.Navigator {
	rl := f.Cfg.RateLimit
	indicators := rl.Indicators
	if len(indicators) == 0 {
		indicators = ratelimit.SessionIndicators
	}
	rc := f.Cfg.Retry
	return &scraper.Navigator{
		Retry: retry.New(retry.Policy{
			MaxAttempts:    rc.MaxAttempts,
			Delay:          rc.Delay.Duration,
			Exponential:    rc.Backoff == "exponential",
			MaxDelay:       rc.MaxDelay.Duration,
			AttemptTimeout: rc.AttemptTimeout.Duration,
		}, retry.WithLogger(log)),
		Limiter: ratelimit.New(ratelimit.Config{
			MinDelay:   rl.MinDelay.Duration,
			Cooldown:   rl.Cooldown.Duration,
			MaxRetries: rl.Retries(),
			Requests:   rl.Requests,
			Window:     rl.Window.Duration,
		}, ratelimit.WithLogger(log)),
		Detect: ratelimit.NewDetector(indicators),
		Crumbs: crumbs,
	}
}

// Strategy resolves site's type tag through the registry.
func (f *Factory) Strategy(site config.SiteConfig, nav *scraper.Navigator, log logrus.FieldLogger) (scraper.Strategy, error) {
	env := scraper.Env{
		Site:  site,
		Nav:   nav,
		Log:   log,
		Pause: browser.RandomPause,
		Known: f.Cache.Has,
	}
	return f.Registry.New(site.Type, env)
}

// NewSession wires a session for site and opens its isolated browser context.
func (f *Factory) NewSession(ctx context.Context, site config.SiteConfig) (*scraper.Session, error) {
	id := uuid.NewString()
	log := f.Log.WithFields(logrus.Fields{"site": site.Name, "session": id[:8]})

	crumbs := breadcrumb.New(f.Cfg.Report.BreadcrumbLimit)
	nav := f.Navigator(crumbs, log)
	strategy, err := f.Strategy(site, nav, log)
	if err != nil {
		return nil, err
	}

	bs, err := f.Engine.NewSession(ctx, site.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to open browser session for %s: %w", site.Name, err)
	}

	return &scraper.Session{
		ID:       id,
		Site:     site,
		Strategy: strategy,
		Nav:      nav,
		Cache:    f.Cache,
		Crumbs:   crumbs,
		Reporter: f.Reporter,
		Browser:  bs,
		Debug:    utils.NewScreenShotDebugger(filepath.Join(f.Cfg.Report.Dir, "errors"), log),
		Opts: scraper.Options{
			EmptyPageRetries: f.Cfg.Pagination.EmptyRetries(),
			SettleDelay:      f.Cfg.Pagination.SettleDelay.Duration,
			MaxBackoff:       f.Cfg.Retry.MaxDelay.Duration,
		},
		Sleep:  browser.Sleep,
		Scroll: browser.HumanScroll,
		Log:    log,
	}, nil
}

// NewEngine launches the configured browser engine.
func NewEngine(ctx context.Context, cfg config.BrowserConfig, log logrus.FieldLogger) (browser.Engine, error) {
	opts := browser.Options{
		Headless:          cfg.IsHeadless(),
		UserAgent:         cfg.UserAgent,
		CookiesPath:       cfg.CookiesPath,
		NavigationTimeout: cfg.NavigationTimeout.Duration,
	}
	switch cfg.Engine {
	case "chromedp":
		return browser.NewChromedp(ctx, opts, log)
	default:
		return browser.NewPlaywright(ctx, opts, log)
	}
}

// NewReporter always logs to files and adds telegram and kafka when configured.
// The returned close func flushes the kafka writer.
func NewReporter(cfg config.ReportConfig, log logrus.FieldLogger) (reporter.Reporter, func(), error) {
	reporters := reporter.Multi{reporter.NewFileReporter(cfg.Dir, log)}
	closeFn := func() {}

	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := reporter.NewTelegramReporter(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			return nil, closeFn, err
		}
		log.Info("🤖 Telegram reporter initialized.")
		reporters = append(reporters, tg)
	}

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic != "" {
		kr := reporter.NewKafkaReporter(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Infof("📨 Kafka reporter publishing to %s", cfg.KafkaTopic)
		reporters = append(reporters, kr)
		closeFn = func() {
			if err := kr.Close(); err != nil {
				log.Warnf("⚠️ Failed to close kafka writer: %v", err)
			}
		}
	}
	return reporters, closeFn, nil
}

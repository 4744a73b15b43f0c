package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"go-jobharvest/internal/cache"
	"go-jobharvest/internal/config"
	"go-jobharvest/internal/factory"
	"go-jobharvest/internal/logging"
	"go-jobharvest/internal/runner"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config")
	group := flag.String("group", "", "only scrape sites of this group")
	site := flag.String("site", "", "only scrape this site")
	list := flag.Bool("list", false, "list configured groups and sites, then exit")
	force := flag.Bool("force", false, "refetch and overwrite cached pages")
	verbose := flag.Bool("verbose", false, "debug logging")
	flag.Parse()

	log := logging.New(*verbose)

	//load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	log.Infof("🔧 Config loaded from %s (%d groups)", *configPath, len(cfg.JobBoards))

	if *list {
		printSites(cfg)
		return
	}
	if *force {
		cfg.Cache.ForceRefresh = true
	}

	sites, err := cfg.SelectSites(*group, *site)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	if len(sites) == 0 {
		log.Warn("⚠️ No enabled sites to scrape.")
		return
	}

	//cancel sessions between pages on ctrl-c
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, cfg, sites, log))
}

func run(ctx context.Context, cfg *config.Config, sites []config.SiteConfig, log *logrus.Logger) int {
	store, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		log.Errorf("❌ Failed to open %s cache: %v", cfg.Cache.Backend, err)
		return 1
	}
	defer store.Close()
	log.Infof("💾 Cache backend: %s", cfg.Cache.Backend)

	rep, closeReporter, err := factory.NewReporter(cfg.Report, log)
	if err != nil {
		log.Errorf("❌ Failed to init reporter: %v", err)
		return 1
	}
	defer closeReporter()

	f := &factory.Factory{
		Cfg:      cfg,
		Registry: factory.DefaultRegistry(),
		Cache:    store,
		Reporter: rep,
		Log:      log,
	}
	if err := f.Validate(sites); err != nil {
		log.Errorf("❌ Invalid site descriptors: %v", err)
		return 1
	}

	log.Infof("🚀 Starting %d sessions (concurrency %d, engine %s)", len(sites), cfg.Workers.Concurrency, cfg.Browser.Engine)

	engine, err := factory.NewEngine(ctx, cfg.Browser, log)
	if err != nil {
		log.Errorf("❌ Failed to init browser: %v", err)
		return 1
	}
	defer engine.Close()
	f.Engine = engine

	r := &runner.Runner{
		Maker:       f,
		Concurrency: cfg.Workers.Concurrency,
		Reporter:    rep,
		Log:         log,
	}
	results := r.Run(ctx, sites)

	path, err := runner.WriteSummary(cfg.Report.Dir, results, time.Now())
	if err != nil {
		log.Warnf("⚠️ %v", err)
	} else {
		log.Infof("📁 Summary saved to %s", path)
	}

	sum := runner.Summarize(results, time.Now())
	log.Infof("🏁 Execution finished: %d/%d sites succeeded, %d links", sum.Succeeded, sum.Sites, sum.Links)
	if sum.Failed > 0 {
		return 1
	}
	return 0
}

func printSites(cfg *config.Config) {
	for _, g := range cfg.JobBoards {
		enabled := g.Enabled == nil || *g.Enabled
		fmt.Printf("%s (type: %s, enabled: %t)\n", g.Group, g.Type, enabled)
		for _, s := range g.Sites {
			siteEnabled := enabled && (s.Enabled == nil || *s.Enabled)
			fmt.Printf("  - %-24s %-5t %s\n", s.Name, siteEnabled, s.URL)
		}
	}
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"

	"go-jobharvest/internal/config"
	"go-jobharvest/internal/discovery"
	"go-jobharvest/internal/factory"
	"go-jobharvest/internal/logging"
	"go-jobharvest/utils"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config")
	maxQueries := flag.Int("max-queries", -1, "number of queries to run, 0 for every combination (default from config)")
	output := flag.String("output", "", "output JSON path (default from config)")
	noHeadless := flag.Bool("no-headless", false, "show the browser window")
	verbose := flag.Bool("verbose", false, "debug logging")
	flag.Parse()

	log := logging.New(*verbose)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	if *maxQueries >= 0 {
		cfg.Discovery.MaxQueries = *maxQueries
	}
	if *output != "" {
		cfg.Discovery.Output = *output
	}
	if *noHeadless {
		headless := false
		cfg.Browser.Headless = &headless
	}

	//cancel between queries on ctrl-c; a cancelled run still saves what it found
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()
	if err != nil {
		log.Errorf("❌ %v", err)
		os.Exit(1)
	}
}

// run owns the browser so every exit path closes it.
func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	dc := cfg.Discovery

	queries := discovery.Queries(dc.LocationKeywords, dc.IndustryKeywords, dc.JobKeywords, dc.MaxQueries)
	if len(queries) == 0 {
		return errors.New("no queries: location, industry and job keywords must all be set")
	}
	log.Infof("🔍 Generated %d search queries", len(queries))
	for i, q := range queries {
		if i == 5 {
			log.Infof("   ... and %d more", len(queries)-5)
			break
		}
		log.Infof("   %d. %q", i+1, q)
	}

	engine, err := factory.NewEngine(ctx, cfg.Browser, log)
	if err != nil {
		return fmt.Errorf("failed to init browser: %w", err)
	}
	defer engine.Close()

	sess, err := engine.NewSession(ctx, "discovery")
	if err != nil {
		return fmt.Errorf("failed to create browser context: %w", err)
	}
	defer sess.Close()

	page, err := sess.NewPage()
	if err != nil {
		return fmt.Errorf("failed to create new page: %w", err)
	}

	crawler := discovery.NewCrawler(dc, page, log)
	crawler.Debug = utils.NewScreenShotDebugger(filepath.Join(cfg.Report.Dir, "discovery"), log)

	if err := crawler.Run(ctx, queries); err != nil {
		log.Warnf("⚠️ Discovery stopped early: %v", err)
	}

	report := crawler.Report()
	if err := discovery.WriteReport(dc.Output, report); err != nil {
		return err
	}
	log.Infof("💾 Saved %d boards to %s", report.TotalBoards, dc.Output)
	if report.TotalBoards > 0 {
		log.Infof("   Top score: %.1f (%s)", report.Boards[0].Score, report.Boards[0].Domain)
	}
	return nil
}

package main

import (
	"context"
	"flag"
	"os"

	"go-jobharvest/internal/api"
	"go-jobharvest/internal/cache"
	"go-jobharvest/internal/config"
	"go-jobharvest/internal/logging"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config")
	verbose := flag.Bool("verbose", false, "debug logging")
	flag.Parse()

	log := logging.New(*verbose)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	addr := cfg.Server.Addr
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	store, err := cache.Open(context.Background(), cfg.Cache)
	if err != nil {
		log.Fatalf("❌ Failed to open cache: %v", err)
	}
	defer store.Close()

	srv := &api.Server{Cfg: cfg, Cache: store, Log: log}

	log.Infof("Server listening on %s", addr)
	if err := srv.Router().Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

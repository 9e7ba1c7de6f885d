package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"partyboard/internal/config"
	"partyboard/internal/db"
	"partyboard/internal/jobs"
	"partyboard/internal/metrics"
	"partyboard/internal/parsecache"
	"partyboard/internal/ranking"
	"partyboard/internal/render"
	"partyboard/internal/resolver"
	"partyboard/internal/server"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	// Initialize database
	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations completed successfully")

	// Parse cache. Unreachable storage at startup is fatal; at runtime
	// individual operations are retried per call.
	cache, err := parsecache.New(cfg.RedisURL, cfg.ParseCacheTTL)
	if err != nil {
		log.Fatalf("Failed to connect to parse cache: %v", err)
	}
	defer cache.Close()

	// Ranking service plumbing: one credential, one rate budget, shared
	// by every batch job.
	budget := ranking.NewRateBudget(cfg.RateBudgetPerHour)
	tokens := ranking.NewTokenManager(cfg.RankingClientID, cfg.RankingClientSecret, cfg.RankingTokenURL, cfg.TokenMargin)
	client := ranking.NewClient(cfg.RankingAPIURL, tokens, budget, cfg.RequestTimeout)

	metrics.Init(budget.Remaining)

	res := resolver.New(cache, client, budget, resolver.Config{
		BatchSize:     cfg.BatchSize,
		MaxAttempts:   cfg.MaxBatchAttempts,
		MaxConcurrent: cfg.ResolverConcurrency,
		Interval:      cfg.SweepInterval,
	})

	// Tier thresholds are presentation policy, tunable without touching
	// resolution logic.
	tiersCfg, err := config.LoadTiersConfig(cfg.TiersFile)
	if err != nil {
		log.Fatalf("Failed to load tiers config: %v", err)
	}
	assembler := render.NewAssembler(database, cache, render.NewTierTable(tiersCfg), cfg.ListingMaxAge)

	// Background resolution: the resolver drains the pending queue, the
	// sweeper keeps it topped up from current listings.
	bgCtx, cancelBg := context.WithCancel(ctx)
	defer cancelBg()
	if cfg.RankingEnabled() {
		go res.Run(bgCtx)
		sweeper := jobs.NewSweeper(database, res, cfg.SweepInterval, cfg.ListingMaxAge)
		go sweeper.Start(bgCtx)
	} else {
		log.Println("Ranking API credentials not set; parses will render as unknown. Set RANKING_CLIENT_ID and RANKING_CLIENT_SECRET to enable.")
	}

	// HTTP server
	srv := server.New(cfg)
	srv.RegisterRoutes(database, cache, assembler, res)

	go func() {
		if err := srv.Start(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	cancelBg()
	if err := srv.Shutdown(); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}

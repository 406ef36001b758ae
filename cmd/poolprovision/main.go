// Command poolprovision keeps the keypair vault topped up: on a cron
// schedule it checks the unassigned pool depth and seeds fresh keypairs
// when it falls below the configured floor (spec §4.1).
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/moonzip/launchd/internal/config"
	"github.com/moonzip/launchd/internal/keypair"
	"github.com/moonzip/launchd/internal/logging"
	"github.com/moonzip/launchd/internal/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("poolprovision: %v", err)
	}
}

func run(ctx context.Context) error {
	profile := config.MustLoad()
	logger := logging.New(string(profile.RunMode))

	db, err := sql.Open("postgres", profile.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	pool := keypair.New(db)

	if err := tick(ctx, pool, profile.KeypairPoolMinDepth, logger); err != nil {
		logger.WithContext(ctx).WithError(err).Warn("poolprovision: initial seed failed")
	}

	c := cron.New()
	if _, err := c.AddFunc("@every 10s", func() {
		if err := tick(ctx, pool, profile.KeypairPoolMinDepth, logger); err != nil {
			logger.WithContext(ctx).WithError(err).Warn("poolprovision: seed tick failed")
		}
	}); err != nil {
		return fmt.Errorf("poolprovision: schedule tick: %w", err)
	}
	c.Start()
	defer c.Stop()

	<-ctx.Done()
	return nil
}

func tick(ctx context.Context, pool *keypair.Pool, minDepth int, logger *logging.Logger) error {
	depth, err := pool.Depth(ctx)
	if err != nil {
		return fmt.Errorf("poolprovision: check depth: %w", err)
	}
	metrics.KeypairPoolDepth.Set(float64(depth))

	if depth >= minDepth {
		return nil
	}

	shortfall := minDepth - depth
	log.Printf("poolprovision: depth %d below floor %d, seeding %d", depth, minDepth, shortfall)
	if err := pool.Seed(ctx, shortfall); err != nil {
		return fmt.Errorf("poolprovision: seed: %w", err)
	}
	metrics.KeypairPoolDepth.Set(float64(depth + shortfall))
	return nil
}

// Command storaged is the long-running daemon hosting the object store's
// core and its garbage collector. It exposes no HTTP API — the request
// routing/handler layer is an out-of-scope external collaborator per
// spec.md §1 — but wires every in-scope component into a runnable process,
// grounded on the teacher's cmd/server/main.go signal-handling shape.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"

	"github.com/zynqcloud/objectstore/internal/config"
	"github.com/zynqcloud/objectstore/internal/fsstore"
	"github.com/zynqcloud/objectstore/internal/gc"
	"github.com/zynqcloud/objectstore/internal/pgstore"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional)")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error().Err(err).Msg("configuration error")
		os.Exit(1)
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(lvl)
	}

	fs, err := fsstore.New(fsstore.Config{
		HotRoot:  cfg.HotStorageRoot,
		ColdRoot: cfg.ColdStorageRoot,
		Durable:  cfg.DurableWrites,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize filesystem driver")
		os.Exit(1)
	}

	pgCfg := cfg.ToPgstoreConfig()
	db, err := pgstore.Open(pgCfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize persistence driver")
		os.Exit(1)
	}
	store := pgstore.NewGormStore(db, pgCfg.Type)

	// Root context — cancelled when a shutdown signal arrives. The GC
	// scheduler receives this context so it stops accepting new cycles
	// without needing its own signal wiring, mirroring the teacher's
	// cleanup.RunPeriodic usage in cmd/server/main.go.
	ctx, cancel := context.WithCancel(context.Background())

	sched := gc.New(cfg.GCInterval, log,
		gc.NewOrphanedBlobCollector(store, fs, cfg.GCBatchSize, cfg.MaxConcurrentDeletes, log),
		gc.NewStuckUploadCollector(store, cfg.StuckUploadAge.Hours(), cfg.StuckUploadCycleRatio, cfg.GCBatchSize, cfg.MaxConcurrentDeletes, log),
		gc.NewTmpPruneCollector(fs, cfg.TmpPruneTTL, log),
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Info().
			Str("hot_root", cfg.HotStorageRoot).
			Str("cold_root", cfg.ColdStorageRoot).
			Dur("gc_interval", cfg.GCInterval).
			Msg("objectstore daemon starting")
		sched.Run(ctx, cfg.MaxConcurrentDeletes)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, shutdownSignals...)
	<-quit

	log.Info().Msg("shutdown signal received")
	cancel()
	<-done

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info().Msg("objectstore daemon stopped")
}

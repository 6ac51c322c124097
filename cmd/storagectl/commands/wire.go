package commands

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/zynqcloud/objectstore/internal/config"
	"github.com/zynqcloud/objectstore/internal/fsstore"
	"github.com/zynqcloud/objectstore/internal/gc"
	"github.com/zynqcloud/objectstore/internal/pgstore"
	"github.com/zynqcloud/objectstore/internal/service"
)

// wired bundles every collaborator a subcommand might need, built once per
// invocation from the resolved config file/environment.
type wired struct {
	cfg *config.Config
	fs  *fsstore.Driver
	db  pgstore.Store
	svc *service.Service
	log zerolog.Logger
}

func wire() *wired {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		exitErr("config error: %v", err)
	}

	fs, err := fsstore.New(fsstore.Config{
		HotRoot:  cfg.HotStorageRoot,
		ColdRoot: cfg.ColdStorageRoot,
		Durable:  cfg.DurableWrites,
	})
	if err != nil {
		exitErr("filesystem driver error: %v", err)
	}

	gdb, err := pgstore.Open(cfg.ToPgstoreConfig())
	if err != nil {
		exitErr("persistence driver error: %v", err)
	}
	db := pgstore.NewGormStore(gdb, cfg.ToPgstoreConfig().Type)

	return &wired{
		cfg: cfg,
		fs:  fs,
		db:  db,
		svc: service.New(fs, db, log),
		log: log,
	}
}

func newGCScheduler(w *wired) *gc.Scheduler {
	return gc.New(w.cfg.GCInterval, w.log,
		gc.NewOrphanedBlobCollector(w.db, w.fs, w.cfg.GCBatchSize, w.cfg.MaxConcurrentDeletes, w.log),
		gc.NewStuckUploadCollector(w.db, w.cfg.StuckUploadAge.Hours(), w.cfg.StuckUploadCycleRatio, w.cfg.GCBatchSize, w.cfg.MaxConcurrentDeletes, w.log),
		gc.NewTmpPruneCollector(w.fs, w.cfg.TmpPruneTTL, w.log),
	)
}

// One-shot reconciliation sweep. The API server runs the same sweep on a
// timer; this tool exists for operators who want to force a pass (after an
// index outage, before decommissioning) and see the report.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"securehr/internal/config"
	"securehr/internal/ingest"
	"securehr/internal/logger"
	"securehr/internal/storage"
	"securehr/internal/vector"
)

func main() {
	var stuckAfter time.Duration
	var timeout time.Duration
	flag.DurationVar(&stuckAfter, "stuck-after", 0, "Override for how old a pending/processing upload must be before it is failed (default from RECONCILE_STUCK_AFTER)")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Overall sweep timeout")
	flag.Parse()

	cfg := config.LoadConfig()
	if stuckAfter == 0 {
		stuckAfter = cfg.ReconcileStuckAfter
	}

	zl, err := logger.New(cfg.LogJSON, cfg.Debug)
	if err != nil {
		log.Fatal("logger init:", err)
	}
	defer zl.Sync()

	if cfg.DatabaseURL == "" {
		zl.Fatal("DATABASE_URL is required")
	}

	db, err := storage.NewDB(cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("db open", zap.Error(err))
	}
	defer db.Close()

	index := vector.NewClient(cfg.VectorIndexURL, cfg.VectorIndexAPIKey, cfg.VectorIndexName, zl)
	guard := ingest.NewGuard(db, index, zl)
	reconciler := ingest.NewReconciler(db, index, guard, stuckAfter, zl)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	report, err := reconciler.Sweep(ctx)
	if err != nil {
		zl.Fatal("sweep failed", zap.Error(err))
	}

	zl.Info("sweep finished",
		zap.Int("stuck_marked_failed", report.StuckMarkedFailed),
		zap.Int("tombstones_cleared", report.TombstonesCleared),
		zap.Int("missing_vectors", report.MissingVectors),
		zap.Int("orphans_deleted", report.OrphansDeleted))
}

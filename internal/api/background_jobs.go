package api

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"securehr/internal/ingest"
)

// ingestJob carries one uploaded CV through the background pipeline.
type ingestJob struct {
	CandidateID string
	Data        []byte
	MIMEType    string
	Filename    string
	Timestamp   time.Time
}

// StartBackgroundWorkers initializes background job workers
func (a *API) StartBackgroundWorkers() {
	go a.ingestWorker()
	go a.reconcileWorker()

	a.logger.Info("background workers started",
		zap.Duration("reconcile_interval", a.cfg.ReconcileInterval))
}

// ingestWorker drains the CV ingestion queue one job at a time. Pipeline
// runs for different candidates could overlap safely, but a single worker
// keeps the embedding service load predictable.
func (a *API) ingestWorker() {
	a.logger.Info("ingest worker started")

	for job := range a.ingestQueue {
		ctx := context.Background()

		result, err := a.pipeline.Ingest(ctx, job.CandidateID, job.Data, job.MIMEType, job.Filename)
		if err != nil {
			switch {
			case errors.Is(err, ingest.ErrUploadInProgress):
				a.logger.Warn("ingest skipped, upload already in progress",
					zap.String("candidate_id", job.CandidateID))
			case errors.Is(err, ingest.ErrValidation):
				a.logger.Warn("ingest rejected",
					zap.String("candidate_id", job.CandidateID),
					zap.Error(err))
			default:
				a.logger.Error("ingest failed",
					zap.String("candidate_id", job.CandidateID),
					zap.String("filename", job.Filename),
					zap.Error(err))
			}
			continue
		}

		a.logger.Info("ingest completed",
			zap.String("candidate_id", result.CandidateID),
			zap.Int("text_length", result.TextLength),
			zap.Int("skills", len(result.Skills)),
			zap.Duration("queue_to_done", time.Since(job.Timestamp)))
	}
}

// reconcileWorker periodically sweeps for cross-store drift: stuck uploads,
// unfinished deletions, completed profiles whose vector vanished, and
// vectors with no owning profile.
func (a *API) reconcileWorker() {
	a.logger.Info("reconcile worker started")

	ticker := time.NewTicker(a.cfg.ReconcileInterval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ReconcileInterval/2)
		report, err := a.reconciler.Sweep(ctx)
		cancel()
		if err != nil {
			a.logger.Error("reconciliation sweep failed", zap.Error(err))
			continue
		}
		if report.StuckMarkedFailed+report.TombstonesCleared+report.MissingVectors+report.OrphansDeleted > 0 {
			a.logger.Info("reconciliation sweep repaired drift",
				zap.Int("stuck_marked_failed", report.StuckMarkedFailed),
				zap.Int("tombstones_cleared", report.TombstonesCleared),
				zap.Int("missing_vectors", report.MissingVectors),
				zap.Int("orphans_deleted", report.OrphansDeleted))
		}
	}
}

// queueIngestJob enqueues without blocking; a full queue is the caller's
// problem to retry.
func (a *API) queueIngestJob(candidateID string, data []byte, mimeType, filename string) bool {
	job := ingestJob{
		CandidateID: candidateID,
		Data:        data,
		MIMEType:    mimeType,
		Filename:    filename,
		Timestamp:   time.Now(),
	}

	select {
	case a.ingestQueue <- job:
		a.logger.Info("queued CV ingest job",
			zap.String("candidate_id", candidateID),
			zap.String("filename", filename),
			zap.Int("size", len(data)))
		return true
	default:
		a.logger.Warn("ingest queue full, dropping job",
			zap.String("candidate_id", candidateID))
		return false
	}
}

package ingest

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"securehr/internal/storage"
	"securehr/internal/vector"
)

// ReconcileStore is the relational surface the sweep needs beyond ProfileStore.
type ReconcileStore interface {
	ProfileStore
	ListStuckCVUploads(ctx context.Context, olderThan time.Duration) ([]string, error)
	FailStuckCVUpload(ctx context.Context, id string, olderThan time.Duration) (bool, error)
	ListTombstoned(ctx context.Context) ([]string, error)
	ListCompletedCVs(ctx context.Context) ([]storage.VectorRef, error)
	ListCandidateIDs(ctx context.Context) ([]string, error)
	ClearVectorKey(ctx context.Context, id string) error
}

// ReconcileIndex is the index surface the sweep needs.
type ReconcileIndex interface {
	Get(ctx context.Context, key string) (*vector.Entry, error)
	Delete(ctx context.Context, key string) error
	ListKeys(ctx context.Context) ([]string, error)
}

// SweepReport summarizes one reconciliation pass.
type SweepReport struct {
	StuckMarkedFailed int `json:"stuck_marked_failed"`
	TombstonesCleared int `json:"tombstones_cleared"`
	MissingVectors    int `json:"missing_vectors"`
	OrphansDeleted    int `json:"orphans_deleted"`
}

// Reconciler is the background repair loop for the cross-store invariants:
// no completed profile without a vector, no vector without an owning
// profile, no tombstone that outlives its vector.
type Reconciler struct {
	store      ReconcileStore
	index      ReconcileIndex
	guard      *Guard
	stuckAfter time.Duration
	logger     *zap.Logger
}

func NewReconciler(store ReconcileStore, index ReconcileIndex, guard *Guard, stuckAfter time.Duration, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		store:      store,
		index:      index,
		guard:      guard,
		stuckAfter: stuckAfter,
		logger:     logger,
	}
}

// Sweep runs one full reconciliation pass. Per-candidate failures are
// logged and skipped; the pass keeps going.
func (r *Reconciler) Sweep(ctx context.Context) (*SweepReport, error) {
	report := &SweepReport{}

	r.sweepStuck(ctx, report)
	r.sweepTombstones(ctx, report)
	r.sweepMissingVectors(ctx, report)
	r.sweepOrphans(ctx, report)

	r.logger.Info("reconciliation sweep finished",
		zap.Int("stuck_marked_failed", report.StuckMarkedFailed),
		zap.Int("tombstones_cleared", report.TombstonesCleared),
		zap.Int("missing_vectors", report.MissingVectors),
		zap.Int("orphans_deleted", report.OrphansDeleted))
	return report, ctx.Err()
}

// sweepStuck fails pipeline runs that recorded intent but never reached a
// terminal state, e.g. a process crash between pending and completed.
func (r *Reconciler) sweepStuck(ctx context.Context, report *SweepReport) {
	ids, err := r.store.ListStuckCVUploads(ctx, r.stuckAfter)
	if err != nil {
		r.logger.Error("list stuck uploads", zap.Error(err))
		return
	}
	for _, id := range ids {
		unlock := r.guard.Lock(id)
		// The fail transition re-checks the predicate: a run that
		// committed between the list query and the lock must not be
		// clobbered back to failed.
		failed, err := r.store.FailStuckCVUpload(ctx, id, r.stuckAfter)
		switch {
		case err != nil:
			r.logger.Error("mark stuck upload failed", zap.String("candidate_id", id), zap.Error(err))
		case !failed:
			r.logger.Info("stuck upload resolved itself", zap.String("candidate_id", id))
		default:
			r.logger.Warn("stuck upload marked failed", zap.String("candidate_id", id))
			report.StuckMarkedFailed++
		}
		unlock()
	}
}

// sweepTombstones finishes deletions that crashed between the tombstone and
// the row removal.
func (r *Reconciler) sweepTombstones(ctx context.Context, report *SweepReport) {
	ids, err := r.store.ListTombstoned(ctx)
	if err != nil {
		r.logger.Error("list tombstoned users", zap.Error(err))
		return
	}
	for _, id := range ids {
		unlock := r.guard.Lock(id)
		err := r.index.Delete(ctx, VectorKey(id))
		if err != nil {
			r.logger.Warn("tombstone vector delete still failing",
				zap.String("candidate_id", id), zap.Error(err))
			unlock()
			continue
		}
		if err := r.store.DeleteUserRow(ctx, id); err != nil {
			r.logger.Error("tombstone row delete failed",
				zap.String("candidate_id", id), zap.Error(err))
			unlock()
			continue
		}
		report.TombstonesCleared++
		unlock()
	}
}

// sweepMissingVectors detects the correctness hazard: a completed profile
// whose vector no longer resolves would silently poison search results.
// There is no stored file to re-run from, so the profile drops to failed
// and the candidate re-uploads.
func (r *Reconciler) sweepMissingVectors(ctx context.Context, report *SweepReport) {
	refs, err := r.store.ListCompletedCVs(ctx)
	if err != nil {
		r.logger.Error("list completed cvs", zap.Error(err))
		return
	}
	for _, ref := range refs {
		_, err := r.index.Get(ctx, ref.VectorKey)
		if err == nil {
			continue
		}
		if !errors.Is(err, vector.ErrNotFound) {
			// Index trouble, not a missing entry. Do not "heal" on bad data.
			r.logger.Warn("vector check inconclusive",
				zap.String("candidate_id", ref.CandidateID), zap.Error(err))
			continue
		}

		unlock := r.guard.Lock(ref.CandidateID)
		if r.repairMissingVector(ctx, ref) {
			report.MissingVectors++
		}
		unlock()
	}
}

// repairMissingVector re-verifies the inconsistency under the candidate's
// lock before acting: a re-upload may have committed a fresh vector between
// the list query and lock acquisition. Caller holds the lock.
func (r *Reconciler) repairMissingVector(ctx context.Context, ref storage.VectorRef) bool {
	u, err := r.store.GetUserByID(ctx, ref.CandidateID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.logger.Error("recheck profile state",
				zap.String("candidate_id", ref.CandidateID), zap.Error(err))
		}
		return false
	}
	if u.CVStatus != storage.CVStatusCompleted || u.VectorKey != ref.VectorKey {
		return false
	}
	if _, err := r.index.Get(ctx, u.VectorKey); err == nil {
		return false
	} else if !errors.Is(err, vector.ErrNotFound) {
		r.logger.Warn("vector recheck inconclusive",
			zap.String("candidate_id", ref.CandidateID), zap.Error(err))
		return false
	}

	r.logger.Error("inconsistent state: completed profile without vector",
		zap.String("candidate_id", ref.CandidateID),
		zap.String("vector_key", ref.VectorKey))
	if err := r.store.MarkCVFailed(ctx, ref.CandidateID); err != nil {
		r.logger.Error("mark inconsistent profile failed",
			zap.String("candidate_id", ref.CandidateID), zap.Error(err))
		return false
	}
	if err := r.store.ClearVectorKey(ctx, ref.CandidateID); err != nil {
		r.logger.Error("clear vector key",
			zap.String("candidate_id", ref.CandidateID), zap.Error(err))
		return false
	}
	return true
}

// sweepOrphans deletes index entries whose owning profile is gone — the
// privacy exposure side of a crashed deletion.
func (r *Reconciler) sweepOrphans(ctx context.Context, report *SweepReport) {
	keys, err := r.index.ListKeys(ctx)
	if err != nil {
		r.logger.Error("list index keys", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}

	ids, err := r.store.ListCandidateIDs(ctx)
	if err != nil {
		r.logger.Error("list candidate ids", zap.Error(err))
		return
	}
	owned := make(map[string]bool, len(ids))
	for _, id := range ids {
		owned[VectorKey(id)] = true
	}

	for _, key := range keys {
		if owned[key] {
			continue
		}
		if err := r.index.Delete(ctx, key); err != nil {
			r.logger.Warn("orphan vector delete failed", zap.String("vector_key", key), zap.Error(err))
			continue
		}
		r.logger.Warn("orphan vector deleted", zap.String("vector_key", key))
		report.OrphansDeleted++
	}
}

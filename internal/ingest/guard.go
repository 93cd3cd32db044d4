package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"securehr/internal/storage"
	"securehr/internal/vector"
)

// ProfileStore is the slice of relational persistence the ingestion side
// needs. *storage.DB satisfies it.
type ProfileStore interface {
	BeginCVUpload(ctx context.Context, id string) error
	MarkCVProcessing(ctx context.Context, id string) error
	CommitCVUpload(ctx context.Context, id, vectorKey, filename string, uploadedAt time.Time) error
	MarkCVFailed(ctx context.Context, id string) error
	Tombstone(ctx context.Context, id string) error
	DeleteUserRow(ctx context.Context, id string) error
	GetUserByID(ctx context.Context, id string) (*storage.User, error)
}

// VectorIndex is the slice of the index boundary the ingestion side needs.
type VectorIndex interface {
	Put(ctx context.Context, key string, vec []float32, contents string, md vector.Metadata) error
	Delete(ctx context.Context, key string) error
}

// candidateLocks hands out one mutex per candidate id, reclaimed when the
// last holder releases it.
type candidateLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newCandidateLocks() *candidateLocks {
	return &candidateLocks{locks: make(map[string]*lockEntry)}
}

func (l *candidateLocks) acquire(id string) func() {
	l.mu.Lock()
	e, ok := l.locks[id]
	if !ok {
		e = &lockEntry{}
		l.locks[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// Guard serializes per-candidate mutations and enforces the two-step
// cross-store protocols: vector-write-then-profile-commit for uploads,
// profile-mark-then-vector-delete for account deletion. There is no real
// transaction spanning the two stores; the orderings are chosen so a crash
// between steps never leaves a completed profile without a vector, and a
// lingering vector after a tombstoned delete stays inside the
// reconciliation window.
type Guard struct {
	store  ProfileStore
	index  VectorIndex
	locks  *candidateLocks
	logger *zap.Logger
}

func NewGuard(store ProfileStore, index VectorIndex, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{
		store:  store,
		index:  index,
		locks:  newCandidateLocks(),
		logger: logger,
	}
}

// Lock enters the candidate's critical section. The returned func releases it.
func (g *Guard) Lock(candidateID string) func() {
	return g.locks.acquire(candidateID)
}

// CommitVector writes the vector first and flips the profile to completed
// only after the index acknowledged. A failed put marks the profile failed
// and leaves vector_key untouched, so a previously committed entry stays
// committed. Caller must hold the candidate's lock.
func (g *Guard) CommitVector(ctx context.Context, candidateID, key string, vec []float32, contents string, md vector.Metadata, filename string, uploadedAt time.Time) error {
	if err := g.index.Put(ctx, key, vec, contents, md); err != nil {
		g.failCV(ctx, candidateID)
		return fmt.Errorf("vector put: %w", err)
	}

	if err := g.store.CommitCVUpload(ctx, candidateID, key, filename, uploadedAt); err != nil {
		// The vector landed but the profile did not flip; the entry is
		// harmless (not completed-without-vector) and the sweep or the
		// next upload reclaims it.
		g.logger.Error("profile commit failed after vector write",
			zap.String("candidate_id", candidateID),
			zap.String("vector_key", key),
			zap.Error(err))
		return fmt.Errorf("profile commit: %w", err)
	}

	g.logger.Info("cv vector committed",
		zap.String("candidate_id", candidateID),
		zap.String("vector_key", key))
	return nil
}

// DeleteCandidate removes a candidate and their vector: tombstone the row,
// delete the vector, then drop the row. If the vector delete fails the
// tombstone stays in place as the recoverable failed-deletion state and the
// reconciliation sweep retries.
func (g *Guard) DeleteCandidate(ctx context.Context, candidateID string) error {
	unlock := g.Lock(candidateID)
	defer unlock()

	if err := g.store.Tombstone(ctx, candidateID); err != nil {
		return fmt.Errorf("tombstone: %w", err)
	}

	key := VectorKey(candidateID)
	if err := g.index.Delete(ctx, key); err != nil {
		g.logger.Warn("vector delete failed, tombstone retained for sweep",
			zap.String("candidate_id", candidateID),
			zap.Error(err))
		return fmt.Errorf("vector delete: %w", err)
	}

	if err := g.store.DeleteUserRow(ctx, candidateID); err != nil {
		return fmt.Errorf("delete profile row: %w", err)
	}

	g.logger.Info("candidate deleted", zap.String("candidate_id", candidateID))
	return nil
}

func (g *Guard) failCV(ctx context.Context, candidateID string) {
	if err := g.store.MarkCVFailed(ctx, candidateID); err != nil {
		g.logger.Error("failed to mark cv failed",
			zap.String("candidate_id", candidateID),
			zap.Error(err))
	}
}

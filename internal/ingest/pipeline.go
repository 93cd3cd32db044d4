// Package ingest drives a candidate's CV through the processing state
// machine while keeping the profile row and the externally-held encrypted
// vector in lockstep.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"securehr/internal/cv"
	"securehr/internal/storage"
	"securehr/internal/vector"
)

var (
	// ErrValidation wraps bad-input failures; the profile is untouched.
	ErrValidation = errors.New("cv validation failed")
	// ErrUploadInProgress means another run holds the candidate's status slot.
	ErrUploadInProgress = errors.New("an upload is already being processed for this candidate")
)

// vectorKeyNamespace pins deterministic vector keys to this system's key
// space. Never change it: re-uploads must keep hitting the same key so the
// index overwrites instead of appending.
var vectorKeyNamespace = uuid.MustParse("b6b4f0c2-5a1d-4a53-9c2e-7f31d3a8e4d1")

// VectorKey derives the index key for a candidate. Deterministic, so at most
// one entry can ever exist per candidate.
func VectorKey(candidateID string) string {
	return uuid.NewSHA1(vectorKeyNamespace, []byte(candidateID)).String()
}

// TextExtractor turns an uploaded document into plain text.
type TextExtractor interface {
	Validate(mimeType string, size int64) error
	Extract(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Result reports the outcome of one pipeline run.
type Result struct {
	CandidateID     string   `json:"candidate_id"`
	Status          string   `json:"status"`
	Filename        string   `json:"filename"`
	TextLength      int      `json:"text_length"`
	ExperienceLevel string   `json:"experience_level"`
	Skills          []string `json:"skills"`
}

type Pipeline struct {
	store     ProfileStore
	guard     *Guard
	extractor TextExtractor
	embedder  Embedder
	logger    *zap.Logger
	now       func() time.Time
}

func NewPipeline(store ProfileStore, guard *Guard, extractor TextExtractor, embedder Embedder, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:     store,
		guard:     guard,
		extractor: extractor,
		embedder:  embedder,
		logger:    logger,
		now:       time.Now,
	}
}

// Ingest runs the full upload pipeline for one candidate:
// validate -> pending -> processing -> extract -> embed -> vector put ->
// completed. Every failure after the pending write lands the profile in
// failed; a put failure leaves the previously committed vector (and
// vector_key) intact.
func (p *Pipeline) Ingest(ctx context.Context, candidateID string, data []byte, mimeType, filename string) (*Result, error) {
	if err := p.extractor.Validate(mimeType, int64(len(data))); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	unlock := p.guard.Lock(candidateID)
	defer unlock()

	// Intent recorded: from here on, a crashed run is visible to the sweep.
	if err := p.store.BeginCVUpload(ctx, candidateID); err != nil {
		if errors.Is(err, storage.ErrStatusConflict) {
			return nil, ErrUploadInProgress
		}
		return nil, fmt.Errorf("begin upload: %w", err)
	}
	if err := p.store.MarkCVProcessing(ctx, candidateID); err != nil {
		// Land the row in failed now; leaving it pending would park the
		// candidate behind the sweep's cutoff for no reason.
		p.guard.failCV(ctx, candidateID)
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	text, err := p.extractor.Extract(ctx, data, mimeType)
	if err != nil {
		p.guard.failCV(ctx, candidateID)
		return nil, fmt.Errorf("extract: %w", err)
	}

	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		p.guard.failCV(ctx, candidateID)
		return nil, fmt.Errorf("embed: %w", err)
	}

	now := p.now().UTC()
	key := VectorKey(candidateID)
	md := vector.Metadata{
		CandidateID:     candidateID,
		ExperienceLevel: cv.ExperienceLevel(text),
		Skills:          cv.SkillTags(text),
		Filename:        filename,
		TextLength:      len(text),
		ProcessedAt:     now.Format(time.RFC3339),
	}

	if err := p.guard.CommitVector(ctx, candidateID, key, vec, text, md, filename, now); err != nil {
		return nil, err
	}

	p.logger.Info("cv ingested",
		zap.String("candidate_id", candidateID),
		zap.String("filename", filename),
		zap.Int("text_length", len(text)),
		zap.Int("skills", len(md.Skills)))

	return &Result{
		CandidateID:     candidateID,
		Status:          string(storage.CVStatusCompleted),
		Filename:        filename,
		TextLength:      len(text),
		ExperienceLevel: md.ExperienceLevel,
		Skills:          md.Skills,
	}, nil
}

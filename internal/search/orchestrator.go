// Package search turns a recruiter's free-text requirements into a ranked,
// metadata-enriched result set. Hits come back from the opaque vector index
// and are joined against live relational state; candidates that vanished or
// regressed mid-query are dropped, never surfaced as errors.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"securehr/internal/cv"
	"securehr/internal/storage"
	"securehr/internal/vector"
)

var (
	ErrEmptyQuery    = errors.New("search requirements must not be empty")
	ErrQueryTooShort = errors.New("search requirements too short")
	ErrInvalidFilter = errors.New("invalid search filter")
	// ErrUnavailable means embedding or the vector index failed; the whole
	// search fails as retryable.
	ErrUnavailable = errors.New("search temporarily unavailable")
)

const (
	DefaultLimit = 10
	MaxLimit     = 50

	// Queries need some substance to embed meaningfully.
	minQueryLen = 10
)

// Embedder turns the requirements text into a query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the similarity-search boundary.
type VectorIndex interface {
	Query(ctx context.Context, vec []float32, k int, filter *vector.Filter) ([]vector.Hit, error)
}

// ProfileStore resolves hits against live relational state.
type ProfileStore interface {
	GetCandidatesByIDs(ctx context.Context, ids []string) (map[string]*storage.CandidateRef, error)
}

// Request is a recruiter search.
type Request struct {
	Requirements string   `json:"requirements"`
	Filters      *Filters `json:"filters,omitempty"`
	Limit        int      `json:"limit,omitempty"`
}

// Hit is one recruiter-facing result. Never carries CV text: the bulk
// search surface exposes a score and coarse attributes only.
type Hit struct {
	CandidateID     string   `json:"candidate_id"`
	SimilarityScore float64  `json:"similarity_score"`
	FirstName       string   `json:"first_name,omitempty"`
	LastName        string   `json:"last_name,omitempty"`
	Email           string   `json:"email,omitempty"`
	ExperienceLevel string   `json:"experience_level,omitempty"`
	MatchedSkills   []string `json:"matched_skills,omitempty"`
}

type Response struct {
	Results        []Hit  `json:"results"`
	TotalResults   int    `json:"total_results"`
	QueryProcessed string `json:"query_processed"`
	SearchTimeMS   int64  `json:"search_time_ms"`
}

type Orchestrator struct {
	embedder Embedder
	index    VectorIndex
	store    ProfileStore
	logger   *zap.Logger
}

func NewOrchestrator(embedder Embedder, index VectorIndex, store ProfileStore, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		embedder: embedder,
		index:    index,
		store:    store,
		logger:   logger,
	}
}

// Search runs one recruiter query end to end.
func (o *Orchestrator) Search(ctx context.Context, recruiterID string, req *Request) (*Response, error) {
	start := time.Now()

	query := preprocessQuery(req.Requirements)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if len(query) < minQueryLen {
		return nil, fmt.Errorf("%w: need at least %d characters", ErrQueryTooShort, minQueryLen)
	}
	if err := req.Filters.Validate(); err != nil {
		return nil, err
	}
	limit := clampLimit(req.Limit)

	vec, err := o.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	hits, err := o.index.Query(ctx, vec, limit, indexFilter(req.Filters))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	results := o.resolveHits(ctx, hits, query, req.Filters)

	// Rank after filtering: score descending, candidate id ascending on ties
	// for determinism, then truncate.
	sort.Slice(results, func(i, j int) bool {
		if results[i].SimilarityScore != results[j].SimilarityScore {
			return results[i].SimilarityScore > results[j].SimilarityScore
		}
		return results[i].CandidateID < results[j].CandidateID
	})
	if len(results) > limit {
		results = results[:limit]
	}

	elapsed := time.Since(start)
	o.logger.Info("search completed",
		zap.String("recruiter_id", recruiterID),
		zap.Int("index_hits", len(hits)),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", elapsed))

	return &Response{
		Results:        results,
		TotalResults:   len(results),
		QueryProcessed: query,
		SearchTimeMS:   elapsed.Milliseconds(),
	}, nil
}

// resolveHits joins index hits against the profile store. Misses are
// expected (the two stores are not transactionally linked) and are dropped
// silently; only live completed candidates survive.
func (o *Orchestrator) resolveHits(ctx context.Context, hits []vector.Hit, query string, f *Filters) []Hit {
	if len(hits) == 0 {
		return []Hit{}
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.Metadata.CandidateID != "" {
			ids = append(ids, h.Metadata.CandidateID)
		}
	}

	refs, err := o.store.GetCandidatesByIDs(ctx, ids)
	if err != nil {
		// Without relational state every hit would leak raw index data;
		// degrade to an empty page rather than failing the request.
		o.logger.Error("hit resolution failed, dropping all hits", zap.Error(err))
		return []Hit{}
	}

	queryTags := cv.SkillTags(query)

	results := make([]Hit, 0, len(hits))
	for _, h := range hits {
		ref, ok := refs[h.Metadata.CandidateID]
		if !ok || ref.Deleted || ref.CVStatus != storage.CVStatusCompleted {
			continue
		}
		if f != nil && f.Location != "" &&
			!strings.Contains(strings.ToLower(ref.Location), strings.ToLower(f.Location)) {
			continue
		}
		score := clampScore(h.Score)
		if f != nil && f.MinScore > 0 && score < f.MinScore {
			continue
		}

		results = append(results, Hit{
			CandidateID:     ref.ID,
			SimilarityScore: score,
			FirstName:       ref.FirstName,
			LastName:        ref.LastName,
			Email:           ref.Email,
			ExperienceLevel: h.Metadata.ExperienceLevel,
			MatchedSkills:   matchedSkills(queryTags, f, h.Metadata.Skills),
		})
	}
	return results
}

// matchedSkills intersects the candidate's coarse skill tags with the
// skills the recruiter asked for, explicitly or via the requirements text.
func matchedSkills(queryTags []string, f *Filters, candidateSkills []string) []string {
	wanted := make(map[string]bool, len(queryTags))
	for _, s := range queryTags {
		wanted[s] = true
	}
	if f != nil {
		for _, s := range f.Skills {
			wanted[s] = true
		}
	}
	if len(wanted) == 0 {
		return nil
	}

	var matched []string
	for _, s := range candidateSkills {
		if wanted[strings.ToLower(s)] {
			matched = append(matched, strings.ToLower(s))
		}
	}
	return matched
}

// indexFilter maps the validated filters onto what the index natively
// supports as a pre-filter; location and min_score are applied after the
// join.
func indexFilter(f *Filters) *vector.Filter {
	if f.empty() {
		return nil
	}
	if f.ExperienceLevel == "" && len(f.Skills) == 0 {
		return nil
	}
	return &vector.Filter{
		ExperienceLevel: f.ExperienceLevel,
		Skills:          f.Skills,
	}
}

// preprocessQuery collapses whitespace and strips characters that carry no
// meaning for embedding.
func preprocessQuery(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
			b.WriteRune(r)
		case strings.ContainsRune(".,;:-()/+#", r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func clampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

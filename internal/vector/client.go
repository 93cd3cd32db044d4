// Package vector wraps the external encrypted vector index service. The
// service holds embeddings and CV text encrypted at rest, keyed by an opaque
// id; this client only speaks its REST boundary and never sees plaintext
// vectors from other tenants.
package vector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	httpc "securehr/pkg/http"
)

var (
	// ErrUnavailable means the index service could not be reached or
	// rejected the call; callers treat it as retryable.
	ErrUnavailable = errors.New("vector index unavailable")
	ErrNotFound    = errors.New("vector entry not found")
)

// Metadata is the small, coarse payload stored next to a vector. It is
// deliberately PII-free: enough to pre-filter searches, nothing that
// identifies the candidate outside our own id space.
type Metadata struct {
	CandidateID     string   `json:"candidate_id"`
	ExperienceLevel string   `json:"experience_level,omitempty"`
	Skills          []string `json:"skills,omitempty"`
	Filename        string   `json:"filename,omitempty"`
	TextLength      int      `json:"text_length,omitempty"`
	ProcessedAt     string   `json:"processed_at,omitempty"`
}

// Filter is the subset of metadata the index can pre-filter on natively.
type Filter struct {
	ExperienceLevel string   `json:"experience_level,omitempty"`
	Skills          []string `json:"skills,omitempty"`
}

// Hit is one ranked result from a similarity query.
type Hit struct {
	Key      string
	Score    float64 // [0,1], higher is more similar
	Metadata Metadata
}

// Entry is a stored item fetched by key.
type Entry struct {
	Key      string
	Contents string
	Metadata Metadata
}

type Client struct {
	rest   *httpc.Client
	index  string
	logger *zap.Logger
}

func NewClient(baseURL, apiKey, indexName string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		rest:   httpc.NewClient(baseURL, apiKey, 30*time.Second),
		index:  indexName,
		logger: logger,
	}
}

type wireItem struct {
	ID       string    `json:"id"`
	Vector   []float32 `json:"vector,omitempty"`
	Contents string    `json:"contents,omitempty"`
	Metadata Metadata  `json:"metadata"`
}

// Put upserts one entry. The service overwrites by key, so re-uploads with
// the same deterministic key replace rather than append.
func (c *Client) Put(ctx context.Context, key string, vec []float32, contents string, md Metadata) error {
	req := struct {
		Items []wireItem `json:"items"`
	}{Items: []wireItem{{ID: key, Vector: vec, Contents: contents, Metadata: md}}}

	if err := c.rest.DoJSON(ctx, http.MethodPost, c.path("/upsert"), req, nil); err != nil {
		return fmt.Errorf("%w: put %s: %v", ErrUnavailable, key, err)
	}
	c.logger.Debug("vector upserted", zap.String("key", key))
	return nil
}

// Query returns the top-k nearest entries. Scores arrive as cosine
// distances and are converted to similarities clamped into [0,1].
func (c *Client) Query(ctx context.Context, vec []float32, k int, filter *Filter) ([]Hit, error) {
	req := struct {
		Vector []float32 `json:"vector"`
		TopK   int       `json:"top_k"`
		Filter *Filter   `json:"filter,omitempty"`
	}{Vector: vec, TopK: k, Filter: filter}

	var resp struct {
		Results []struct {
			ID       string   `json:"id"`
			Distance float64  `json:"distance"`
			Metadata Metadata `json:"metadata"`
		} `json:"results"`
	}
	if err := c.rest.DoJSON(ctx, http.MethodPost, c.path("/query"), req, &resp); err != nil {
		return nil, fmt.Errorf("%w: query: %v", ErrUnavailable, err)
	}

	hits := make([]Hit, 0, len(resp.Results))
	for _, r := range resp.Results {
		hits = append(hits, Hit{
			Key:      r.ID,
			Score:    clampScore(1 - r.Distance),
			Metadata: r.Metadata,
		})
	}
	return hits, nil
}

// Get fetches one entry, including its encrypted-at-rest contents. Used by
// the CV-detail endpoint and the reconciliation sweep.
func (c *Client) Get(ctx context.Context, key string) (*Entry, error) {
	req := struct {
		IDs []string `json:"ids"`
	}{IDs: []string{key}}

	var resp struct {
		Items []wireItem `json:"items"`
	}
	if err := c.rest.DoJSON(ctx, http.MethodPost, c.path("/get"), req, &resp); err != nil {
		var se *httpc.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get %s: %v", ErrUnavailable, key, err)
	}
	if len(resp.Items) == 0 {
		return nil, ErrNotFound
	}
	item := resp.Items[0]
	return &Entry{Key: item.ID, Contents: item.Contents, Metadata: item.Metadata}, nil
}

// Delete removes an entry. Idempotent: deleting a missing key succeeds.
func (c *Client) Delete(ctx context.Context, key string) error {
	req := struct {
		IDs []string `json:"ids"`
	}{IDs: []string{key}}

	if err := c.rest.DoJSON(ctx, http.MethodPost, c.path("/delete"), req, nil); err != nil {
		var se *httpc.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("%w: delete %s: %v", ErrUnavailable, key, err)
	}
	c.logger.Debug("vector deleted", zap.String("key", key))
	return nil
}

// ListKeys enumerates every key in the index; the reconciliation sweep uses
// it to find vectors with no owning profile.
func (c *Client) ListKeys(ctx context.Context) ([]string, error) {
	var resp struct {
		IDs []string `json:"ids"`
	}
	if err := c.rest.DoJSON(ctx, http.MethodGet, c.path("/ids"), nil, &resp); err != nil {
		return nil, fmt.Errorf("%w: list keys: %v", ErrUnavailable, err)
	}
	return resp.IDs, nil
}

func (c *Client) Health(ctx context.Context) error {
	if err := c.rest.DoJSON(ctx, http.MethodGet, "/v1/health", nil, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *Client) path(op string) string {
	return "/v1/indexes/" + c.index + op
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

// Package embedding calls the external embedding model that turns text into
// fixed-length vectors. OpenAI-compatible wire format; the base URL and
// model are configurable so any compatible provider works.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	httpc "securehr/pkg/http"
)

// ErrEmbedding means the upstream model failed to produce a vector.
var ErrEmbedding = errors.New("embedding failed")

type Service struct {
	rest   *httpc.Client
	model  string
	logger *zap.Logger
}

func NewService(baseURL, apiKey, model string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		rest:   httpc.NewClient(baseURL, apiKey, 30*time.Second),
		model:  model,
		logger: logger,
	}
}

// Embed returns an L2-normalized embedding of the given text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty input", ErrEmbedding)
	}

	req := struct {
		Input string `json:"input"`
		Model string `json:"model"`
	}{Input: text, Model: s.model}

	var resp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := s.rest.DoJSON(ctx, http.MethodPost, "/v1/embeddings", req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", ErrEmbedding)
	}

	vec := normalize(resp.Data[0].Embedding)
	s.logger.Debug("embedded text",
		zap.Int("input_len", len(text)),
		zap.Int("dimensions", len(vec)))
	return vec, nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Package search answers queries in two stages: broad vector-similarity
// recall followed by cross-encoder precision reranking, with parent
// paragraph context resolved for every retained chunk.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tlefevre/chisel/internal/llm"
	"github.com/tlefevre/chisel/internal/observability"
	"github.com/tlefevre/chisel/internal/rerank"
	"github.com/tlefevre/chisel/internal/vector"
)

// ErrServiceUnavailable marks a failure of an embedding, search or rerank
// backend. It is deliberately distinct from an empty result: "no passage was
// relevant enough" is a valid answer, an unreachable backend is not.
var ErrServiceUnavailable = errors.New("retrieval backend unavailable")

// Options bound one query.
type Options struct {
	TopK      int     // stage-1 candidate breadth
	FinalK    int     // stage-2 result breadth
	Threshold float64 // minimum stage-2 score to retain a candidate
}

// DefaultOptions returns the standard query bounds. The threshold is an
// empirical cross-encoder cutoff, not a probability.
func DefaultOptions() Options {
	return Options{TopK: 20, FinalK: 3, Threshold: -7.0}
}

// Result is one retained chunk with both stage scores and provenance.
type Result struct {
	Rank            int     `json:"rank"`
	RerankScore     float64 `json:"rerank_score"`
	SimilarityScore float64 `json:"similarity_score"`
	Document        string  `json:"doc"`
	Page            int     `json:"page"`
	ParentID        string  `json:"parent_id"`
	Chunk           string  `json:"chunk"`
}

// Response is the full answer to one query: ranked results plus the parent
// paragraph text for every parent actually referenced.
type Response struct {
	Results []Result          `json:"results"`
	Parents map[string]string `json:"parents"`
}

// Engine runs two-stage retrieval. It holds only read-mostly state, so
// concurrent queries need no locking.
type Engine struct {
	provider llm.Provider
	repo     vector.Repository
	reranker rerank.Reranker
	parents  map[string]string
}

// New creates an Engine. parents maps paragraph id to paragraph text,
// typically built with store.ParentIndex over the paragraph store.
func New(provider llm.Provider, repo vector.Repository, rr rerank.Reranker, parents map[string]string) *Engine {
	return &Engine{provider: provider, repo: repo, reranker: rr, parents: parents}
}

// Query answers one natural-language query. A blank query returns an empty
// response without touching any backend.
func (e *Engine) Query(ctx context.Context, query string, opts Options) (*Response, error) {
	resp := &Response{Parents: map[string]string{}}
	if strings.TrimSpace(query) == "" {
		return resp, nil
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.FinalK <= 0 {
		opts.FinalK = DefaultOptions().FinalK
	}

	ctx, span := observability.StartQuerySpan(ctx, opts.TopK, opts.FinalK)
	defer span.End()

	// Stage 1: recall by embedding distance only. The threshold does not
	// apply here.
	vectors, err := e.provider.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", ErrServiceUnavailable, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: embedding query: got %d vectors", ErrServiceUnavailable, len(vectors))
	}

	candidates, err := e.repo.Search(ctx, vectors[0], opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", ErrServiceUnavailable, err)
	}
	if len(candidates) == 0 {
		return resp, nil
	}

	// Stage 2: independent cross-encoder re-scoring of every candidate.
	passages := make([]string, len(candidates))
	for i, c := range candidates {
		passages[i] = c.Payload.Chunk
	}
	scores, err := e.reranker.Scores(ctx, query, passages)
	if err != nil {
		return nil, fmt.Errorf("%w: rerank: %v", ErrServiceUnavailable, err)
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("%w: rerank: got %d scores for %d candidates", ErrServiceUnavailable, len(scores), len(candidates))
	}

	// Keep survivors of the threshold, ordered by rerank score descending.
	// The sort is stable so ties keep their stage-1 order.
	type scored struct {
		hit   vector.SearchResult
		score float64
	}
	var kept []scored
	for i, c := range candidates {
		if scores[i] >= opts.Threshold {
			kept = append(kept, scored{hit: c, score: scores[i]})
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].score > kept[j].score })
	if len(kept) > opts.FinalK {
		kept = kept[:opts.FinalK]
	}

	for i, k := range kept {
		resp.Results = append(resp.Results, Result{
			Rank:            i + 1,
			RerankScore:     k.score,
			SimilarityScore: float64(k.hit.Score),
			Document:        k.hit.Payload.Document,
			Page:            k.hit.Payload.Page,
			ParentID:        k.hit.Payload.ParentID,
			Chunk:           k.hit.Payload.Chunk,
		})

		// One entry per distinct parent; unknown parents are omitted.
		parentID := k.hit.Payload.ParentID
		if _, done := resp.Parents[parentID]; !done {
			if text, ok := e.parents[parentID]; ok {
				resp.Parents[parentID] = text
			}
		}
	}

	return resp, nil
}

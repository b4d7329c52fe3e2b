// Package rerank scores (query, passage) pairs with a cross-encoder model.
// Cross-encoders read both texts together, so their scores are a sharper
// relevance signal than embedding distance but too slow for recall; the
// search engine uses them only on a small candidate set.
package rerank

import "context"

// Reranker scores passages against a query. Scores are raw model outputs:
// higher means more relevant, with no guaranteed range. Thresholds on them
// are empirical cutoffs, not probabilities.
type Reranker interface {
	// Scores returns one score per passage, aligned with the input order.
	Scores(ctx context.Context, query string, passages []string) ([]float64, error)
}

// Package vector materializes chunks as searchable embedding vectors and
// provides similarity search over them.
package vector

import "context"

// Payload is the metadata stored alongside each vector. Field names on the
// wire are stable ("chunk", "document", "page", "parent_id") so retrieval
// reads never silently come back empty.
type Payload struct {
	Chunk    string
	Document string
	Page     int
	ParentID string
}

// Point is one vector with its deterministic id and payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// SearchResult is a single match from a similarity search, normalized to a
// fixed shape regardless of what the backing client returns.
type SearchResult struct {
	ID      string
	Score   float32
	Payload Payload
}

// Repository provides vector storage and similarity search.
type Repository interface {
	// EnsureCollection creates the collection with the given embedding
	// dimensionality and cosine distance if it does not exist. Never
	// destructive.
	EnsureCollection(ctx context.Context, dimension int) error
	// Upsert inserts or overwrites points by id.
	Upsert(ctx context.Context, points []Point) error
	// Search finds the topK most similar points with payloads and scores.
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	// Close releases resources.
	Close() error
}

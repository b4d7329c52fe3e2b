package vector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/tlefevre/chisel/internal/llm"
	"github.com/tlefevre/chisel/internal/metrics"
	"github.com/tlefevre/chisel/internal/observability"
	"github.com/tlefevre/chisel/internal/store"
)

// SchemaError reports chunk records missing required fields. Indexing fails
// closed: no partial index is written.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("chunk store is missing required fields: %s", strings.Join(e.Missing, ", "))
}

// Indexer rebuilds the vector collection from the full accumulated chunk
// store. Point ids are derived from content, so re-running on unchanged
// chunks overwrites the same points instead of duplicating them.
type Indexer struct {
	provider  llm.Provider
	repo      Repository
	dimension int
	batchSize int
	logger    *slog.Logger
}

// NewIndexer creates an Indexer. dimension must match the embedding model's
// output on both the indexing and query side.
func NewIndexer(provider llm.Provider, repo Repository, dimension, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Indexer{
		provider:  provider,
		repo:      repo,
		dimension: dimension,
		batchSize: batchSize,
		logger:    slog.Default(),
	}
}

// Rebuild validates, embeds and upserts every chunk. Any failure aborts the
// run; rerunning afterwards is safe because ids are deterministic.
func (ix *Indexer) Rebuild(ctx context.Context, chunks []store.Chunk) (*metrics.IndexReport, error) {
	report := metrics.NewIndexReport()
	defer report.Finish()
	report.Dimension = ix.dimension

	if err := validate(chunks); err != nil {
		return nil, err
	}
	report.Chunks = len(chunks)

	ctx, span := observability.StartIndexSpan(ctx, len(chunks))
	defer span.End()

	if err := ix.repo.EnsureCollection(ctx, ix.dimension); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	for start := 0; start < len(chunks); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := ix.provider.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch at %d: %w", start, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embed batch at %d: got %d vectors, want %d", start, len(vectors), len(batch))
		}

		points := make([]Point, len(batch))
		for i, c := range batch {
			points[i] = Point{
				ID:     PointID(c),
				Vector: vectors[i],
				Payload: Payload{
					Chunk:    c.Text,
					Document: c.DocumentName,
					Page:     c.PageNumber,
					ParentID: c.ParentParagraphID,
				},
			}
		}

		if err := ix.repo.Upsert(ctx, points); err != nil {
			return nil, fmt.Errorf("upsert batch at %d: %w", start, err)
		}
		ix.logger.Info("indexed chunks", "done", end, "total", len(chunks))
	}

	return report, nil
}

// PointID derives the deterministic vector point id for a chunk: a UUIDv5
// over (document, page, parent, text). Unchanged content maps to the same
// id; any text change yields a new id and orphans the old point.
func PointID(c store.Chunk) string {
	key := fmt.Sprintf("%s|%d|%s|%s", c.DocumentName, c.PageNumber, c.ParentParagraphID, c.Text)
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(key)).String()
}

// validate checks required fields on every record and reports the union of
// missing field names.
func validate(chunks []store.Chunk) error {
	missing := make(map[string]struct{})
	for _, c := range chunks {
		if c.Text == "" {
			missing["text"] = struct{}{}
		}
		if c.DocumentName == "" {
			missing["document_name"] = struct{}{}
		}
		if c.PageNumber < 1 {
			missing["page_number"] = struct{}{}
		}
		if c.ParentParagraphID == "" {
			missing["parent_paragraph_id"] = struct{}{}
		}
	}
	if len(missing) == 0 {
		return nil
	}

	fields := make([]string, 0, len(missing))
	for f := range missing {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return &SchemaError{Missing: fields}
}

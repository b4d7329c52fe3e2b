// Package pipeline drives one incremental chunking pass: new documents are
// extracted, segmented into paragraphs, chunked concurrently, persisted, and
// finally archived and registered. Interrupted passes roll forward: a file
// is archived and registered only after its output is durably written, so
// anything unfinished is simply picked up again on the next pass.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/tlefevre/chisel/internal/chunker"
	"github.com/tlefevre/chisel/internal/extract"
	"github.com/tlefevre/chisel/internal/metrics"
	"github.com/tlefevre/chisel/internal/observability"
	"github.com/tlefevre/chisel/internal/registry"
	"github.com/tlefevre/chisel/internal/store"
)

// Config locates the working directories and persisted state of a pass.
// IntakeDir and ArchiveDir must be disjoint.
type Config struct {
	IntakeDir      string
	ArchiveDir     string
	RegistryPath   string
	ParagraphsPath string
	ChunksPath     string
	Workers        int // upper bound; effective pool is min(Workers, GOMAXPROCS)
}

// Item is one independent unit of chunking work.
type Item struct {
	Text     string
	Document string
	Page     int
}

// Result pairs a paragraph with the chunks derived from it. Chunks may be
// empty when the paragraph is irreducible or the segmentation backend was
// unavailable; the paragraph is recorded either way.
type Result struct {
	Paragraph store.Paragraph
	Chunks    []store.Chunk
}

// Orchestrator runs incremental chunking passes.
type Orchestrator struct {
	cfg     Config
	chunker *chunker.Chunker
	logger  *slog.Logger
}

// New creates an Orchestrator.
func New(cfg Config, ch *chunker.Chunker) *Orchestrator {
	return &Orchestrator{cfg: cfg, chunker: ch, logger: slog.Default()}
}

// Run executes one pass. An empty intake is a normal, successful no-op.
func (o *Orchestrator) Run(ctx context.Context) (*metrics.PassReport, error) {
	ctx, span := observability.StartPassSpan(ctx, o.cfg.IntakeDir)
	defer span.End()

	report := metrics.NewPassReport()
	defer report.Finish()

	for _, dir := range []string{o.cfg.IntakeDir, o.cfg.ArchiveDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	reg, err := registry.Load(o.cfg.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}

	candidates, err := o.selectCandidates(reg)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		o.logger.Info("no new documents to chunk", "intake", o.cfg.IntakeDir)
		return report, nil
	}
	o.logger.Info("new documents detected", "count", len(candidates))

	// Extraction failures are local to their file: the file stays in
	// intake, unregistered, and the pass continues.
	var items []Item
	itemsPerFile := make(map[string]int)
	var processed []string
	for _, name := range candidates {
		fileItems, err := o.extractItems(name)
		if err != nil {
			o.logger.Error("document extraction failed, leaving file in intake", "document", name, "err", err)
			report.FailedDocuments = append(report.FailedDocuments, name)
			continue
		}
		items = append(items, fileItems...)
		itemsPerFile[name] = len(fileItems)
		processed = append(processed, name)
	}
	o.logger.Info("paragraphs to process", "count", len(items))

	results := Map(ctx, items, o.cfg.Workers, o.process)

	var paragraphs []store.Paragraph
	var chunks []store.Chunk
	for _, r := range results {
		paragraphs = append(paragraphs, r.Paragraph)
		chunks = append(chunks, r.Chunks...)
	}

	// Paragraphs must be durable before their chunks become referencable,
	// and both before any file is archived or registered.
	if err := store.AppendParagraphs(o.cfg.ParagraphsPath, paragraphs); err != nil {
		return nil, fmt.Errorf("persist paragraphs: %w", err)
	}
	if err := store.AppendChunks(o.cfg.ChunksPath, chunks); err != nil {
		return nil, fmt.Errorf("persist chunks: %w", err)
	}

	for _, name := range processed {
		if err := o.archive(name, reg); err != nil {
			return nil, err
		}
		report.Documents++
	}

	report.Paragraphs = len(paragraphs)
	report.Chunks = len(chunks)
	observability.RecordPassCounts(span, report.Documents, report.Paragraphs, report.Chunks)
	return report, nil
}

// selectCandidates lists intake files with a supported extension that are
// absent from the registry. Registered files still present in intake are
// skipped: the normal flow archives them away, so their presence means an
// earlier pass was interrupted after registration.
func (o *Orchestrator) selectCandidates(reg *registry.Registry) ([]string, error) {
	entries, err := os.ReadDir(o.cfg.IntakeDir)
	if err != nil {
		return nil, fmt.Errorf("read intake: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !extract.Supported(name) || reg.Contains(name) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (o *Orchestrator) extractItems(name string) ([]Item, error) {
	pages, err := extract.Pages(filepath.Join(o.cfg.IntakeDir, name))
	if err != nil {
		return nil, err
	}

	var items []Item
	for _, page := range pages {
		for _, paragraph := range extract.Segment(page.Text) {
			items = append(items, Item{Text: paragraph, Document: name, Page: page.Number})
		}
	}
	return items, nil
}

// process is the pure per-paragraph worker function. Paragraph ids are
// generated at processing time, not derived from content.
func (o *Orchestrator) process(ctx context.Context, item Item) Result {
	paragraphID := uuid.NewString()[:8]

	chunks := o.chunker.ChunkParagraph(ctx, item.Text, item.Document, item.Page, paragraphID)

	return Result{
		Paragraph: store.Paragraph{
			ParagraphID:  paragraphID,
			DocumentName: item.Document,
			PageNumber:   item.Page,
			Text:         item.Text,
		},
		Chunks: chunks,
	}
}

// archive moves one finished file out of intake and registers it. The
// registry is saved after every file so a crash never leaves a registered
// file in intake or an archived file unregistered for long.
func (o *Orchestrator) archive(name string, reg *registry.Registry) error {
	src := filepath.Join(o.cfg.IntakeDir, name)
	dst := filepath.Join(o.cfg.ArchiveDir, name)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("archive %s: %w", name, err)
	}
	reg.Add(name)
	if err := reg.Save(o.cfg.RegistryPath); err != nil {
		return fmt.Errorf("save registry after %s: %w", name, err)
	}
	return nil
}

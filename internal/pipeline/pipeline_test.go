package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tlefevre/chisel/internal/chunker"
	"github.com/tlefevre/chisel/internal/llm"
	"github.com/tlefevre/chisel/internal/registry"
	"github.com/tlefevre/chisel/internal/store"
)

// echoProvider returns each paragraph unsplit, so one paragraph maps to
// exactly one chunk.
type echoProvider struct{}

func (echoProvider) Complete(_ context.Context, p *llm.Prompt, _ *llm.RequestOptions) (*llm.Response, error) {
	text := p.Messages[len(p.Messages)-1].Content
	return &llm.Response{Content: text[len("TEXT TO SPLIT:\n"):]}, nil
}

func (echoProvider) Embed(_ context.Context, _ []string) ([][]float32, error) { return nil, nil }
func (echoProvider) Name() string                                             { return "echo" }

func newTestOrchestrator(t *testing.T) (*Orchestrator, Config) {
	t.Helper()
	root := t.TempDir()
	cfg := Config{
		IntakeDir:      filepath.Join(root, "intake"),
		ArchiveDir:     filepath.Join(root, "archive"),
		RegistryPath:   filepath.Join(root, "registry.json"),
		ParagraphsPath: filepath.Join(root, "paragraphs.json"),
		ChunksPath:     filepath.Join(root, "chunks.json"),
		Workers:        2,
	}
	return New(cfg, chunker.New(echoProvider{}, 0)), cfg
}

func writeIntake(t *testing.T, cfg Config, name, content string) {
	t.Helper()
	if err := os.MkdirAll(cfg.IntakeDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfg.IntakeDir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRun_EmptyIntakeIsNoOp(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Documents != 0 || report.Paragraphs != 0 || report.Chunks != 0 {
		t.Fatalf("expected empty report, got %+v", report)
	}
}

func TestRun_ProcessesAndArchivesNewDocuments(t *testing.T) {
	o, cfg := newTestOrchestrator(t)
	writeIntake(t, cfg, "notes.txt", "First paragraph.\n\nSecond paragraph.")

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Documents != 1 {
		t.Fatalf("expected 1 document, got %d", report.Documents)
	}
	if report.Paragraphs != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", report.Paragraphs)
	}
	if report.Chunks != 2 {
		t.Fatalf("expected 2 chunks, got %d", report.Chunks)
	}

	// File moved out of intake into archive.
	if _, err := os.Stat(filepath.Join(cfg.IntakeDir, "notes.txt")); !os.IsNotExist(err) {
		t.Fatal("expected notes.txt gone from intake")
	}
	if _, err := os.Stat(filepath.Join(cfg.ArchiveDir, "notes.txt")); err != nil {
		t.Fatalf("expected notes.txt in archive: %v", err)
	}

	// Registered.
	reg, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		t.Fatal(err)
	}
	if !reg.Contains("notes.txt") {
		t.Fatal("expected notes.txt registered")
	}

	// Every chunk references a persisted paragraph.
	paragraphs, err := store.LoadParagraphs(cfg.ParagraphsPath)
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := store.LoadChunks(cfg.ChunksPath)
	if err != nil {
		t.Fatal(err)
	}
	parents := store.ParentIndex(paragraphs)
	for _, c := range chunks {
		if _, ok := parents[c.ParentParagraphID]; !ok {
			t.Fatalf("chunk references unknown paragraph %q", c.ParentParagraphID)
		}
	}
}

func TestRun_SecondPassSkipsProcessedDocuments(t *testing.T) {
	o, cfg := newTestOrchestrator(t)
	writeIntake(t, cfg, "notes.txt", "Only paragraph.")

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Documents != 0 {
		t.Fatalf("expected no documents on second pass, got %d", report.Documents)
	}

	paragraphs, err := store.LoadParagraphs(cfg.ParagraphsPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(paragraphs) != 1 {
		t.Fatalf("expected paragraph store unchanged, got %d entries", len(paragraphs))
	}
}

func TestRun_RegisteredFileStillInIntakeIsSkipped(t *testing.T) {
	o, cfg := newTestOrchestrator(t)
	writeIntake(t, cfg, "notes.txt", "Paragraph.")

	reg := registry.New()
	reg.Add("notes.txt")
	if err := reg.Save(cfg.RegistryPath); err != nil {
		t.Fatal(err)
	}

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Documents != 0 || report.Paragraphs != 0 {
		t.Fatalf("expected registered file skipped, got %+v", report)
	}
	if _, err := os.Stat(filepath.Join(cfg.IntakeDir, "notes.txt")); err != nil {
		t.Fatal("expected skipped file left in intake")
	}
}

func TestRun_UnsupportedFilesIgnored(t *testing.T) {
	o, cfg := newTestOrchestrator(t)
	writeIntake(t, cfg, "data.csv", "a,b,c")

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Documents != 0 {
		t.Fatalf("expected csv ignored, got %+v", report)
	}
	if _, err := os.Stat(filepath.Join(cfg.IntakeDir, "data.csv")); err != nil {
		t.Fatal("expected unsupported file left in intake")
	}
}

func TestRun_ExtractionFailureLeavesFileAndContinues(t *testing.T) {
	o, cfg := newTestOrchestrator(t)
	writeIntake(t, cfg, "broken.docx", "this is not a zip archive")
	writeIntake(t, cfg, "good.txt", "A paragraph.")

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Documents != 1 {
		t.Fatalf("expected 1 processed document, got %d", report.Documents)
	}
	if len(report.FailedDocuments) != 1 || report.FailedDocuments[0] != "broken.docx" {
		t.Fatalf("expected broken.docx reported failed, got %v", report.FailedDocuments)
	}

	// The failed file stays in intake, unregistered, for a retry after repair.
	if _, err := os.Stat(filepath.Join(cfg.IntakeDir, "broken.docx")); err != nil {
		t.Fatal("expected broken.docx left in intake")
	}
	reg, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		t.Fatal(err)
	}
	if reg.Contains("broken.docx") {
		t.Fatal("failed document must not be registered")
	}
	if !reg.Contains("good.txt") {
		t.Fatal("expected good.txt registered")
	}
}

func TestRun_ParagraphIDsAreUnique(t *testing.T) {
	o, cfg := newTestOrchestrator(t)
	writeIntake(t, cfg, "a.txt", "One.\n\nTwo.\n\nThree.")
	writeIntake(t, cfg, "b.txt", "Four.\n\nFive.")

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	paragraphs, err := store.LoadParagraphs(cfg.ParagraphsPath)
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[string]struct{})
	for _, p := range paragraphs {
		if len(p.ParagraphID) != 8 {
			t.Fatalf("expected 8-char paragraph id, got %q", p.ParagraphID)
		}
		if _, dup := seen[p.ParagraphID]; dup {
			t.Fatalf("duplicate paragraph id %q", p.ParagraphID)
		}
		seen[p.ParagraphID] = struct{}{}
	}
}

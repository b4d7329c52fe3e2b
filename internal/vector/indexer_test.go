package vector

import (
	"context"
	"errors"
	"testing"

	"github.com/tlefevre/chisel/internal/llm"
	"github.com/tlefevre/chisel/internal/store"
)

type mockEmbedder struct {
	dim   int
	err   error
	calls int
}

func (m *mockEmbedder) Complete(_ context.Context, _ *llm.Prompt, _ *llm.RequestOptions) (*llm.Response, error) {
	return nil, errors.New("not implemented")
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, m.dim)
	}
	return out, nil
}

func (m *mockEmbedder) Name() string { return "mock" }

type mockRepo struct {
	ensuredDim int
	points     []Point
	upsertErr  error
}

func (m *mockRepo) EnsureCollection(_ context.Context, dim int) error {
	m.ensuredDim = dim
	return nil
}

func (m *mockRepo) Upsert(_ context.Context, points []Point) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.points = append(m.points, points...)
	return nil
}

func (m *mockRepo) Search(_ context.Context, _ []float32, _ int) ([]SearchResult, error) {
	return nil, nil
}

func (m *mockRepo) Close() error { return nil }

func validChunk(text string) store.Chunk {
	return store.Chunk{
		ParentParagraphID: "aaaa1111",
		PageNumber:        1,
		DocumentName:      "doc.pdf",
		Text:              text,
	}
}

func TestRebuild_IndexesAllChunksInBatches(t *testing.T) {
	provider := &mockEmbedder{dim: 4}
	repo := &mockRepo{}
	ix := NewIndexer(provider, repo, 4, 2)

	chunks := []store.Chunk{validChunk("a"), validChunk("b"), validChunk("c"), validChunk("d"), validChunk("e")}
	report, err := ix.Rebuild(context.Background(), chunks)
	if err != nil {
		t.Fatal(err)
	}

	if repo.ensuredDim != 4 {
		t.Fatalf("expected collection ensured with dim 4, got %d", repo.ensuredDim)
	}
	if len(repo.points) != 5 {
		t.Fatalf("expected 5 points, got %d", len(repo.points))
	}
	if provider.calls != 3 {
		t.Fatalf("expected 3 embed batches for 5 chunks at batch size 2, got %d", provider.calls)
	}
	if report.Chunks != 5 || report.Dimension != 4 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestRebuild_PayloadCarriesProvenance(t *testing.T) {
	repo := &mockRepo{}
	ix := NewIndexer(&mockEmbedder{dim: 2}, repo, 2, 8)

	c := store.Chunk{ParentParagraphID: "bbbb2222", PageNumber: 7, DocumentName: "manual.docx", Text: "the chunk"}
	if _, err := ix.Rebuild(context.Background(), []store.Chunk{c}); err != nil {
		t.Fatal(err)
	}

	p := repo.points[0].Payload
	if p.Chunk != "the chunk" || p.Document != "manual.docx" || p.Page != 7 || p.ParentID != "bbbb2222" {
		t.Fatalf("unexpected payload: %+v", p)
	}
}

func TestRebuild_SchemaErrorNamesAllMissingFields(t *testing.T) {
	ix := NewIndexer(&mockEmbedder{dim: 2}, &mockRepo{}, 2, 8)

	chunks := []store.Chunk{
		{ParentParagraphID: "aaaa1111", PageNumber: 1, DocumentName: "doc.pdf"}, // no text
		{ParentParagraphID: "aaaa1111", PageNumber: 0, DocumentName: "doc.pdf", Text: "x"},
		{PageNumber: 1, DocumentName: "doc.pdf", Text: "y"},
	}
	_, err := ix.Rebuild(context.Background(), chunks)

	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	want := []string{"page_number", "parent_paragraph_id", "text"}
	if len(se.Missing) != len(want) {
		t.Fatalf("expected missing %v, got %v", want, se.Missing)
	}
	for i := range want {
		if se.Missing[i] != want[i] {
			t.Fatalf("expected sorted missing fields %v, got %v", want, se.Missing)
		}
	}
}

func TestRebuild_EmbedFailureAborts(t *testing.T) {
	repo := &mockRepo{}
	ix := NewIndexer(&mockEmbedder{err: errors.New("model not loaded")}, repo, 2, 8)

	_, err := ix.Rebuild(context.Background(), []store.Chunk{validChunk("a")})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(repo.points) != 0 {
		t.Fatalf("expected no points after embed failure, got %d", len(repo.points))
	}
}

func TestPointID_DeterministicAndContentSensitive(t *testing.T) {
	a := validChunk("same text")
	b := validChunk("same text")
	if PointID(a) != PointID(b) {
		t.Fatal("identical chunks must map to the same point id")
	}

	c := validChunk("different text")
	if PointID(a) == PointID(c) {
		t.Fatal("different text must map to a different point id")
	}

	d := validChunk("same text")
	d.PageNumber = 2
	if PointID(a) == PointID(d) {
		t.Fatal("different page must map to a different point id")
	}
}

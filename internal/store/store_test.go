package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadParagraphs_MissingFile(t *testing.T) {
	got, err := LoadParagraphs(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestLoadChunks_CorruptFileRecoversEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.json")
	if err := os.WriteFile(path, []byte("[{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadChunks(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty recovery, got %v", got)
	}
}

func TestAppendParagraphs_Accumulates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paragraphs.json")

	first := []Paragraph{{ParagraphID: "aaaa1111", DocumentName: "doc.pdf", PageNumber: 1, Text: "one"}}
	if err := AppendParagraphs(path, first); err != nil {
		t.Fatal(err)
	}
	second := []Paragraph{{ParagraphID: "bbbb2222", DocumentName: "doc.pdf", PageNumber: 2, Text: "two"}}
	if err := AppendParagraphs(path, second); err != nil {
		t.Fatal(err)
	}

	got, err := LoadParagraphs(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d", len(got))
	}
	if got[0].ParagraphID != "aaaa1111" || got[1].ParagraphID != "bbbb2222" {
		t.Fatalf("append order lost: %v", got)
	}
}

func TestAppendChunks_Accumulates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.json")

	if err := AppendChunks(path, []Chunk{
		{ParentParagraphID: "aaaa1111", PageNumber: 1, DocumentName: "doc.pdf", Text: "alpha"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := AppendChunks(path, []Chunk{
		{ParentParagraphID: "aaaa1111", PageNumber: 1, DocumentName: "doc.pdf", Text: "beta"},
		{ParentParagraphID: "bbbb2222", PageNumber: 2, DocumentName: "doc.pdf", Text: "gamma"},
	}); err != nil {
		t.Fatal(err)
	}

	got, err := LoadChunks(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	if got[2].Text != "gamma" {
		t.Fatalf("expected gamma last, got %q", got[2].Text)
	}
}

func TestParentIndex(t *testing.T) {
	idx := ParentIndex([]Paragraph{
		{ParagraphID: "aaaa1111", Text: "first"},
		{ParagraphID: "bbbb2222", Text: "second"},
	})
	if len(idx) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(idx))
	}
	if idx["aaaa1111"] != "first" || idx["bbbb2222"] != "second" {
		t.Fatalf("unexpected index: %v", idx)
	}
}

// Package store persists paragraphs and chunks as append-accumulating JSON
// arrays. Both files are flat records readable outside the pipeline for
// inspection or reprocessing.
package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Paragraph is the chunking input unit and the parent context returned
// alongside search hits. Immutable once written.
type Paragraph struct {
	ParagraphID  string `json:"paragraph_id"`
	DocumentName string `json:"document_name"`
	PageNumber   int    `json:"page_number"`
	Text         string `json:"text"`
}

// Chunk is a bounded text fragment derived from one paragraph; the unit
// indexed for vector search.
type Chunk struct {
	ParentParagraphID string `json:"parent_paragraph_id"`
	PageNumber        int    `json:"page_number"`
	DocumentName      string `json:"document_name"`
	Text              string `json:"text"`
}

// LoadParagraphs reads the paragraph store. Missing files yield an empty
// slice; corrupt files yield an empty slice with a logged warning.
func LoadParagraphs(path string) ([]Paragraph, error) {
	var out []Paragraph
	ok, err := loadJSON(path, &out)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return out, nil
}

// LoadChunks reads the chunk store with the same tolerance as LoadParagraphs.
func LoadChunks(path string) ([]Chunk, error) {
	var out []Chunk
	ok, err := loadJSON(path, &out)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return out, nil
}

// AppendParagraphs merges new paragraphs onto the persisted array and
// rewrites the file.
func AppendParagraphs(path string, paragraphs []Paragraph) error {
	existing, err := LoadParagraphs(path)
	if err != nil {
		return err
	}
	return writeJSON(path, append(existing, paragraphs...))
}

// AppendChunks merges new chunks onto the persisted array and rewrites the
// file.
func AppendChunks(path string, chunks []Chunk) error {
	existing, err := LoadChunks(path)
	if err != nil {
		return err
	}
	return writeJSON(path, append(existing, chunks...))
}

// ParentIndex builds a paragraph-id → text lookup for parent resolution.
func ParentIndex(paragraphs []Paragraph) map[string]string {
	idx := make(map[string]string, len(paragraphs))
	for _, p := range paragraphs {
		idx[p.ParagraphID] = p.Text
	}
	return idx
}

// loadJSON fills out from the file at path. The bool result is false when
// the decoded value must be discarded (corrupt file, recovered as empty).
func loadJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		slog.Warn("store file is corrupt, treating as empty", "path", path, "err", err)
		return false, nil
	}
	return true, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}

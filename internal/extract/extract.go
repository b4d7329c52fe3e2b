// Package extract normalizes source documents into ordered per-page text.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Page is one unit of extracted text. Formats without pagination report a
// single page numbered 1.
type Page struct {
	Number int
	Text   string
}

// UnsupportedFormatError reports a file extension no extractor handles.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported document format %q", e.Ext)
}

// SupportedExtensions lists the extensions Pages accepts, lowercase with dot.
var SupportedExtensions = []string{".pdf", ".docx", ".txt"}

// Supported reports whether the file name has an extension Pages accepts.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Pages reads the file and returns its non-empty pages in document order.
// The read is pure: the source file is never modified.
func Pages(path string) ([]Page, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return readPDF(path)
	case ".docx":
		return readDOCX(path)
	case ".txt":
		return readTXT(path)
	default:
		return nil, &UnsupportedFormatError{Ext: ext}
	}
}

// readTXT treats the whole file as page 1. Invalid UTF-8 sequences are kept
// as-is; downstream consumers only split on ASCII boundaries.
func readTXT(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	return []Page{{Number: 1, Text: text}}, nil
}

package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// readPDF extracts text page by page, numbering from 1 and dropping pages
// whose text is empty or whitespace-only.
func readPDF(path string) ([]Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	var pages []Page
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read pdf page %d of %s: %w", i, path, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

package extract

import "strings"

// Segment splits page text into paragraphs on blank-line boundaries.
// Each paragraph is trimmed; empty paragraphs are dropped. Order follows
// the source text.
func Segment(text string) []string {
	var paragraphs []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

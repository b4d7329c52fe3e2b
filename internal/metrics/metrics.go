// Package metrics collects run statistics for ingestion passes and queries.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// PassReport summarizes one incremental chunking pass. A pass only ever
// counts whole documents: a file that failed mid-way is reported under
// FailedDocuments and left in intake for the next pass.
type PassReport struct {
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration_ms"`
	Documents       int           `json:"documents"`
	FailedDocuments []string      `json:"failed_documents,omitempty"`
	Paragraphs      int           `json:"paragraphs"`
	Chunks          int           `json:"chunks"`
}

// NewPassReport starts tracking a pass.
func NewPassReport() *PassReport {
	return &PassReport{StartedAt: time.Now()}
}

// Finish records the total duration.
func (r *PassReport) Finish() {
	r.Duration = time.Since(r.StartedAt)
}

// JSON renders the report for machine consumption.
func (r *PassReport) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// PrintSummary writes a human-readable report.
func (r *PassReport) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "Documents processed: %d\n", r.Documents)
	if len(r.FailedDocuments) > 0 {
		fmt.Fprintf(w, "Documents failed:    %d %v\n", len(r.FailedDocuments), r.FailedDocuments)
	}
	fmt.Fprintf(w, "Paragraphs found:    %d\n", r.Paragraphs)
	fmt.Fprintf(w, "Chunks produced:     %d\n", r.Chunks)
	fmt.Fprintf(w, "Duration:            %v\n", r.Duration.Round(time.Millisecond))
}

// IndexReport summarizes one full rebuild of the vector collection.
type IndexReport struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ms"`
	Chunks    int           `json:"chunks"`
	Dimension int           `json:"dimension"`
}

// NewIndexReport starts tracking a rebuild.
func NewIndexReport() *IndexReport {
	return &IndexReport{StartedAt: time.Now()}
}

// Finish records the total duration.
func (r *IndexReport) Finish() {
	r.Duration = time.Since(r.StartedAt)
}

// JSON renders the report for machine consumption.
func (r *IndexReport) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// PrintSummary writes a human-readable report.
func (r *IndexReport) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "Chunks indexed: %d\n", r.Chunks)
	fmt.Fprintf(w, "Dimension:      %d\n", r.Dimension)
	fmt.Fprintf(w, "Duration:       %v\n", r.Duration.Round(time.Millisecond))
}

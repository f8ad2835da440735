// Package cli provides output formatting and an HTTP client for the semprompt CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/semprompt/internal/models"
	"github.com/hyperjump/semprompt/internal/vector"
	"github.com/hyperjump/semprompt/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

// Status summarizes a running or local service for the status command.
type Status struct {
	TotalPrompts   int64        `json:"total_prompts"`
	Embedder       string       `json:"embedder"`
	Dimensions     int          `json:"dimensions"`
	Generator      string       `json:"generator"`
	VectorIndex    vector.Stats `json:"vector_index"`
	DiskUsageBytes *int64       `json:"disk_usage_bytes,omitempty"`
	DatabasePath   string       `json:"database_path,omitempty"`
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRecord writes one stored prompt.
func WriteRecord(w io.Writer, rec *models.PromptRecord, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, rec)
	}
	fmt.Fprintf(w, "ID:       %s\n", rec.ID)
	fmt.Fprintf(w, "Created:  %s\n", rec.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Prompt:   %s\n", rec.Prompt)
	fmt.Fprintf(w, "Response: %s\n", rec.Response)
	return nil
}

// WriteSimilarResults writes similarity results, best first.
func WriteSimilarResults(w io.Writer, query string, results []*models.SimilarResult, format OutputFormat) error {
	if format == OutputJSON {
		if results == nil {
			results = []*models.SimilarResult{}
		}
		return writeJSON(w, results)
	}
	fmt.Fprintf(w, "\nFound %d similar prompts for %q\n\n", len(results), utils.Truncate(query, 60))
	for i, r := range results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | ID: %s\n", i+1, r.Score, r.ID)
		fmt.Fprintf(w, "\n%s\n", utils.Truncate(r.Prompt, 200))
		fmt.Fprintf(w, "→ %s\n\n", utils.Truncate(r.Response, 200))
	}
	return nil
}

// WritePage writes one page of stored prompts, one line per record in text mode.
func WritePage(w io.Writer, page *models.PromptPage, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, page)
	}
	fmt.Fprintf(w, "Page %d (size %d) of %d prompts\n\n", page.Page, page.PageSize, page.Total)
	for _, rec := range page.Items {
		fmt.Fprintf(w, "%s  %s  %s\n", rec.ID, rec.CreatedAt.Format(time.RFC3339), TruncateWords(rec.Prompt, 12))
	}
	if page.HasNext {
		fmt.Fprintf(w, "\nMore: --page %d\n", page.Page+1)
	}
	return nil
}

// WriteStatus writes service status.
func WriteStatus(w io.Writer, st *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "prompts:            %d   # stored prompt records\n", st.TotalPrompts)
	fmt.Fprintf(w, "vectors:            %d   # entries in the vector index\n", st.VectorIndex.Count)
	fmt.Fprintf(w, "pending_ops:        %d   # adds not yet in the snapshot\n", st.VectorIndex.PendingOps)
	fmt.Fprintf(w, "flushes:            %d (%d failed)\n", st.VectorIndex.Flushes, st.VectorIndex.FlushFailures)
	if !st.VectorIndex.LastFlush.IsZero() {
		fmt.Fprintf(w, "last_flush:         %s\n", st.VectorIndex.LastFlush.Format(time.RFC3339))
	}
	if st.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # database + snapshot on disk\n", *st.DiskUsageBytes)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# configuration")
	fmt.Fprintf(w, "embedder:           %s (%d dims)\n", st.Embedder, st.Dimensions)
	fmt.Fprintf(w, "generator:          %s\n", st.Generator)
	fmt.Fprintf(w, "flush_interval:     %d\n", st.VectorIndex.FlushInterval)
	if st.VectorIndex.Compression != "" {
		fmt.Fprintf(w, "compression:        %s\n", st.VectorIndex.Compression)
	}
	if st.VectorIndex.Path != "" {
		fmt.Fprintf(w, "vector_index_path:  %s\n", st.VectorIndex.Path)
	}
	if st.DatabasePath != "" {
		fmt.Fprintf(w, "database_path:      %s\n", st.DatabasePath)
	}
	return nil
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

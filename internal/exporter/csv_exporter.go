package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"zemini/internal/artifacts"
)

// SchemaVersion identifies the CSV export format version.
const SchemaVersion = "1"

var csvColumns = []string{
	"schemaVersion",
	"id",
	"type",
	"prompt",
	"imageUrl",
	"originalUrl",
	"createdAt",
}

// CSVExporter writes a user's image history as CSV.
type CSVExporter struct{}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Export writes artifacts to w, one row per artifact in the given order.
func (e *CSVExporter) Export(w io.Writer, list []artifacts.Artifact) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(csvColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, artifact := range list {
		if err := writer.Write(artifactToRow(artifact)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func artifactToRow(a artifacts.Artifact) []string {
	return []string{
		SchemaVersion,
		a.ID.String(),
		string(a.Kind),
		sanitizeCell(a.Prompt),
		a.URL,
		a.SourceURL,
		formatTime(a.CreatedAt),
	}
}

// sanitizeCell neutralises values a spreadsheet would evaluate as formulas.
// Prompts are free text typed by users.
func sanitizeCell(value string) string {
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + value
	}
	return strings.TrimSpace(value)
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

// Package export writes the final treaty dataset to CSV and JSON files.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/iiadata/treaty-crawler/internal/crawl"
)

// Columns is the fixed export field order.
var Columns = []string{
	"treaty_url",
	"short_title",
	"treaty_type",
	"status",
	"party_1",
	"party_2",
	"date_of_signature",
	"date_of_entry_into_force",
	"date_of_termination",
	"termination_type",
}

// FileExporter writes one CSV file plus a JSON sibling with the same rows.
type FileExporter struct {
	csvPath string
	logger  *zap.Logger
}

// NewFileExporter builds an exporter targeting csvPath; the JSON file takes
// the same path with a .json extension.
func NewFileExporter(csvPath string, logger *zap.Logger) *FileExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileExporter{csvPath: csvPath, logger: logger}
}

// Export writes both files. Partial output on error is not cleaned up; the
// caller treats export failure as fatal anyway.
func (e *FileExporter) Export(ctx context.Context, items []crawl.CanonicalItem) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("export canceled: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(e.csvPath), 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := e.writeCSV(items); err != nil {
		return err
	}
	if err := e.writeJSON(items); err != nil {
		return err
	}
	return nil
}

func (e *FileExporter) writeCSV(items []crawl.CanonicalItem) error {
	f, err := os.Create(e.csvPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", e.csvPath, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, item := range items {
		if err := w.Write(record(item)); err != nil {
			return fmt.Errorf("write row %q: %w", item.Title, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", e.csvPath, err)
	}
	e.logger.Info("Wrote CSV export", zap.String("path", e.csvPath), zap.Int("treaties", len(items)))
	return nil
}

// jsonRow fixes the JSON object key order; the fields mirror Columns.
// encoding/json emits struct fields in declaration order, where a map
// would sort them alphabetically.
type jsonRow struct {
	TreatyURL            string `json:"treaty_url"`
	ShortTitle           string `json:"short_title"`
	TreatyType           string `json:"treaty_type"`
	Status               string `json:"status"`
	Party1               string `json:"party_1"`
	Party2               string `json:"party_2"`
	DateOfSignature      string `json:"date_of_signature"`
	DateOfEntryIntoForce string `json:"date_of_entry_into_force"`
	DateOfTermination    string `json:"date_of_termination"`
	TerminationType      string `json:"termination_type"`
}

func (e *FileExporter) writeJSON(items []crawl.CanonicalItem) error {
	jsonPath := strings.TrimSuffix(e.csvPath, filepath.Ext(e.csvPath)) + ".json"
	rows := make([]jsonRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, jsonRow{
			TreatyURL:            item.SourceURL,
			ShortTitle:           item.Title,
			TreatyType:           item.Category,
			Status:               item.Status,
			Party1:               item.Party1,
			Party2:               item.Party2,
			DateOfSignature:      item.SignatureDate,
			DateOfEntryIntoForce: item.EntryIntoForceDate,
			DateOfTermination:    item.TerminationDate,
			TerminationType:      item.TerminationCategory,
		})
	}
	payload, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal export: %w", err)
	}
	if err := os.WriteFile(jsonPath, payload, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", jsonPath, err)
	}
	e.logger.Info("Wrote JSON export", zap.String("path", jsonPath), zap.Int("treaties", len(items)))
	return nil
}

func record(item crawl.CanonicalItem) []string {
	return []string{
		item.SourceURL,
		item.Title,
		item.Category,
		item.Status,
		item.Party1,
		item.Party2,
		item.SignatureDate,
		item.EntryIntoForceDate,
		item.TerminationDate,
		item.TerminationCategory,
	}
}

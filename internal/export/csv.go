package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shelfwatch/catalog-crawler/internal/crawler"
)

// CSVWriter implements the table writer contract over encoding/csv.
type CSVWriter struct{}

// NewCSVWriter returns a CSVWriter.
func NewCSVWriter() *CSVWriter {
	return &CSVWriter{}
}

// WriteTable creates path and writes the header titles followed by rows.
func (CSVWriter) WriteTable(path string, header []crawler.Column, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}

	w := csv.NewWriter(f)
	titles := make([]string, len(header))
	for i, col := range header {
		titles[i] = col.Title
	}
	if err := w.Write(titles); err != nil {
		_ = f.Close()
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			_ = f.Close()
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close export file: %w", err)
	}
	return nil
}

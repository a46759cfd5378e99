// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report persists batch outcomes: an incremental CSV report, a
// SQLite run history, and a YAML run summary.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/pdf-harvest/pkg/types"
)

// CSVWriter appends report rows to a CSV file, flushing after every row so
// an interrupted run still leaves a usable report.
type CSVWriter struct {
	f *os.File
	w *csv.Writer
}

// NewCSVWriter creates (or truncates) path and writes the header row.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating report %s: %w", path, err)
	}

	cw := &CSVWriter{f: f, w: csv.NewWriter(f)}
	if err := cw.writeRow(types.ReportHeader); err != nil {
		f.Close()
		return nil, err
	}
	return cw, nil
}

// Write appends one record.
func (c *CSVWriter) Write(rec types.ReportRecord) error {
	return c.writeRow(rec.Fields())
}

func (c *CSVWriter) writeRow(row []string) error {
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("writing report row: %w", err)
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("flushing report: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (c *CSVWriter) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.f.Close()
		return fmt.Errorf("flushing report: %w", err)
	}
	return c.f.Close()
}

// ReadCSV loads the records of a report written by CSVWriter.
func ReadCSV(path string) ([]types.ReportRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening report %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	recs := make([]types.ReportRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := types.ParseReportRecord(row)
		if err != nil {
			return nil, fmt.Errorf("report %s row %d: %w", path, i+2, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

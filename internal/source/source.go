// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source reads the ordered URL list of a batch from a spreadsheet
// column (.xlsx, .csv, .tsv) or a plain list (.txt, one URL per line).
package source

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/pdiddy/pdf-harvest/internal/portal"
)

// Load returns the non-empty cells of the selected column, in row order.
// column is a header name (case-insensitive) or a 1-based index. When it
// is empty the first header containing "url" or "link" is used, falling
// back to the first column. The first row is treated as a header only
// when it holds neither a URL nor a DOI or arXiv ID.
func Load(path, column string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err := readXLSX(path)
		if err != nil {
			return nil, err
		}
		return fromRows(rows, column)
	case ".csv":
		rows, err := readDelimited(path, ',')
		if err != nil {
			return nil, err
		}
		return fromRows(rows, column)
	case ".tsv":
		rows, err := readDelimited(path, '\t')
		if err != nil {
			return nil, err
		}
		return fromRows(rows, column)
	default:
		return readLines(path)
	}
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q of %s: %w", sheets[0], path, err)
	}
	return rows, nil
}

func readDelimited(path string, comma rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return rows, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return ReadList(f)
}

// ReadList reads one URL per line, skipping blank lines and # comments.
func ReadList(r io.Reader) ([]string, error) {
	var urls []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading URL list: %w", err)
	}
	return urls, nil
}

func fromRows(rows [][]string, column string) ([]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	hasHeader := !anyEntry(header)

	col, err := selectColumn(header, hasHeader, column)
	if err != nil {
		return nil, err
	}

	body := rows
	if hasHeader {
		body = rows[1:]
	}
	var urls []string
	for _, row := range body {
		if col >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[col]); v != "" {
			urls = append(urls, v)
		}
	}
	return urls, nil
}

// selectColumn resolves column to a zero-based index.
func selectColumn(header []string, hasHeader bool, column string) (int, error) {
	column = strings.TrimSpace(column)
	if column == "" {
		if hasHeader {
			for i, h := range header {
				h = strings.ToLower(h)
				if strings.Contains(h, "url") || strings.Contains(h, "link") {
					return i, nil
				}
			}
		}
		return 0, nil
	}

	if n, err := strconv.Atoi(column); err == nil {
		if n < 1 {
			return 0, fmt.Errorf("column index %d out of range (columns are 1-based)", n)
		}
		return n - 1, nil
	}

	if hasHeader {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), column) {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("column %q not found in header", column)
}

// anyEntry reports whether a row holds a URL or a resolvable identifier.
func anyEntry(cells []string) bool {
	for _, c := range cells {
		c = strings.TrimSpace(c)
		lc := strings.ToLower(c)
		if strings.HasPrefix(lc, "http://") || strings.HasPrefix(lc, "https://") || portal.Resolve(c) != c {
			return true
		}
	}
	return false
}

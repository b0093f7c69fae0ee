// Package ingest reads long-format telemetry tables from CSV files and Excel
// workbooks into raw string tables.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"robokin/pkg/contracts/domain"
)

// Options tune how files are read
type Options struct {
	// Sheet selects the workbook sheet; empty picks the first sheet that
	// carries the required header
	Sheet string
	// HeaderScanRows bounds how far into a sheet the header row is searched
	HeaderScanRows int
}

const defaultHeaderScanRows = 20

// ReadFile reads a .csv or .xlsx file, chosen by extension
func ReadFile(ctx context.Context, path string, opts Options) (*domain.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()
		return ReadCSV(ctx, f)
	case ".xlsx":
		return ReadXLSX(ctx, path, opts)
	default:
		return nil, fmt.Errorf("unsupported input file %s", path)
	}
}

// normalizeHeader lower-cases header cells and strips whitespace and a UTF-8 BOM
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}

// finish pads short rows, drops blank ones and checks the required columns
func finish(header []string, rows [][]string) (*domain.Table, error) {
	table := &domain.Table{Header: header, Rows: make([][]string, 0, len(rows))}
	for _, row := range rows {
		if blank(row) {
			continue
		}
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			row = padded
		}
		table.Rows = append(table.Rows, row[:len(header)])
	}

	if err := table.RequireColumns(domain.RequiredColumns...); err != nil {
		return nil, err
	}
	return table, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

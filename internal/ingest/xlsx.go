package ingest

import (
	"context"
	"fmt"
	"slices"

	"github.com/xuri/excelize/v2"

	"robokin/pkg/contracts/domain"
)

// ReadXLSX reads the telemetry table from a workbook. The header is the first
// row, within the scan window, that names every required column; rows above
// it are ignored.
func ReadXLSX(ctx context.Context, path string, opts Options) (*domain.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	scan := opts.HeaderScanRows
	if scan <= 0 {
		scan = defaultHeaderScanRows
	}

	sheets := f.GetSheetList()
	if opts.Sheet != "" {
		if !slices.Contains(sheets, opts.Sheet) {
			return nil, fmt.Errorf("sheet %q not found in %s", opts.Sheet, path)
		}
		sheets = []string{opts.Sheet}
	}

	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}

		for i := 0; i < len(rows) && i < scan; i++ {
			header := normalizeHeader(rows[i])
			probe := domain.Table{Header: header}
			if probe.RequireColumns(domain.RequiredColumns...) == nil {
				return finish(header, rows[i+1:])
			}
		}
	}

	return nil, fmt.Errorf("no sheet in %s has a telemetry header: %w: %v",
		path, domain.ErrMissingColumn, domain.RequiredColumns)
}

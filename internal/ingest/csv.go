package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"robokin/pkg/contracts/domain"
)

// ReadCSV reads a comma separated table whose first record is the header
func ReadCSV(ctx context.Context, r io.Reader) (*domain.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty csv: %w: %v", domain.ErrMissingColumn, domain.RequiredColumns)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		rows = append(rows, record)
	}

	return finish(normalizeHeader(header), rows)
}

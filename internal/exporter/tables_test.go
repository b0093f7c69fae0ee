package exporter

import (
	"context"
	"encoding/csv"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robokin/internal/dataprocessing"
	"robokin/internal/validation"
	"robokin/pkg/contracts/domain"
)

func pipelineResult(t *testing.T, rows ...[]string) *dataprocessing.Result {
	t.Helper()
	table := &domain.Table{Header: domain.RequiredColumns, Rows: rows}
	v := validation.NewSchemaValidator(validation.DefaultSchema(), nil)
	result, err := dataprocessing.NewPipeline(dataprocessing.DefaultFeatureSchema(), v).Run(context.Background(), table)
	require.NoError(t, err)
	return result
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(content), "\ufeff"))).ReadAll()
	require.NoError(t, err)
	return records
}

func TestTableExporter_Write(t *testing.T) {
	result := pipelineResult(t,
		[]string{"1", "1", "encoder", "x", "2023-01-01T00:00:00.000Z", "0"},
		[]string{"1", "1", "encoder", "x", "2023-01-01T00:00:00.040Z", "4"},
		[]string{"1", "2", "load_cell", "fx", "2023-01-01T00:00:00.020Z", "2.5"},
		[]string{"3", "1", "encoder", "y", "2023-01-01T00:00:02.000Z", "1"},
	)

	e := NewTableExporter(t.TempDir(), true, nil)
	require.NoError(t, e.Write(context.Background(), result))
	require.NoError(t, e.Close())

	raw := readCSV(t, e.Path(dataprocessing.TableTimeseriesRaw))
	assert.Equal(t, dataprocessing.RawColumns, raw[0])
	require.Len(t, raw, 5)
	assert.Equal(t, []string{"1", "2", "load_cell", "fx", "2023-01-01T00:00:00.020Z", "1672531200020", "2.5"}, findRow(t, raw, "load_cell"))

	interp := readCSV(t, e.Path(dataprocessing.TableInterpolated))
	assert.Equal(t, result.Schema.InterpolatedColumns(), interp[0])
	assert.Len(t, interp, result.FeatureRowCount()+1)
	for _, row := range interp[1:] {
		assert.Len(t, row, 40)
	}

	stats := readCSV(t, e.Path(dataprocessing.TableRunStats))
	assert.Equal(t, result.Schema.RunStatsColumns(), stats[0])
	require.Len(t, stats, 3)
	assert.Equal(t, []string{"1", "1672531200000", "1672531200040", "40", "4", "0"}, stats[1])
	assert.Equal(t, []string{"3", "1672531202000", "1672531202000", "0", "0", "0"}, stats[2])
}

func findRow(t *testing.T, records [][]string, value string) []string {
	t.Helper()
	for _, r := range records {
		for _, c := range r {
			if c == value {
				return r
			}
		}
	}
	t.Fatalf("no record contains %q", value)
	return nil
}

func TestTableExporter_EmptyResult(t *testing.T) {
	result := pipelineResult(t, []string{"1", "7", "encoder", "x", "2023-01-01T00:00:00.000Z", "0"})
	require.True(t, result.Empty())

	e := NewTableExporter(t.TempDir(), false, nil)
	require.NoError(t, e.Write(context.Background(), result))

	for _, table := range []string{dataprocessing.TableTimeseriesRaw, dataprocessing.TableInterpolated, dataprocessing.TableRunStats} {
		records := readCSV(t, e.Path(table))
		assert.Len(t, records, 1, table)
	}
}

func TestTableExporter_Errors(t *testing.T) {
	e := NewTableExporter(t.TempDir(), false, nil)
	assert.Error(t, e.Write(context.Background(), nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Write(ctx, &dataprocessing.Result{Schema: dataprocessing.DefaultFeatureSchema()}), context.Canceled)
}

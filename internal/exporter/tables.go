package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"robokin/internal/dataprocessing"
)

// TableExporter writes the three output tables of a pipeline run as CSV
// files: timeseries_raw.csv, interpolated.csv and run_stats.csv. Files are
// rewritten on every Write.
type TableExporter struct {
	writer *CSVWriter
	bom    bool
	logger *slog.Logger
}

// NewTableExporter creates an exporter writing into dir
func NewTableExporter(dir string, bom bool, logger *slog.Logger) *TableExporter {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "csv_sink"))
	return &TableExporter{
		writer: NewCSVWriter(dir, logger),
		bom:    bom,
		logger: logger,
	}
}

// FileName returns the CSV file name of an output table
func FileName(table string) string {
	return table + ".csv"
}

// Path returns the full path of an output table's file
func (e *TableExporter) Path(table string) string {
	return filepath.Join(e.writer.Dir(), FileName(table))
}

// Write exports every table of result. An empty result produces header-only
// files.
func (e *TableExporter) Write(ctx context.Context, result *dataprocessing.Result) error {
	if result == nil || result.Schema == nil {
		return errors.New("csv sink: result has no schema")
	}

	raw, err := e.writeRaw(ctx, result)
	if err != nil {
		return err
	}
	interpolated, err := e.writeInterpolated(ctx, result)
	if err != nil {
		return err
	}
	stats, err := e.writeRunStats(ctx, result)
	if err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "results exported",
		slog.String("dir", e.writer.Dir()),
		slog.String("raw_rows", humanize.Comma(int64(raw))),
		slog.String("interpolated_rows", humanize.Comma(int64(interpolated))),
		slog.Int("runs", stats))
	return nil
}

// Close implements the sink interface; files are closed after each Write
func (e *TableExporter) Close() error { return nil }

func (e *TableExporter) stream(ctx context.Context, table string, headers []string, fill func(*StreamWriter) error) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sw, err := e.writer.CreateStreamWriter(FileName(table), headers, e.bom)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", table, err)
	}
	if err := fill(sw); err != nil {
		sw.Close()
		return 0, fmt.Errorf("%s: %w", table, err)
	}
	if err := sw.Close(); err != nil {
		return 0, fmt.Errorf("%s: %w", table, err)
	}
	return sw.Count(), nil
}

func (e *TableExporter) writeRaw(ctx context.Context, result *dataprocessing.Result) (int, error) {
	return e.stream(ctx, dataprocessing.TableTimeseriesRaw, dataprocessing.RawColumns, func(sw *StreamWriter) error {
		for _, s := range result.Samples {
			record := []string{
				s.Run.String(),
				s.Robot,
				string(s.Sensor),
				string(s.Field),
				s.Time,
				formatInt(s.TimeMs),
				formatFloat(s.Value),
			}
			if err := sw.WriteRecord(record); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *TableExporter) writeInterpolated(ctx context.Context, result *dataprocessing.Result) (int, error) {
	schema := result.Schema
	return e.stream(ctx, dataprocessing.TableInterpolated, schema.InterpolatedColumns(), func(sw *StreamWriter) error {
		record := make([]string, 0, schema.Width()+2)
		for _, run := range result.Features {
			if err := ctx.Err(); err != nil {
				return err
			}
			for _, row := range run.Rows {
				record = append(record[:0], row.Run.String(), formatInt(row.TimeMs))
				for _, v := range row.Values {
					record = append(record, formatFloat(v))
				}
				if err := sw.WriteRecord(record); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (e *TableExporter) writeRunStats(ctx context.Context, result *dataprocessing.Result) (int, error) {
	schema := result.Schema
	return e.stream(ctx, dataprocessing.TableRunStats, schema.RunStatsColumns(), func(sw *StreamWriter) error {
		for _, st := range result.Stats {
			record := []string{
				st.Run.String(),
				formatInt(st.StartMs),
				formatInt(st.EndMs),
				formatInt(st.DurationMs),
			}
			for _, d := range schema.Distances(st) {
				record = append(record, formatFloat(d))
			}
			if err := sw.WriteRecord(record); err != nil {
				return err
			}
		}
		return nil
	})
}

// Package exporter writes pipeline results as CSV files.
//
// CSVWriter is the low-level writer: whole-file writes, appends and a
// StreamWriter for large tables, with an optional UTF-8 BOM for Excel.
//
// TableExporter is the CSV sink. Each Write replaces timeseries_raw.csv,
// interpolated.csv and run_stats.csv in its directory:
//
//	sink := exporter.NewTableExporter("data/output", true, logger)
//	if err := sink.Write(ctx, result); err != nil {
//		return err
//	}
package exporter

// Package domain holds the data contracts shared by the pipeline, the sinks
// and the API: raw tables and drop reports, typed telemetry samples, wide and
// feature rows, and per-run statistics.
package domain

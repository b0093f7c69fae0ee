package storage

import (
	"fmt"
	"strings"

	"robokin/internal/dataprocessing"
)

// Max host parameters per statement in the bundled SQLite build
const maxVariables = 32766

const createRawSQL = `
CREATE TABLE "timeseries_raw" (
    "run_uuid"    INTEGER NOT NULL,
    "robot_id"    TEXT    NOT NULL,
    "sensor_type" TEXT    NOT NULL,
    "field"       TEXT    NOT NULL,
    "time"        TEXT    NOT NULL,
    "time_ms"     INTEGER NOT NULL,
    "value"       REAL    NOT NULL
)`

const tableExistsSQL = `SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`

const selectRunStatsSQL = `
SELECT *
FROM "run_stats"
ORDER BY "run_uuid"`

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func dropTableSQL(table string) string {
	return "DROP TABLE IF EXISTS " + quote(table)
}

// createInterpolatedSQL declares run_uuid and time as integers and every
// feature column as a non-null REAL
func createInterpolatedSQL(schema *dataprocessing.FeatureSchema) string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(quote(dataprocessing.TableInterpolated))
	sb.WriteString(" (\n    \"run_uuid\" INTEGER NOT NULL,\n    \"time\" INTEGER NOT NULL")
	for _, name := range schema.Names() {
		fmt.Fprintf(&sb, ",\n    %s REAL NOT NULL", quote(name))
	}
	sb.WriteString(",\n    PRIMARY KEY (\"run_uuid\", \"time\")\n)")
	return sb.String()
}

func createRunStatsSQL(schema *dataprocessing.FeatureSchema) string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(quote(dataprocessing.TableRunStats))
	sb.WriteString(" (\n    \"run_uuid\" INTEGER PRIMARY KEY")
	for _, col := range schema.RunStatsColumns()[1:] {
		typ := "INTEGER"
		if strings.HasPrefix(col, "total_distance_") {
			typ = "REAL"
		}
		fmt.Fprintf(&sb, ",\n    %s %s NOT NULL", quote(col), typ)
	}
	sb.WriteString("\n)")
	return sb.String()
}

// insertPrefix returns "INSERT INTO t (c1, c2) VALUES " and the placeholder
// group for one row
func insertPrefix(table string, columns []string) (string, string) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quote(c)
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", quote(table), strings.Join(quoted, ", "))
	group := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	return prefix, group
}

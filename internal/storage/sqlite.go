// Package storage persists pipeline results to SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	_ "github.com/mattn/go-sqlite3"

	"robokin/internal/dataprocessing"
	"robokin/pkg/contracts/domain"
)

const defaultBatchRows = 500

// SqliteSink writes the three output tables of a pipeline run to a SQLite
// database. Every Write replaces the previous contents of the tables inside a
// single transaction.
type SqliteSink struct {
	dbPath    string
	batchRows int
	logger    *slog.Logger

	// serializes writers; SQLite allows one write transaction at a time
	writeMu sync.Mutex

	// guards db and closed; a closed sink never reopens
	mu     sync.Mutex
	db     *sql.DB
	closed bool
}

// SqliteOption configures a SqliteSink
type SqliteOption func(*SqliteSink)

// WithBatchRows sets the number of rows per multi-row INSERT
func WithBatchRows(n int) SqliteOption {
	return func(s *SqliteSink) {
		if n > 0 {
			s.batchRows = n
		}
	}
}

// WithSqliteLogger sets the logger
func WithSqliteLogger(logger *slog.Logger) SqliteOption {
	return func(s *SqliteSink) { s.logger = logger }
}

// NewSqliteSink creates a sink for dbPath. The database is opened on first use.
func NewSqliteSink(dbPath string, opts ...SqliteOption) *SqliteSink {
	s := &SqliteSink{
		dbPath:    dbPath,
		batchRows: defaultBatchRows,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "sqlite_sink"), slog.String("db", dbPath))
	return s
}

var errSinkClosed = errors.New("sqlite sink is closed")

func (s *SqliteSink) getDB() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errSinkClosed
	}
	if s.db != nil {
		return s.db, nil
	}

	if dir := filepath.Dir(s.dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	s.db = db
	return db, nil
}

// Write replaces timeseries_raw, interpolated and run_stats with the contents
// of result. An empty result leaves three empty tables.
func (s *SqliteSink) Write(ctx context.Context, result *dataprocessing.Result) (err error) {
	if result == nil || result.Schema == nil {
		return errors.New("sqlite sink: result has no schema")
	}

	db, err := s.getDB()
	if err != nil {
		return fmt.Errorf("getting connection: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer rollbackWithError(tx, &committed, &err)

	schema := result.Schema
	ddl := []string{
		dropTableSQL(dataprocessing.TableTimeseriesRaw),
		dropTableSQL(dataprocessing.TableInterpolated),
		dropTableSQL(dataprocessing.TableRunStats),
		createRawSQL,
		createInterpolatedSQL(schema),
		createRunStatsSQL(schema),
	}
	for _, stmt := range ddl {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating tables: %w", err)
		}
	}

	rawRows := 0
	if rawRows, err = s.insertRaw(ctx, tx, result.Samples); err != nil {
		return err
	}
	featureRows := 0
	if featureRows, err = s.insertInterpolated(ctx, tx, schema, result.Features); err != nil {
		return err
	}
	if err = s.insertRunStats(ctx, tx, schema, result.Stats); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	committed = true

	s.logger.InfoContext(ctx, "results written",
		slog.String("raw_rows", humanize.Comma(int64(rawRows))),
		slog.String("interpolated_rows", humanize.Comma(int64(featureRows))),
		slog.Int("runs", len(result.Stats)))
	return nil
}

func (s *SqliteSink) insertRaw(ctx context.Context, tx *sql.Tx, samples []domain.RawSample) (int, error) {
	b := newBatcher(tx, dataprocessing.TableTimeseriesRaw, dataprocessing.RawColumns, s.batchRows)
	for _, smp := range samples {
		if err := b.add(ctx, int64(smp.Run), smp.Robot, string(smp.Sensor), string(smp.Field), smp.Time, smp.TimeMs, smp.Value); err != nil {
			return 0, err
		}
	}
	return len(samples), b.flush(ctx)
}

func (s *SqliteSink) insertInterpolated(ctx context.Context, tx *sql.Tx, schema *dataprocessing.FeatureSchema, runs []dataprocessing.FeatureRun) (int, error) {
	b := newBatcher(tx, dataprocessing.TableInterpolated, schema.InterpolatedColumns(), s.batchRows)
	n := 0
	for _, run := range runs {
		for _, row := range run.Rows {
			values := make([]interface{}, 0, len(row.Values)+2)
			values = append(values, int64(row.Run), row.TimeMs)
			for _, v := range row.Values {
				values = append(values, v)
			}
			if err := b.add(ctx, values...); err != nil {
				return 0, err
			}
			n++
		}
	}
	return n, b.flush(ctx)
}

func (s *SqliteSink) insertRunStats(ctx context.Context, tx *sql.Tx, schema *dataprocessing.FeatureSchema, stats []domain.RunStats) error {
	b := newBatcher(tx, dataprocessing.TableRunStats, schema.RunStatsColumns(), s.batchRows)
	for _, st := range stats {
		values := []interface{}{int64(st.Run), st.StartMs, st.EndMs, st.DurationMs}
		for _, d := range schema.Distances(st) {
			values = append(values, d)
		}
		if err := b.add(ctx, values...); err != nil {
			return err
		}
	}
	return b.flush(ctx)
}

// ReadRunStats returns the stored run statistics ordered by run id. Distance
// columns are matched to robots by their total_distance_ suffix. Before the
// first Write there is nothing to read and the result is empty.
func (s *SqliteSink) ReadRunStats(ctx context.Context) (stats []domain.RunStats, err error) {
	db, err := s.getDB()
	if err != nil {
		return nil, fmt.Errorf("getting connection: %w", err)
	}

	var tables int
	if err = db.QueryRowContext(ctx, tableExistsSQL, dataprocessing.TableRunStats).Scan(&tables); err != nil {
		return nil, fmt.Errorf("checking run stats table: %w", err)
	}
	if tables == 0 {
		return nil, nil
	}

	rows, err := db.QueryContext(ctx, selectRunStatsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying run stats: %w", err)
	}
	defer closeWithError(rows, &err)

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	var robots []string
	for _, c := range cols[4:] {
		robots = append(robots, strings.TrimPrefix(c, "total_distance_"))
	}

	for rows.Next() {
		st := domain.RunStats{Robots: robots, TotalDistance: make([]float64, len(robots))}
		var run int64
		dest := []interface{}{&run, &st.StartMs, &st.EndMs, &st.DurationMs}
		for i := range st.TotalDistance {
			dest = append(dest, &st.TotalDistance[i])
		}
		if err = rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning run stats: %w", err)
		}
		st.Run = domain.RunID(run)
		stats = append(stats, st)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run stats: %w", err)
	}
	return stats, nil
}

// Ping opens the database if needed and checks that it answers
func (s *SqliteSink) Ping(ctx context.Context) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

// Close releases the database connection. It is safe to call Close more
// than once, and before the database was ever opened. After Close every
// operation fails.
func (s *SqliteSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// batcher accumulates rows and flushes them as one multi-row INSERT
type batcher struct {
	tx      *sql.Tx
	prefix  string
	group   string
	width   int
	maxRows int
	rows    int
	values  []interface{}
}

func newBatcher(tx *sql.Tx, table string, columns []string, batchRows int) *batcher {
	prefix, group := insertPrefix(table, columns)
	maxRows := batchRows
	if limit := maxVariables / len(columns); maxRows > limit {
		maxRows = limit
	}
	return &batcher{
		tx:      tx,
		prefix:  prefix,
		group:   group,
		width:   len(columns),
		maxRows: maxRows,
		values:  make([]interface{}, 0, maxRows*len(columns)),
	}
}

func (b *batcher) add(ctx context.Context, values ...interface{}) error {
	if len(values) != b.width {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), b.width)
	}
	b.values = append(b.values, values...)
	b.rows++
	if b.rows >= b.maxRows {
		return b.flush(ctx)
	}
	return nil
}

func (b *batcher) flush(ctx context.Context) error {
	if b.rows == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(b.prefix)
	for i := 0; i < b.rows; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.group)
	}

	if _, err := b.tx.ExecContext(ctx, sb.String(), b.values...); err != nil {
		return fmt.Errorf("batch inserting: %w", err)
	}
	b.values = b.values[:0]
	b.rows = 0
	return nil
}

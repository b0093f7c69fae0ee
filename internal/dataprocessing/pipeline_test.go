package dataprocessing

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robokin/internal/validation"
	"robokin/pkg/contracts/domain"
)

var header = []string{"run_uuid", "robot_id", "sensor_type", "field", "time", "value"}

func ts(ms int64) string {
	return fmt.Sprintf("2023-01-01T00:00:%02d.%03dZ", ms/1000, ms%1000)
}

func newTestPipeline(opts ...Option) *Pipeline {
	v := validation.NewSchemaValidator(validation.DefaultSchema(), nil)
	return NewPipeline(DefaultFeatureSchema(), v, opts...)
}

func featureIndex(t *testing.T, s *FeatureSchema, name string) int {
	t.Helper()
	for i, n := range s.Names() {
		if n == name {
			return i
		}
	}
	t.Fatalf("no feature column %s", name)
	return -1
}

func TestPipeline_ReferenceScenario(t *testing.T) {
	table := &domain.Table{Header: header, Rows: [][]string{
		{"1", "1", "encoder", "x", ts(0), "0"},
		{"1", "1", "encoder", "y", ts(0), "0"},
		{"1", "1", "encoder", "y", ts(20), "0"},
		{"1", "1", "encoder", "x", ts(40), "4"},
		{"1", "1", "encoder", "y", ts(40), "0"},
		{"1", "2", "encoder", "x", ts(0), "1"},
		{"1", "9", "encoder", "x", ts(0), "1"},
		{"1", "1", "encoder", "x", "yesterday", "1"},
	}}

	p := newTestPipeline()
	result, err := p.Run(context.Background(), table)
	require.NoError(t, err)

	assert.False(t, result.Empty())
	assert.Equal(t, domain.DropReport{"robot_id.accepted_values": 1, DropRuleTimeFormat: 1}, result.Drops)

	require.Len(t, result.Features, 1)
	rows := result.Features[0].Rows
	require.Len(t, rows, 3)

	s := p.Schema()
	at := func(i int, name string) float64 { return rows[i].Values[featureIndex(t, s, name)] }

	assert.Equal(t, 2.0, at(1, "x_1"))
	assert.InDelta(t, 2.0, at(1, "dx_1"), 1e-9)
	assert.InDelta(t, 100.0, at(1, "vx_1"), 1e-9)
	assert.InDelta(t, 2.0, at(2, "dx_1"), 1e-9)
	assert.InDelta(t, 100.0, at(2, "vx_1"), 1e-9)
	assert.InDelta(t, 0.0, at(2, "ax_1"), 1e-9)

	for i := range rows {
		assert.Equal(t, 0.0, at(i, "fx_2"))
		assert.Equal(t, 0.0, at(i, "f2"))
		assert.Equal(t, 1.0, at(i, "x_2"))
	}

	for _, name := range []string{"dx_1", "vx_1", "ax_1", "dy_2", "d1", "v2", "a1"} {
		assert.Equal(t, 0.0, at(0, name), name)
	}

	require.Len(t, result.Stats, 1)
	stats := result.Stats[0]
	assert.Equal(t, int64(40), stats.DurationMs)
	d1, _ := stats.DistanceFor("1")
	assert.InDelta(t, 4.0, d1, 1e-9)
}

func TestPipeline_EmptyDatasetIsNotAnError(t *testing.T) {
	table := &domain.Table{Header: header, Rows: [][]string{
		{"1", "5", "encoder", "x", ts(0), "0"},
		{"1", "1", "gyro", "x", ts(0), "0"},
	}}

	result, err := newTestPipeline().Run(context.Background(), table)
	require.NoError(t, err)

	assert.True(t, result.Empty())
	assert.Empty(t, result.Features)
	assert.Empty(t, result.Stats)
	assert.Zero(t, result.FeatureRowCount())
	assert.Equal(t, 2, result.Drops.Total())
}

func TestPipeline_MissingColumnIsFatal(t *testing.T) {
	table := &domain.Table{Header: []string{"run_uuid", "value"}}
	_, err := newTestPipeline().Run(context.Background(), table)
	assert.ErrorIs(t, err, domain.ErrMissingColumn)
}

func TestPipeline_DuplicatePolicyError(t *testing.T) {
	table := &domain.Table{Header: header, Rows: [][]string{
		{"1", "1", "encoder", "x", ts(0), "0"},
		{"1", "1", "encoder", "x", ts(0), "1"},
	}}

	_, err := newTestPipeline(WithDuplicatePolicy(DuplicatePolicyError)).Run(context.Background(), table)
	assert.ErrorIs(t, err, ErrDuplicateCell)
}

func TestPipeline_ConcurrencyDoesNotChangeResult(t *testing.T) {
	table := randomTable(rand.New(rand.NewSource(7)), 12, 40)

	sequential, err := newTestPipeline(WithMaxConcurrency(1)).Run(context.Background(), table)
	require.NoError(t, err)
	parallel, err := newTestPipeline(WithMaxConcurrency(8)).Run(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, sequential.Features, parallel.Features)
	assert.Equal(t, sequential.Stats, parallel.Stats)
}

func TestPipeline_Properties(t *testing.T) {
	p := newTestPipeline()
	result, err := p.Run(context.Background(), randomTable(rand.New(rand.NewSource(99)), 6, 60))
	require.NoError(t, err)

	s := p.Schema()
	require.Len(t, result.Stats, len(result.Features))

	for i, run := range result.Features {
		require.NotEmpty(t, run.Rows)

		// rows are time ordered and dense
		for j := 1; j < len(run.Rows); j++ {
			assert.Less(t, run.Rows[j-1].TimeMs, run.Rows[j].TimeMs)
		}

		// first sample has zero derivatives
		first := run.Rows[0].Values
		for k := s.WideWidth(); k < s.Width(); k++ {
			name := s.Names()[k]
			if name == "f1" || name == "f2" {
				continue
			}
			assert.Equal(t, 0.0, first[k], "run %s column %s", run.Run, name)
		}

		stats := result.Stats[i]
		assert.Equal(t, run.Run, stats.Run)
		assert.Equal(t, stats.EndMs-stats.StartMs, stats.DurationMs)
		for ri := range s.Robots() {
			var sum float64
			for _, row := range run.Rows {
				sum += row.Values[s.DistanceIndex(ri)]
			}
			assert.InDelta(t, sum, stats.TotalDistance[ri], 1e-9)
		}
	}
}

// randomTable generates runs with sparse, irregularly timed readings
func randomTable(rng *rand.Rand, runs, steps int) *domain.Table {
	table := &domain.Table{Header: header}
	fields := []struct {
		sensor string
		field  string
	}{
		{"encoder", "x"}, {"encoder", "y"}, {"encoder", "z"},
		{"load_cell", "fx"}, {"load_cell", "fy"}, {"load_cell", "fz"},
	}

	for run := 1; run <= runs; run++ {
		var ms int64
		for step := 0; step < steps; step++ {
			ms += int64(1 + rng.Intn(40))
			for _, robot := range []string{"1", "2"} {
				for _, f := range fields {
					if rng.Intn(4) != 0 {
						continue
					}
					table.Rows = append(table.Rows, []string{
						fmt.Sprint(run), robot, f.sensor, f.field, ts(ms),
						fmt.Sprintf("%.3f", rng.NormFloat64()*10),
					})
				}
			}
		}
	}
	return table
}

package dataprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robokin/pkg/contracts/domain"
)

// singleRobotSchema has one robot, axes x and y, and force fx
func singleRobotSchema(t *testing.T) *FeatureSchema {
	t.Helper()
	s, err := NewFeatureSchema([]string{"1"}, []domain.Field{"x", "y"}, []domain.Field{"fx"})
	require.NoError(t, err)
	return s
}

func denseRow(ms int64, values ...float64) domain.WideRow {
	present := make([]bool, len(values))
	for i := range present {
		present[i] = true
	}
	return domain.WideRow{Run: 1, TimeMs: ms, Values: values, Present: present}
}

func TestDerive(t *testing.T) {
	s := singleRobotSchema(t)
	// columns: x_1 y_1 fx_1 | dx vx ax dy vy ay | d1 v1 a1 f1
	part := RunPartition{Run: 1, Rows: []domain.WideRow{
		denseRow(0, 0, 0, 3),
		denseRow(100, 3, 4, 4),
		denseRow(200, 9, 12, 0),
	}}

	got, err := Derive(s, part)
	require.NoError(t, err)
	require.Len(t, got.Rows, 3)
	require.Len(t, got.Rows[0].Values, s.Width())

	assert.Equal(t, []float64{0, 0, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0, 3}, got.Rows[0].Values)

	r1 := got.Rows[1].Values
	assert.InDeltaSlice(t, []float64{3, 30, 0, 4, 40, 0}, r1[3:9], 1e-9)
	assert.InDeltaSlice(t, []float64{5, 50, 0, 4}, r1[9:], 1e-9)

	r2 := got.Rows[2].Values
	assert.InDeltaSlice(t, []float64{6, 60, 300, 8, 80, 400}, r2[3:9], 1e-9)
	assert.InDeltaSlice(t, []float64{10, 100, 500, 0}, r2[9:], 1e-9)
}

func TestDerive_DuplicateTimestampIsZero(t *testing.T) {
	s := singleRobotSchema(t)
	part := RunPartition{Run: 1, Rows: []domain.WideRow{
		denseRow(0, 0, 0, 0),
		denseRow(10, 1, 0, 0),
		denseRow(10, 2, 0, 0),
		denseRow(20, 3, 0, 0),
	}}

	got, err := Derive(s, part)
	require.NoError(t, err)

	for _, row := range got.Rows {
		for i, v := range row.Values {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "column %d not finite", i)
		}
	}
	// zero dt: distance kept, velocity and acceleration zeroed
	assert.Equal(t, 1.0, got.Rows[2].Values[3])
	assert.Equal(t, 0.0, got.Rows[2].Values[4])
	assert.Equal(t, 0.0, got.Rows[2].Values[5])
	// next step sees the sanitized velocity
	assert.InDelta(t, 100.0, got.Rows[3].Values[4], 1e-9)
	assert.InDelta(t, 10000.0, got.Rows[3].Values[5], 1e-9)
}

func TestDerive_RejectsSparseRows(t *testing.T) {
	s := singleRobotSchema(t)
	row := denseRow(0, 1, 2, 3)
	row.Present[1] = false

	_, err := Derive(s, RunPartition{Run: 1, Rows: []domain.WideRow{row}})
	assert.ErrorIs(t, err, ErrSparseInput)

	_, err = Derive(s, RunPartition{Run: 1, Rows: []domain.WideRow{denseRow(0, 1)}})
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	s := singleRobotSchema(t)
	part := RunPartition{Run: 4, Rows: []domain.WideRow{
		denseRow(1000, 0, 0, 0),
		denseRow(1100, 3, 4, 0),
		denseRow(1300, 6, 8, 0),
	}}
	run, err := Derive(s, part)
	require.NoError(t, err)

	stats := Summarize(s, run)

	assert.Equal(t, domain.RunID(4), stats.Run)
	assert.Equal(t, int64(1000), stats.StartMs)
	assert.Equal(t, int64(1300), stats.EndMs)
	assert.Equal(t, stats.EndMs-stats.StartMs, stats.DurationMs)
	d, ok := stats.DistanceFor("1")
	require.True(t, ok)
	assert.InDelta(t, 10.0, d, 1e-9)
}

func TestSummarize_EmptyRun(t *testing.T) {
	s := DefaultFeatureSchema()
	stats := Summarize(s, FeatureRun{Run: 9})
	assert.Equal(t, domain.RunID(9), stats.Run)
	assert.Zero(t, stats.DurationMs)
	assert.Equal(t, []float64{0, 0}, stats.TotalDistance)
}

package dataprocessing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"robokin/pkg/contracts/domain"
)

func TestPartition(t *testing.T) {
	rows := []domain.WideRow{
		wideRow(3, 0, 1, map[int]float64{0: 1}),
		wideRow(1, 10, 1, nil),
		wideRow(3, 5, 1, nil),
		wideRow(1, 0, 1, nil),
	}

	parts := Partition(rows)

	require.Len(t, parts, 2)
	assert.Equal(t, domain.RunID(1), parts[0].Run)
	assert.Equal(t, domain.RunID(3), parts[1].Run)
	assert.Equal(t, int64(10), parts[0].Rows[0].TimeMs)
	assert.Equal(t, int64(0), parts[0].Rows[1].TimeMs)
	require.Len(t, parts[1].Rows, 2)

	// partitions own their rows
	parts[1].Rows[0].Values[0] = 99
	assert.Equal(t, 1.0, rows[0].Values[0])
}

func TestMapPartitions_KeepsOrderAndBoundsConcurrency(t *testing.T) {
	in := []int{1, 2, 3, 4, 5, 6, 7, 8}
	var running, peak int32

	out, err := MapPartitions(context.Background(), in, 2, func(_ context.Context, n int) (int, error) {
		cur := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if cur <= p || atomic.CompareAndSwapInt32(&peak, p, cur) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		atomic.AddInt32(&running, -1)
		return n * n, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 9, 16, 25, 36, 49, 64}, out)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestMapPartitions_Error(t *testing.T) {
	boom := errors.New("boom")
	_, err := MapPartitions(context.Background(), []int{1, 2, 3}, 0, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})
	assert.ErrorIs(t, err, boom)
}

package dataprocessing

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"robokin/pkg/contracts/domain"
)

// RunPartition holds the wide rows of a single run
type RunPartition struct {
	Run  domain.RunID
	Rows []domain.WideRow
}

// FeatureRun holds the dense feature rows of a single run, sorted by time
type FeatureRun struct {
	Run  domain.RunID
	Rows []domain.FeatureRow
}

// Partition splits rows by run. Partitions are ordered by run id and keep the
// input order of their rows. Rows are deep-copied so partitions share no
// memory with the input or with each other.
func Partition(rows []domain.WideRow) []RunPartition {
	byRun := make(map[domain.RunID]int)
	var parts []RunPartition

	for _, row := range rows {
		i, ok := byRun[row.Run]
		if !ok {
			i = len(parts)
			byRun[row.Run] = i
			parts = append(parts, RunPartition{Run: row.Run})
		}
		parts[i].Rows = append(parts[i].Rows, row.Clone())
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].Run < parts[j].Run })
	return parts
}

// MapPartitions applies fn to every element of in concurrently, at most limit
// at a time (limit <= 0 means unbounded). Each task writes only its own slot of
// the output, so results keep input order. The first error cancels the rest.
func MapPartitions[In, Out any](ctx context.Context, in []In, limit int, fn func(context.Context, In) (Out, error)) ([]Out, error) {
	out := make([]Out, len(in))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i := range in {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := fn(ctx, in[i])
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

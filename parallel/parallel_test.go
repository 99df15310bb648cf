package parallel

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartition_Covers(t *testing.T) {
	t.Parallel()

	for _, height := range []int{0, 1, 2, 3, 7, 16, 100, 257} {
		for workers := 1; workers <= height+3; workers++ {
			ranges := Partition(height, workers)
			require.Len(t, ranges, workers, "height=%d workers=%d", height, workers)

			next := 0
			for i, r := range ranges {
				assert.Equal(t, next, r.Start, "height=%d workers=%d range=%d", height, workers, i)
				assert.LessOrEqual(t, r.Start, r.End)
				next = r.End
			}
			assert.Equal(t, height, next, "height=%d workers=%d", height, workers)
		}
	}
}

func TestPartition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		rows    int
		workers int
		want    []RowRange
	}{
		{name: "even", rows: 6, workers: 3, want: []RowRange{{0, 2}, {2, 4}, {4, 6}}},
		{name: "ceil", rows: 10, workers: 4, want: []RowRange{{0, 3}, {3, 6}, {6, 9}, {9, 10}}},
		{name: "exhausted", rows: 5, workers: 4, want: []RowRange{{0, 2}, {2, 4}, {4, 5}, {5, 5}}},
		{name: "more workers than rows", rows: 2, workers: 4, want: []RowRange{{0, 1}, {1, 2}, {2, 2}, {2, 2}}},
		{name: "no rows", rows: 0, workers: 2, want: []RowRange{{0, 0}, {0, 0}}},
		{name: "zero workers", rows: 3, workers: 0, want: []RowRange{{0, 3}}},
		{name: "negative workers", rows: 3, workers: -2, want: []RowRange{{0, 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Partition(tt.rows, tt.workers))
		})
	}
}

func TestRowRange(t *testing.T) {
	t.Parallel()

	r := RowRange{Start: 2, End: 5}
	assert.Equal(t, 3, r.Len())
	assert.False(t, r.Empty())
	assert.True(t, RowRange{Start: 4, End: 4}.Empty())
	assert.Equal(t, "[2, 5)", r.String())
}

func TestRun_VisitsEveryRowOnce(t *testing.T) {
	t.Parallel()

	const rows = 103
	var hits [rows]atomic.Int32
	err := Rows(rows, 8, func(r RowRange) error {
		for y := r.Start; y < r.End; y++ {
			hits[y].Add(1)
		}
		return nil
	})
	require.NoError(t, err)
	for y := range hits {
		assert.EqualValues(t, 1, hits[y].Load(), "row %d", y)
	}
}

func TestRows_HugeWorkerCount(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var hits [4]atomic.Int32
	err := Rows(4, math.MaxInt, func(r RowRange) error {
		calls.Add(1)
		for y := r.Start; y < r.End; y++ {
			hits[y].Add(1)
		}
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 4, calls.Load())
	for y := range hits {
		assert.EqualValues(t, 1, hits[y].Load(), "row %d", y)
	}

	require.NoError(t, Rows(0, math.MaxInt, func(RowRange) error {
		t.Error("no rows, no calls")
		return nil
	}))
}

func TestPartition_NoOverflow(t *testing.T) {
	t.Parallel()

	ranges := Partition(math.MaxInt, 3)
	require.Len(t, ranges, 3)
	per := math.MaxInt/3 + 1
	assert.Equal(t, RowRange{Start: 0, End: per}, ranges[0])
	assert.Equal(t, RowRange{Start: per, End: 2 * per}, ranges[1])
	assert.Equal(t, RowRange{Start: 2 * per, End: math.MaxInt}, ranges[2])
}

func TestRun_SkipsEmptyRanges(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	err := Run(Partition(2, 5), func(r RowRange) error {
		assert.False(t, r.Empty())
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestRun_FirstErrorInRangeOrder(t *testing.T) {
	t.Parallel()

	errFirst := errors.New("first")
	errLast := errors.New("last")
	ranges := Partition(4, 4)

	var finished atomic.Int32
	err := Run(ranges, func(r RowRange) error {
		defer finished.Add(1)
		switch r.Start {
		case 1:
			// fails later than the last range but still wins
			time.Sleep(20 * time.Millisecond)
			return errFirst
		case 3:
			return errLast
		}
		return nil
	})
	assert.ErrorIs(t, err, errFirst)
	assert.NotErrorIs(t, err, errLast)
	assert.EqualValues(t, 4, finished.Load(), "all workers joined before returning")
}

func TestRun_WaitsForSlowWorkersOnFailure(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	done := map[int]bool{}
	err := Rows(3, 3, func(r RowRange) error {
		if r.Start == 0 {
			return errors.New("boom")
		}
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		done[r.Start] = true
		mu.Unlock()
		return nil
	})
	require.Error(t, err)
	assert.True(t, done[1])
	assert.True(t, done[2])
}

func TestRun_RecoversPanics(t *testing.T) {
	t.Parallel()

	err := Rows(4, 2, func(r RowRange) error {
		if r.Start > 0 {
			panic("index out of range")
		}
		return nil
	})
	assert.ErrorIs(t, err, ErrWorkerFailed)
	assert.Contains(t, err.Error(), "index out of range")
}

func TestPool(t *testing.T) {
	t.Parallel()

	for _, workers := range []int{1, 4} {
		pool := Start(workers)
		assert.Equal(t, workers, pool.Workers())

		var sum atomic.Int64
		for i := 1; i <= 100; i++ {
			pool.Submit(func() { sum.Add(int64(i)) })
		}
		pool.Wait()
		pool.Wait()
		assert.EqualValues(t, 5050, sum.Load(), "workers=%d", workers)
	}
}

func TestPool_DefaultWorkers(t *testing.T) {
	t.Parallel()

	pool := Start(0)
	defer pool.Wait()
	assert.GreaterOrEqual(t, pool.Workers(), 1)
}

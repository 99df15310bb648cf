package parallel

import (
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

var ErrWorkerFailed = errors.New("worker failed")

// RangeFunc processes the destination rows of a single RowRange.
type RangeFunc func(RowRange) error

// Run calls fn once per non-empty range, each on its own goroutine, and
// blocks until all of them have returned. A failing worker does not stop the
// others; once everything is joined the first failure in range order is
// returned. Panics inside fn are reported as ErrWorkerFailed.
func Run(ranges []RowRange, fn RangeFunc) error {
	errs := make([]error, len(ranges))

	var g errgroup.Group
	for i, r := range ranges {
		if r.Empty() {
			continue
		}
		g.Go(func() error {
			errs[i] = call(fn, r)
			return errs[i]
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("rows %s (worker %d): %w", ranges[i], i, err)
		}
	}
	return nil
}

// Rows partitions totalRows across workers and runs fn over the result.
// Workers beyond one per row would only get empty ranges, so at most
// totalRows goroutines are started.
func Rows(totalRows, workers int, fn RangeFunc) error {
	return Run(Partition(totalRows, min(workers, max(totalRows, 1))), fn)
}

func call(fn RangeFunc, r RowRange) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrWorkerFailed, rec)
		}
	}()
	return fn(r)
}

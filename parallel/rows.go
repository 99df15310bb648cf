package parallel

import "fmt"

// RowRange is the half-open row interval [Start, End) handled by one worker.
type RowRange struct {
	Start int
	End   int
}

func (r RowRange) Len() int { return r.End - r.Start }

func (r RowRange) Empty() bool { return r.End <= r.Start }

func (r RowRange) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// Partition splits [0, totalRows) into exactly workers contiguous ranges of
// ceil(totalRows/workers) rows. Trailing ranges shrink to stay inside the
// image and, once the rows run out, are empty at totalRows.
func Partition(totalRows, workers int) []RowRange {
	workers = max(workers, 1)
	totalRows = max(totalRows, 0)

	per := totalRows / workers
	if totalRows%workers != 0 {
		per++
	}
	ranges := make([]RowRange, workers)
	start := 0
	for i := range ranges {
		end := start + min(per, totalRows-start)
		ranges[i] = RowRange{Start: start, End: end}
		start = end
	}
	return ranges
}

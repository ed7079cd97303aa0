package loadgen

import "fmt"

// RecordRange is an inclusive range of dataset indexes owned by one worker.
// A range with Start > End is empty.
type RecordRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Len returns the number of records in the range.
func (r RecordRange) Len() int {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start + 1
}

// Empty reports whether the range holds no records.
func (r RecordRange) Empty() bool {
	return r.Start > r.End
}

// Contains reports whether index i lies in the range.
func (r RecordRange) Contains(i int) bool {
	return i >= r.Start && i <= r.End
}

func (r RecordRange) String() string {
	return fmt.Sprintf("%d...%d", r.Start, r.End)
}

// Partition splits totalRecords indexes into workerCount contiguous ranges.
//
// Worker i gets [floor(i*M/N), floor((i+1)*M/N) - 1]. The ranges cover
// [0, M) exactly once and their sizes differ by at most one. When there are
// fewer records than workers some ranges are empty.
//
// Boundaries are computed with integer arithmetic; the float form
// int(i * (M/N)) can land one below the true floor (M=1, N=49) and leave
// the last record unassigned.
func Partition(totalRecords, workerCount int) []RecordRange {
	if workerCount < 1 {
		panic(fmt.Sprintf("loadgen: worker count must be >= 1, got %d", workerCount))
	}
	if totalRecords < 0 {
		panic(fmt.Sprintf("loadgen: record count must be >= 0, got %d", totalRecords))
	}

	ranges := make([]RecordRange, workerCount)
	for i := range ranges {
		ranges[i] = RecordRange{
			Start: boundary(i, totalRecords, workerCount),
			End:   boundary(i+1, totalRecords, workerCount) - 1,
		}
	}
	return ranges
}

func boundary(i, total, workers int) int {
	return int(int64(i) * int64(total) / int64(workers))
}

package history

import "fmt"

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// SplitRange splits a block range into batches of size batchSize.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	ranges := make([]BlockRange, 0)
	start := from
	for start <= to {
		remaining := to - start + 1
		var end uint64
		if remaining <= batchSize {
			end = to
		} else {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return ranges, nil
}

// Heights returns the heights in r that lie on the sampling grid anchored at
// origin with the given step.
func (r BlockRange) Heights(origin, step uint64) []uint64 {
	if step == 0 {
		step = 1
	}
	start := r.From
	if start < origin {
		start = origin
	}
	if rem := (start - origin) % step; rem != 0 {
		start += step - rem
	}

	var heights []uint64
	for h := start; h <= r.To; h += step {
		heights = append(heights, h)
		if h+step < h {
			break
		}
	}
	return heights
}

// Package edit builds ordered, range-addressed edit batches against a
// document's flattened offset space.
package edit

import (
	"errors"
	"fmt"
)

// ErrInvalidRange reports a range that violates its shape or bounds.
var ErrInvalidRange = errors.New("invalid range")

// Range addresses either an insertion point (no end) or the half-open
// interval [start, end). The zero value is the insertion point 0.
type Range struct {
	start   int
	end     int
	bounded bool
}

// Point returns an insertion point at start.
func Point(start int) (Range, error) {
	if start < 0 {
		return Range{}, fmt.Errorf("%w: negative start %d", ErrInvalidRange, start)
	}
	return Range{start: start}, nil
}

// Span returns the interval [start, end).
func Span(start, end int) (Range, error) {
	if start < 0 {
		return Range{}, fmt.Errorf("%w: negative start %d", ErrInvalidRange, start)
	}
	if end < start {
		return Range{}, fmt.Errorf("%w: end %d before start %d", ErrInvalidRange, end, start)
	}
	return Range{start: start, end: end, bounded: true}, nil
}

// Start is the first offset of the range.
func (r Range) Start() int { return r.start }

// End returns the exclusive end offset and whether the range has one.
func (r Range) End() (int, bool) { return r.end, r.bounded }

// Len is end-start for a span and 0 for a point.
func (r Range) Len() int {
	if !r.bounded {
		return 0
	}
	return r.end - r.start
}

func (r Range) String() string {
	if !r.bounded {
		return fmt.Sprintf("[%d]", r.start)
	}
	return fmt.Sprintf("[%d,%d)", r.start, r.end)
}

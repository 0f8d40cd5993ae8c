package timeline

import "fmt"

// OutOfRangeError is returned by Split when the cut point does not fall
// strictly inside a clip. The timeline is left unchanged.
type OutOfRangeError struct {
	At       float64
	Duration float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("split point %v is not strictly inside a clip of timeline [0, %v]", e.At, e.Duration)
}

// IndexOutOfRangeError is returned for a clip index that does not exist.
type IndexOutOfRangeError struct {
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("clip index %d out of range [0, %d)", e.Index, e.Len)
}

// InvalidTimelineError reports a clip list that breaks the timeline invariant.
type InvalidTimelineError struct {
	Reason string
}

func (e *InvalidTimelineError) Error() string {
	return "invalid timeline: " + e.Reason
}

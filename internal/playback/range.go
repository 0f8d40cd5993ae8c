package playback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMalformedRange = errors.New("malformed range header")
	ErrUnsatisfiable  = errors.New("range not satisfiable")
)

// Span is an inclusive byte span of the served file.
type Span struct {
	First int64
	Last  int64
}

// Length is the number of bytes in the span.
func (s Span) Length() int64 {
	return s.Last - s.First + 1
}

// ContentRange formats the Content-Range header value for a file of size bytes.
func (s Span) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", s.First, s.Last, size)
}

// ParseRange resolves a Range header against a file of size bytes. A nil span
// with a nil error means the whole file. Only the first span of a multi-range
// request is honored; preview players never ask for more than one.
func ParseRange(header string, size int64) (*Span, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}
	set, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, ErrMalformedRange
	}
	if first, _, multi := strings.Cut(set, ","); multi {
		set = first
	}
	from, to, ok := strings.Cut(strings.TrimSpace(set), "-")
	if !ok {
		return nil, ErrMalformedRange
	}

	if from == "" {
		n, err := strconv.ParseInt(to, 10, 64)
		if err != nil || n <= 0 {
			return nil, ErrMalformedRange
		}
		if size == 0 {
			return nil, ErrUnsatisfiable
		}
		return &Span{First: max(size-n, 0), Last: size - 1}, nil
	}

	first, err := strconv.ParseInt(from, 10, 64)
	if err != nil || first < 0 {
		return nil, ErrMalformedRange
	}
	last := size - 1
	if to != "" {
		if last, err = strconv.ParseInt(to, 10, 64); err != nil {
			return nil, ErrMalformedRange
		}
	}
	if first >= size || first > last {
		return nil, ErrUnsatisfiable
	}
	return &Span{First: first, Last: min(last, size-1)}, nil
}

// Package rangeserve serves a rangeio.StreamRange over HTTP, handling the
// Range/If-Range negotiation and emitting the headers a byte-range-capable
// client expects.
package rangeserve

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gaby/zipstream/internal/rangeio"
)

// ErrInvalidRangeUnit means the header did not start with "bytes=".
var ErrInvalidRangeUnit = errors.New("rangeserve: invalid range unit")

// ErrInvalidRange means the header had the right unit but no parseable body.
var ErrInvalidRange = errors.New("rangeserve: invalid range")

// ErrInvalidRangeNumber means a numeric token in the header failed to parse.
var ErrInvalidRangeNumber = errors.New("rangeserve: invalid range number")

// ParseRange parses a single HTTP Range header value against totalLen.
//
// It returns (range, true, nil) for a satisfiable single range, (Range{},
// false, nil) when the header names multiple ranges or is well-formed but
// unsatisfiable against totalLen — all cases where the caller should fall
// back to serving the full body as 200 OK. It returns a non-nil error for a
// header that is not a syntactically valid Range header at all, including
// an empty string.
func ParseRange(header string, totalLen uint64) (rangeio.Range, bool, error) {
	if !strings.HasPrefix(header, "bytes=") {
		return rangeio.Range{}, false, ErrInvalidRangeUnit
	}
	spec := strings.TrimSpace(strings.TrimPrefix(header, "bytes="))

	if strings.Contains(spec, ",") {
		// Multiple ranges are unsupported, but the header is legal; the
		// caller should just ignore it and serve the full body.
		return rangeio.Range{}, false, nil
	}

	switch {
	case strings.HasPrefix(spec, "-"):
		n, err := strconv.ParseUint(spec[1:], 10, 64)
		if err != nil {
			return rangeio.Range{}, false, ErrInvalidRangeNumber
		}
		if n >= totalLen {
			return rangeio.Range{}, false, nil
		}
		return rangeio.Range{Start: totalLen - n, End: totalLen}, true, nil

	case strings.HasSuffix(spec, "-"):
		s, err := strconv.ParseUint(spec[:len(spec)-1], 10, 64)
		if err != nil {
			return rangeio.Range{}, false, ErrInvalidRangeNumber
		}
		if s >= totalLen {
			return rangeio.Range{}, false, nil
		}
		return rangeio.Range{Start: s, End: totalLen}, true, nil

	default:
		h := strings.IndexByte(spec, '-')
		if h < 0 {
			return rangeio.Range{}, false, ErrInvalidRange
		}
		s, err := strconv.ParseUint(spec[:h], 10, 64)
		if err != nil {
			return rangeio.Range{}, false, ErrInvalidRangeNumber
		}
		e, err := strconv.ParseUint(spec[h+1:], 10, 64)
		if err != nil {
			return rangeio.Range{}, false, ErrInvalidRangeNumber
		}
		if e >= totalLen || s > e {
			return rangeio.Range{}, false, nil
		}
		return rangeio.Range{Start: s, End: e + 1}, true, nil
	}
}

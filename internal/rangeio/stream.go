package rangeio

import (
	"bytes"
	"context"
	"io"
)

// StreamRange is a sized, random-access byte source. Len is immutable for
// the life of the value; Open produces, for any r within [0, Len()], an
// io.ReadCloser yielding exactly r.Len() bytes. Two calls with the same r
// must yield byte-identical output. A remote-backed implementation may
// contact its service inside Open (objectstore.Object issues its ranged
// GET there); Concat calls a child's Open only when its reader reaches
// that child, so building a layout contacts no remote service.
type StreamRange interface {
	Len() uint64
	Open(ctx context.Context, r Range) (io.ReadCloser, error)
}

// Bytes is a StreamRange backed by an immutable in-memory buffer (used for
// local/central headers, trailers, and other small synthesized regions).
// Slicing a Go byte slice is already zero-copy and shares the backing
// array, so Bytes needs no extra reference-counting layer.
type Bytes []byte

// Len implements StreamRange.
func (b Bytes) Len() uint64 { return uint64(len(b)) }

// Open implements StreamRange. It is infallible and does no I/O.
func (b Bytes) Open(_ context.Context, r Range) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b[r.Start:r.End])), nil
}

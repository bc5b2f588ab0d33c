package rangeio

import (
	"context"
	"io"
	"testing"
)

func readAll(t *testing.T, s StreamRange, r Range) []byte {
	t.Helper()
	rc, err := s.Open(context.Background(), r)
	if err != nil {
		t.Fatalf("Open(%+v): %v", r, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return b
}

func TestConcatLen(t *testing.T) {
	c := NewConcat(Bytes("abc"), Bytes("de"), Bytes(""))
	if c.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", c.Len())
	}
}

func TestConcatEmpty(t *testing.T) {
	c := NewConcat()
	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", c.Len())
	}
	got := readAll(t, c, Range{0, 0})
	if len(got) != 0 {
		t.Fatalf("expected empty stream, got %q", got)
	}
}

// TestConcatSubsetLaw is the exhaustive test from spec §8 invariant 2:
// every subrange of the concatenation equals the same subrange of the
// full byte string.
func TestConcatSubsetLaw(t *testing.T) {
	c := NewConcat(Bytes("hello, "), Bytes(""), Bytes("wor"), Bytes("ld!"))
	full := readAll(t, c, Range{0, c.Len()})
	if string(full) != "hello, world!" {
		t.Fatalf("full = %q", full)
	}

	for start := uint64(0); start <= c.Len(); start++ {
		for end := start; end <= c.Len(); end++ {
			got := readAll(t, c, Range{start, end})
			want := full[start:end]
			if string(got) != string(want) {
				t.Errorf("stream_range(%d,%d) = %q, want %q", start, end, got, want)
			}
		}
	}
}

func TestConcatNested(t *testing.T) {
	inner := NewConcat(Bytes("AB"), Bytes("CD"))
	outer := NewConcat(Bytes("00"), inner, Bytes("99"))
	got := readAll(t, outer, Range{1, 7})
	if string(got) != "0ABCD9" {
		t.Fatalf("got %q", got)
	}
}

type erroringRange struct {
	err error
}

func (e erroringRange) Len() uint64 { return 4 }
func (e erroringRange) Open(context.Context, Range) (io.ReadCloser, error) {
	return nil, e.err
}

func TestConcatPropagatesChildOpenError(t *testing.T) {
	wantErr := io.ErrUnexpectedEOF
	c := NewConcat(Bytes("ab"), erroringRange{err: wantErr})
	rc, err := c.Open(context.Background(), Range{0, 6})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	buf := make([]byte, 6)
	n, err := io.ReadFull(rc, buf)
	if n != 2 {
		t.Fatalf("read %d bytes before error, want 2", n)
	}
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

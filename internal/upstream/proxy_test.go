package upstream

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// fakeS3 serves GetObject calls out of an in-memory map keyed by bucket/key,
// honoring the Range header the same way a real bucket would.
type fakeS3 struct {
	objects map[string]string // "bucket/key" -> contents
}

func (f fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	body, ok := f.objects[key]
	if !ok {
		return nil, &s3.NoSuchKey{}
	}
	data := []byte(body)

	start, end := uint64(0), uint64(len(data))
	if r := strings.TrimPrefix(aws.ToString(in.Range), "bytes="); r != "" {
		if s, e, ok := strings.Cut(r, "-"); ok {
			if sv, err := strconv.ParseUint(s, 10, 64); err == nil {
				if ev, err := strconv.ParseUint(e, 10, 64); err == nil {
					start, end = sv, ev+1
				}
			}
		}
	}
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	slice := data[start:end]
	n := int64(len(slice))
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(slice)), ContentLength: &n}, nil
}

func newTestProxy(t *testing.T, manifestJSON string, emitMarker bool) (*Proxy, *httptest.Server) {
	t.Helper()
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if emitMarker {
			w.Header().Set("X-Zip-Stream", "1")
		}
		w.Write([]byte(manifestJSON))
	}))

	cfg := Config{Upstream: upstreamSrv.URL, StripPrefix: "/archives", HeaderValue: "true"}
	s3c := fakeS3{objects: map[string]string{
		"bucket/foo.txt": "xx",
		"bucket/bar.txt": "ABC",
	}}
	p := NewProxy(cfg, upstreamSrv.Client(), s3c)
	return p, upstreamSrv
}

const testManifest = `{
  "filename": "archive.zip",
  "entries": [
    {"archive_name": "foo.txt", "source": "s3://bucket/foo.txt", "length": 2, "crc": 4175501327, "last_modified": "2006-11-10T15:40:56Z"},
    {"archive_name": "bar.txt", "source": "s3://bucket/bar.txt", "length": 3, "crc": 2743272264, "last_modified": "2018-12-06T20:15:59Z"}
  ]
}`

// TestE1FullDownload mirrors scenario E1: a two-entry manifest, no Range
// header, 32-bit layout; the body must be a valid ZIP.
func TestE1FullDownload(t *testing.T) {
	p, srv := newTestProxy(t, testManifest, true)
	defer srv.Close()

	req := httptest.NewRequest(http.MethodGet, "/archives/whatever.zip", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("got %d files, want 2", len(zr.File))
	}
}

// TestE3RangeWithMatchingETag mirrors scenario E3: a Range request whose
// If-Range equals the response's ETag gets a 206 with the requested slice.
func TestE3RangeWithMatchingETag(t *testing.T) {
	p, srv := newTestProxy(t, testManifest, true)
	defer srv.Close()

	full := httptest.NewRecorder()
	p.ServeHTTP(full, httptest.NewRequest(http.MethodGet, "/archives/whatever.zip", nil))
	etag := full.Header().Get("ETag")
	fullBody := full.Body.Bytes()

	req := httptest.NewRequest(http.MethodGet, "/archives/whatever.zip", nil)
	req.Header.Set("Range", "bytes=0-9")
	req.Header.Set("If-Range", etag)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusPartialContent {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got, want := rec.Body.Bytes(), fullBody[0:10]; !bytes.Equal(got, want) {
		t.Fatalf("body = %x, want %x", got, want)
	}
}

// TestE4RangeWithStaleETag mirrors scenario E4: If-Range mismatched against
// the current ETag falls back to a full 200 response.
func TestE4RangeWithStaleETag(t *testing.T) {
	p, srv := newTestProxy(t, testManifest, true)
	defer srv.Close()

	req := httptest.NewRequest(http.MethodGet, "/archives/whatever.zip", nil)
	req.Header.Set("Range", "bytes=0-9")
	req.Header.Set("If-Range", "stale-etag")
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

// TestE5MethodNotAllowed mirrors scenario E5.
func TestE5MethodNotAllowed(t *testing.T) {
	p, srv := newTestProxy(t, testManifest, true)
	defer srv.Close()

	req := httptest.NewRequest(http.MethodPost, "/archives/whatever.zip", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

// TestE6PrefixMiss mirrors scenario E6.
func TestE6PrefixMiss(t *testing.T) {
	p, srv := newTestProxy(t, testManifest, true)
	defer srv.Close()

	req := httptest.NewRequest(http.MethodGet, "/elsewhere/whatever.zip", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

// TestPassthroughWithoutMarker checks that a response lacking X-Zip-Stream
// is proxied through unchanged.
func TestPassthroughWithoutMarker(t *testing.T) {
	p, srv := newTestProxy(t, `{"hello":"world"}`, false)
	defer srv.Close()

	req := httptest.NewRequest(http.MethodGet, "/archives/whatever.json", nil)
	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != `{"hello":"world"}` {
		t.Fatalf("body = %q", got)
	}
}

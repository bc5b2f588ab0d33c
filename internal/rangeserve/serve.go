package rangeserve

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gaby/zipstream/internal/rangeio"
)

// Serve writes data to w in response to r, handling Range/If-Range
// negotiation, setting the standard byte-range response headers, and
// streaming the body through a terminal-status monitor. It never looks at
// data's contents beyond calling Len and Open; it performs no blocking
// work itself before the body is written.
func Serve(w http.ResponseWriter, r *http.Request, contentType, etag, filename string, data rangeio.StreamRange) {
	fullLen := data.Len()
	fullRange := rangeio.Range{Start: 0, End: fullLen}

	rng := fullRange
	partial := false

	if h := r.Header.Get("Range"); h != "" {
		ifRange := r.Header.Get("If-Range")
		if ifRange == "" || ifRange == etag {
			if parsed, ok, err := ParseRange(h, fullLen); err == nil && ok {
				rng = parsed
				partial = true
			}
		}
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, escapeFilename(filename)))

	if partial {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", rng.Start, rng.End-1, fullLen))
		w.Header().Set("Content-Length", fmt.Sprintf("%d", rng.Len()))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", rng.Len()))
		w.WriteHeader(http.StatusOK)
	}

	if r.Method == http.MethodHead {
		return
	}

	rc, err := data.Open(r.Context(), rng)
	if err != nil {
		// Headers are already on the wire; there is no way to surface this
		// as a status code. Log it and stop writing.
		log.Printf("rangeserve: open failed for %s: %v", filename, err)
		return
	}

	mon := newMonitorReader(rc, filename, rng.Len())
	defer mon.Close()

	if _, err := io.Copy(w, mon); err != nil {
		log.Printf("rangeserve: copy failed for %s: %v", filename, err)
	}
}

func escapeFilename(name string) string {
	return strings.ReplaceAll(name, `"`, `\"`)
}

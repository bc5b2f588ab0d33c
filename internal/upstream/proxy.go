// Package upstream implements the gateway's single HTTP route: it
// rewrites an inbound request into an upstream manifest request, and
// either proxies the upstream response verbatim or, when the upstream
// marks its response with X-Zip-Stream, decodes a manifest and serves a
// synthesized ZIP archive built from it.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/gaby/zipstream/internal/gatewaymetrics"
	"github.com/gaby/zipstream/internal/objectstore"
	"github.com/gaby/zipstream/internal/rangeserve"
	"github.com/gaby/zipstream/internal/ziplayout"
)

// Config holds the process-wide settings that shape request rewriting.
type Config struct {
	// Upstream is the base URL of the manifest service.
	Upstream string
	// StripPrefix is removed from the inbound request path before it is
	// appended to Upstream.
	StripPrefix string
	// HeaderValue is sent as the X-Via-Zip-Stream header's value.
	HeaderValue string
}

// keepHeaders lists the request headers forwarded verbatim to the
// upstream manifest service.
var keepHeaders = []string{"Authorization", "Cookie", "User-Agent", "Referer"}

// Proxy is the http.Handler for the gateway's single route.
type Proxy struct {
	cfg    Config
	client *http.Client
	s3     objectstore.Getter
	group  singleflight.Group
}

// NewProxy builds the gateway handler. client is used for the outbound
// manifest request; s3 is used for the per-entry object-store reads once
// a manifest has been decoded.
func NewProxy(cfg Config, client *http.Client, s3 objectstore.Getter) *Proxy {
	return &Proxy{cfg: cfg, client: client, s3: s3}
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	w.Header().Set("X-Request-Id", reqID)
	log.Printf("upstream[%s]: %s %s", reqID, r.Method, r.URL.Path)

	if r.Method != http.MethodGet {
		rangeserve.WriteError(w, &rangeserve.StatusError{Code: http.StatusMethodNotAllowed, Message: "only GET requests allowed"})
		return
	}

	reqPath := r.URL.RequestURI()
	if !strings.HasPrefix(reqPath, p.cfg.StripPrefix) {
		rangeserve.WriteError(w, &rangeserve.StatusError{Code: http.StatusNotFound, Message: "not found"})
		return
	}

	upstreamURL := p.cfg.Upstream + reqPath[len(p.cfg.StripPrefix):]

	gatewaymetrics.ActiveRequests.Add(1)
	defer gatewaymetrics.ActiveRequests.Add(-1)

	res, shared, err := p.fetchUpstream(r.Context(), upstreamURL, r.Header)
	if err != nil {
		var fe *upstreamFetchError
		if errors.As(err, &fe) {
			log.Printf("upstream[%s]: %v", reqID, fe.err)
			rangeserve.WriteError(w, &rangeserve.StatusError{Code: fe.status, Message: "upstream request failed"})
			return
		}
		log.Printf("upstream[%s]: unexpected error: %v", reqID, err)
		rangeserve.WriteError(w, &rangeserve.StatusError{Code: http.StatusInternalServerError, Message: "upstream request failed"})
		return
	}

	if !res.isZip {
		p.proxyVerbatim(w, res)
		return
	}

	archive := ziplayout.Build(res.entries, ziplayout.Options{})
	log.Printf("upstream[%s]: streaming zip %s: %d entries, %d bytes, shared_fetch=%v", reqID, res.filename, len(res.entries), archive.Len(), shared)
	rangeserve.Serve(w, r, "application/zip", res.etag, res.filename, archive)
}

// proxyVerbatim writes a buffered upstream response through unchanged,
// used when the upstream did not mark its response as a zip-stream
// manifest.
func (p *Proxy) proxyVerbatim(w http.ResponseWriter, res *upstreamResult) {
	for k, vs := range res.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(res.statusCode)
	if _, err := w.Write(res.body); err != nil {
		log.Printf("upstream: proxy write failed: %v", err)
	}
}

const maxManifestBody = 16 << 20 // manifests are small by design; cap defensively

// upstreamResult is the outcome of one upstream round trip: either a
// buffered verbatim response, or a decoded manifest ready to be laid out
// as a ZIP archive.
type upstreamResult struct {
	isZip bool

	// set when isZip is false
	statusCode int
	header     http.Header
	body       []byte

	// set when isZip is true
	filename string
	etag     string
	entries  []ziplayout.Entry
}

// upstreamFetchError carries the HTTP status the gateway should report
// for a failure that occurred while talking to the upstream.
type upstreamFetchError struct {
	status int
	err    error
}

func (e *upstreamFetchError) Error() string { return e.err.Error() }
func (e *upstreamFetchError) Unwrap() error { return e.err }

// fetchUpstream performs the upstream GET and, for manifest responses,
// the body read and JSON decode, all inside a singleflight.Do closure
// keyed on upstreamURL. This is the expensive step worth deduplicating:
// concurrent clients requesting the same archive path within the same
// instant share one network round trip and one manifest decode, each
// still getting its own freshly-built ZipLayout afterward since that
// step is cheap and depends on nothing request-specific.
func (p *Proxy) fetchUpstream(ctx context.Context, upstreamURL string, reqHeader http.Header) (*upstreamResult, bool, error) {
	result, err, shared := p.group.Do(upstreamURL, func() (any, error) {
		upReq, err := http.NewRequestWithContext(ctx, http.MethodGet, upstreamURL, nil)
		if err != nil {
			return nil, &upstreamFetchError{http.StatusInternalServerError, fmt.Errorf("building upstream request: %w", err)}
		}
		upReq.Header.Set("X-Via-Zip-Stream", p.cfg.HeaderValue)
		for _, h := range keepHeaders {
			if v := reqHeader.Get(h); v != "" {
				upReq.Header.Set(h, v)
			}
		}

		upResp, err := p.client.Do(upReq)
		if err != nil {
			return nil, &upstreamFetchError{http.StatusServiceUnavailable, fmt.Errorf("connecting to %s: %w", upstreamURL, err)}
		}
		defer upResp.Body.Close()

		if upResp.Header.Get("X-Zip-Stream") == "" {
			body, err := io.ReadAll(upResp.Body)
			if err != nil {
				return nil, &upstreamFetchError{http.StatusBadGateway, fmt.Errorf("reading upstream body: %w", err)}
			}
			return &upstreamResult{statusCode: upResp.StatusCode, header: upResp.Header.Clone(), body: body}, nil
		}

		raw, err := io.ReadAll(io.LimitReader(upResp.Body, maxManifestBody+1))
		if err != nil {
			return nil, &upstreamFetchError{http.StatusBadGateway, fmt.Errorf("reading upstream body: %w", err)}
		}
		if len(raw) > maxManifestBody {
			return nil, &upstreamFetchError{http.StatusBadGateway, fmt.Errorf("upstream manifest exceeds %d bytes", maxManifestBody)}
		}

		filename, etag, entries, err := Decode(raw, p.s3)
		if err != nil {
			return nil, &upstreamFetchError{http.StatusInternalServerError, fmt.Errorf("decoding manifest: %w", err)}
		}

		return &upstreamResult{isZip: true, filename: filename, etag: etag, entries: entries}, nil
	})
	if err != nil {
		return nil, shared, err
	}
	return result.(*upstreamResult), shared, nil
}

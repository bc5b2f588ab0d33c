package rangeserve

import (
	"io"
	"log"

	"github.com/gaby/zipstream/internal/gatewaymetrics"
)

// monitorReader wraps a stream's body reader, tracking how many bytes have
// been delivered so its Close (called both on normal completion and on
// early client disconnect) can log the terminal outcome. Go has no
// Drop-on-scope-exit, so the equivalent observation point is Close: Serve
// closes the monitor with a deferred call, so it runs whether the copy
// finished or stopped early because the client went away mid-stream.
type monitorReader struct {
	rc      io.ReadCloser
	label   string
	pos     uint64
	len     uint64
	errored bool
	closed  bool
}

func newMonitorReader(rc io.ReadCloser, label string, length uint64) *monitorReader {
	log.Printf("rangeserve: %s: download started, %d bytes", label, length)
	return &monitorReader{rc: rc, label: label, len: length}
}

func (m *monitorReader) Read(p []byte) (int, error) {
	n, err := m.rc.Read(p)
	m.pos += uint64(n)
	gatewaymetrics.BytesServed.Add(int64(n))
	if err != nil && err != io.EOF {
		m.errored = true
		log.Printf("rangeserve: %s: stream error at %d/%d bytes: %v", m.label, m.pos, m.len, err)
	}
	return n, err
}

// Close reports the terminal status of the download. It is idempotent so
// that both an explicit Close and a deferred Close are safe.
func (m *monitorReader) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	status := "canceled"
	switch {
	case m.pos >= m.len:
		status = "complete"
	case m.errored:
		status = "failed"
	}
	if status != "complete" {
		gatewaymetrics.RequestErrors.Add(1)
	}
	log.Printf("rangeserve: %s: download %s, %d/%d bytes", m.label, status, m.pos, m.len)

	return m.rc.Close()
}

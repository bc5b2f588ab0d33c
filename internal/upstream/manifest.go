package upstream

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/gaby/zipstream/internal/objectstore"
	"github.com/gaby/zipstream/internal/s3url"
	"github.com/gaby/zipstream/internal/ziplayout"
)

// fileDescription is one entry of an upstream manifest, decoded straight
// from JSON.
type fileDescription struct {
	ArchiveName  string    `json:"archive_name"`
	Source       s3url.URL `json:"source"`
	Length       uint64    `json:"length"`
	CRC          uint32    `json:"crc"`
	LastModified time.Time `json:"last_modified"`
}

// manifest is the decoded body of an upstream response carrying the
// X-Zip-Stream marker header.
type manifest struct {
	Filename string            `json:"filename"`
	Entries  []fileDescription `json:"entries"`
}

// normalize applies Unicode NFC normalization to each entry's archive
// name, so that visually identical paths composed differently by
// different manifest producers land on the same bytes in the archive and
// in the ETag computation.
func (m *manifest) normalize() {
	for i := range m.Entries {
		m.Entries[i].ArchiveName = norm.NFC.String(m.Entries[i].ArchiveName)
	}
}

// sortEntries orders entries lexicographically by
// (archive_name, source, length, crc, last_modified), matching the
// deterministic-layout rule: manifest order must not affect the archive
// byte layout.
func (m *manifest) sortEntries() {
	sort.Slice(m.Entries, func(i, j int) bool {
		a, b := m.Entries[i], m.Entries[j]
		if a.ArchiveName != b.ArchiveName {
			return a.ArchiveName < b.ArchiveName
		}
		if a.Source.String() != b.Source.String() {
			return a.Source.String() < b.Source.String()
		}
		if a.Length != b.Length {
			return a.Length < b.Length
		}
		if a.CRC != b.CRC {
			return a.CRC < b.CRC
		}
		return a.LastModified.Before(b.LastModified)
	})
}

// etag computes a stable, cross-platform archive identity: SHA-256 over a
// canonical serialization of the sorted entry list plus the filename,
// truncated to 16 hex characters. This replaces the original
// implementation's process-local default hasher, flagged in the design
// notes as non-portable.
func (m *manifest) etag() string {
	h := sha256.New()
	fmt.Fprintf(h, "filename=%s\n", m.Filename)
	for _, e := range m.Entries {
		fmt.Fprintf(h, "%s\x00%s\x00%d\x00%08x\x00%s\n",
			e.ArchiveName, e.Source.String(), e.Length, e.CRC, e.LastModified.UTC().Format(time.RFC3339Nano))
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:16]
}

// Decode parses a manifest JSON body, normalizes and sorts its entries,
// and returns the archive filename, its ETag, and the entries translated
// into ziplayout.Entry values backed by s3Client. Shared by the gateway
// handler and the standalone zipdl tool so both build archives the same
// way from the same manifest format.
func Decode(raw []byte, s3Client objectstore.Getter) (filename, etag string, entries []ziplayout.Entry, err error) {
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", "", nil, fmt.Errorf("decoding manifest: %w", err)
	}
	m.normalize()
	m.sortEntries()

	entries = make([]ziplayout.Entry, 0, len(m.Entries))
	for _, fd := range m.Entries {
		lastModified := fd.LastModified
		if lastModified.IsZero() {
			lastModified = time.Unix(0, 0).UTC()
		}
		entries = append(entries, ziplayout.Entry{
			ArchivePath:  fd.ArchiveName,
			CRC32:        fd.CRC,
			LastModified: lastModified,
			Data: objectstore.Object{
				Client: s3Client,
				Loc:    fd.Source,
				Size:   fd.Length,
			},
		})
	}

	return m.Filename, m.etag(), entries, nil
}

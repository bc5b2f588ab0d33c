// Package ziplayout builds the byte-exact ZIP32/ZIP64 archive structure
// (local file headers, central directory, end-of-central-directory
// records) around a set of entries, without ever reading entry data. The
// result is a rangeio.StreamRange that a client can read any sub-range of,
// exactly as if it were a real file on disk.
package ziplayout

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/gaby/zipstream/internal/rangeio"
)

// Entry is one file to include in the archive.
type Entry struct {
	// ArchivePath is the filename within the archive, UTF-8, at most
	// 65535 bytes.
	ArchivePath string

	// Data is the entry's (uncompressed) contents. The archive never
	// compresses entries — it always uses storage method 0.
	Data rangeio.StreamRange

	// CRC32 is the precomputed CRC-32 checksum of Data. It is taken on
	// faith: the layout builder never reads Data to verify it.
	CRC32 uint32

	// LastModified is recorded in both the local and central directory
	// headers, truncated to 2-second DOS resolution in the fixed fields and
	// to whole seconds in the extended-timestamp extra field.
	LastModified time.Time
}

// Options controls archive-wide layout decisions.
type Options struct {
	// ForceZip64 makes every record use ZIP64 fields, even when the
	// archive would fit comfortably within the 32-bit limits. Useful for
	// testing and for callers who know the archive will grow.
	ForceZip64 bool
}

const (
	zip64Version = 45
	baseVersion  = 20

	zip64Threshold = 1 << 32

	localFileHeaderSig        = 0x04034b50
	centralFileHeaderSig      = 0x02014b50
	zip64EndOfCentralDirSig   = 0x06064b50
	zip64EndOfCentralDirLoc   = 0x07064b50
	endOfCentralDirSig        = 0x06054b50
	zip64ExtraFieldTag        = 0x0001
	extendedTimestampTagID    = 0x5455
	extendedTimestampModFlag  = 0x01
	extendedTimestampFieldLen = 5 // 1 flag byte + 4-byte mtime
)

// zipDate packs a time into the MS-DOS date format used by ZIP headers.
func zipDate(t time.Time) uint16 {
	year := uint16(t.Year() - 1980)
	if t.Year() < 1980 {
		year = 0
	}
	month := uint16(t.Month())
	day := uint16(t.Day())
	return day | month<<5 | year<<9
}

// zipTime packs a time into the MS-DOS time format used by ZIP headers.
func zipTime(t time.Time) uint16 {
	second := uint16(t.Second() / 2)
	minute := uint16(t.Minute())
	hour := uint16(t.Hour())
	return second | minute<<5 | hour<<11
}

// extendedTimestampExtra renders the Info-ZIP "UT" extra field carrying the
// entry's modification time as a signed 32-bit Unix timestamp. Not part of
// the original design; added so extractors that prefer it (most do) recover
// full-resolution timestamps instead of the DOS format's 2-second floor.
func extendedTimestampExtra(t time.Time) []byte {
	buf := make([]byte, 4+extendedTimestampFieldLen)
	binary.LittleEndian.PutUint16(buf[0:2], extendedTimestampTagID)
	binary.LittleEndian.PutUint16(buf[2:4], extendedTimestampFieldLen)
	buf[4] = extendedTimestampModFlag
	binary.LittleEndian.PutUint32(buf[5:9], uint32(t.Unix()))
	return buf
}

func localFileHeader(e Entry, forceZip64 bool) []byte {
	length := e.Data.Len()
	needsZip64 := length >= zip64Threshold || forceZip64
	ts := extendedTimestampExtra(e.LastModified)
	extraLen := len(ts)
	if needsZip64 {
		extraLen += 20
	}

	buf := bytes.NewBuffer(make([]byte, 0, 30+len(e.ArchivePath)+extraLen))

	var u16 [2]byte
	var u32 [4]byte

	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(u32[:], v)
		buf.Write(u32[:])
	}
	putU16 := func(v uint16) {
		binary.LittleEndian.PutUint16(u16[:], v)
		buf.Write(u16[:])
	}

	putU32(localFileHeaderSig)
	if needsZip64 {
		putU16(zip64Version)
	} else {
		putU16(baseVersion)
	}
	putU16(0) // general purpose bit flag
	putU16(0) // compression method: stored
	putU16(zipTime(e.LastModified))
	putU16(zipDate(e.LastModified))
	putU32(e.CRC32)

	if needsZip64 {
		putU32(0xFFFFFFFF)
		putU32(0xFFFFFFFF)
	} else {
		putU32(uint32(length))
		putU32(uint32(length))
	}

	putU16(uint16(len(e.ArchivePath)))
	putU16(uint16(extraLen))

	buf.WriteString(e.ArchivePath)

	if needsZip64 {
		putU16(zip64ExtraFieldTag)
		putU16(16)
		var u64 [8]byte
		binary.LittleEndian.PutUint64(u64[:], length)
		buf.Write(u64[:])
		buf.Write(u64[:])
	}
	buf.Write(ts)

	return buf.Bytes()
}

func centralDirectoryFileHeader(e Entry, offset uint64, forceZip64 bool) []byte {
	length := e.Data.Len()
	needsZip64 := length >= zip64Threshold || offset >= zip64Threshold || forceZip64
	ts := extendedTimestampExtra(e.LastModified)
	extraLen := len(ts)
	if needsZip64 {
		extraLen += 28
	}

	buf := bytes.NewBuffer(make([]byte, 0, 46+len(e.ArchivePath)+extraLen))

	var u16 [2]byte
	var u32 [4]byte

	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(u32[:], v)
		buf.Write(u32[:])
	}
	putU16 := func(v uint16) {
		binary.LittleEndian.PutUint16(u16[:], v)
		buf.Write(u16[:])
	}

	putU32(centralFileHeaderSig)
	buf.WriteByte(baseVersion) // version made by: zip spec 2.0
	buf.WriteByte(3)           // version made by: unix host
	if needsZip64 {
		putU16(zip64Version)
	} else {
		putU16(baseVersion)
	}
	putU16(0) // general purpose bit flag
	putU16(0) // compression method: stored
	putU16(zipTime(e.LastModified))
	putU16(zipDate(e.LastModified))
	putU32(e.CRC32)

	if needsZip64 {
		putU32(0xFFFFFFFF)
		putU32(0xFFFFFFFF)
	} else {
		putU32(uint32(length))
		putU32(uint32(length))
	}

	putU16(uint16(len(e.ArchivePath)))
	putU16(uint16(extraLen))
	putU16(0)          // file comment length
	putU16(0)          // disk number start
	putU16(0)          // internal file attributes
	putU32(0x81A40000) // external file attributes: -rw-r--r--

	if needsZip64 {
		putU32(0xFFFFFFFF)
	} else {
		putU32(uint32(offset))
	}

	buf.WriteString(e.ArchivePath)

	if needsZip64 {
		putU16(zip64ExtraFieldTag)
		putU16(24)
		var u64 [8]byte
		binary.LittleEndian.PutUint64(u64[:], length)
		buf.Write(u64[:])
		buf.Write(u64[:])
		binary.LittleEndian.PutUint64(u64[:], offset)
		buf.Write(u64[:])
	}
	buf.Write(ts)

	return buf.Bytes()
}

func endOfCentralDirectory(centralDirOffset, centralDirSize, numEntries uint64, forceZip64 bool) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 56+20+22))

	var u16 [2]byte
	var u32 [4]byte
	var u64 [8]byte

	putU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(u64[:], v)
		buf.Write(u64[:])
	}
	putU32 := func(v uint32) {
		binary.LittleEndian.PutUint32(u32[:], v)
		buf.Write(u32[:])
	}
	putU16 := func(v uint16) {
		binary.LittleEndian.PutUint16(u16[:], v)
		buf.Write(u16[:])
	}

	needsZip64 := numEntries >= 1<<16 || centralDirSize >= zip64Threshold ||
		centralDirOffset >= zip64Threshold || forceZip64

	if needsZip64 {
		putU32(zip64EndOfCentralDirSig)
		putU64(56 - 12) // size of the zip64 EOCD record, excluding sig+size fields
		putU16(zip64Version)
		putU16(zip64Version)
		putU32(0) // number of this disk
		putU32(0) // disk with the start of the central directory
		putU64(numEntries)
		putU64(numEntries)
		putU64(centralDirSize)
		putU64(centralDirOffset)

		putU32(zip64EndOfCentralDirLoc)
		putU32(0) // disk with the start of the zip64 EOCD record
		putU64(centralDirOffset + centralDirSize)
		putU32(1) // total number of disks

	}

	numEntries16 := uint16(numEntries)
	if numEntries >= 1<<16 {
		numEntries16 = 0xFFFF
	}
	centralDirSize32 := uint32(centralDirSize)
	if centralDirSize >= zip64Threshold {
		centralDirSize32 = 0xFFFFFFFF
	}
	centralDirOffset32 := uint32(centralDirOffset)
	if centralDirOffset >= zip64Threshold {
		centralDirOffset32 = 0xFFFFFFFF
	}

	putU32(endOfCentralDirSig)
	putU16(0) // number of this disk
	putU16(0) // disk with the start of the central directory
	putU16(numEntries16)
	putU16(numEntries16)
	putU32(centralDirSize32)
	putU32(centralDirOffset32)
	putU16(0) // archive comment length

	return buf.Bytes()
}

// Build lays out entries into a complete ZIP archive and returns it as a
// single StreamRange. Only header bytes are materialized in memory; each
// entry's data stays lazy, referenced by its own StreamRange and opened
// only when a reader actually reaches it.
func Build(entries []Entry, opts Options) rangeio.StreamRange {
	parts := make([]rangeio.StreamRange, 0, len(entries)*2+len(entries)+1)
	centralParts := make([]rangeio.StreamRange, 0, len(entries))

	var offset uint64
	for _, e := range entries {
		header := localFileHeader(e, opts.ForceZip64)
		centralHeader := centralDirectoryFileHeader(e, offset, opts.ForceZip64)

		offset += uint64(len(header)) + e.Data.Len()

		parts = append(parts, rangeio.Bytes(header), e.Data)
		centralParts = append(centralParts, rangeio.Bytes(centralHeader))
	}

	numEntries := uint64(len(centralParts))
	var centralDirSize uint64
	for _, p := range centralParts {
		centralDirSize += p.Len()
	}

	parts = append(parts, centralParts...)
	parts = append(parts, rangeio.Bytes(endOfCentralDirectory(offset, centralDirSize, numEntries, opts.ForceZip64)))

	return rangeio.NewConcat(parts...)
}

package evtlog

import "encoding/binary"

// FileHeaderSize is the fixed size of an mmap log's FileHeader, in bytes.
const FileHeaderSize = 64

// CurrentVersion is the only file format version this package writes or
// accepts.
const CurrentVersion uint32 = 1

// fileMagic is the literal ASCII bytes "EVTL" that open every valid log
// file.
var fileMagic = [4]byte{'E', 'V', 'T', 'L'}

// FileHeader is the fixed 64-byte record at the start of every mmap log
// file. EventCount and WriteOffset describe, as of the last successful
// Sync, exactly how many complete frames the arena holds and where the
// next one will be written.
type FileHeader struct {
	Magic       [4]byte
	Version     uint32
	EventCount  uint64
	WriteOffset uint64
}

// Validate reports whether the header's magic and version identify a file
// this package can read.
func (h FileHeader) Validate() bool {
	return h.Magic == fileMagic && h.Version == CurrentVersion
}

// Encode writes the header's exact wire layout into dst[0:FileHeaderSize],
// zeroing the reserved tail.
func (h FileHeader) Encode(dst []byte) {
	copy(dst[0:4], h.Magic[:])
	binary.LittleEndian.PutUint32(dst[4:8], h.Version)
	binary.LittleEndian.PutUint64(dst[8:16], h.EventCount)
	binary.LittleEndian.PutUint64(dst[16:24], h.WriteOffset)
	for i := 24; i < FileHeaderSize; i++ {
		dst[i] = 0
	}
}

// DecodeFileHeader reads a FileHeader from its exact wire layout.
// src must have length at least FileHeaderSize.
func DecodeFileHeader(src []byte) FileHeader {
	var h FileHeader
	copy(h.Magic[:], src[0:4])
	h.Version = binary.LittleEndian.Uint32(src[4:8])
	h.EventCount = binary.LittleEndian.Uint64(src[8:16])
	h.WriteOffset = binary.LittleEndian.Uint64(src[16:24])
	return h
}

//go:build linux
// +build linux

package evtlog

import (
	"os"
	"syscall"
)

// MmapReader is a read-only view over an mmap log file. All of its state
// is fixed at Open time, so a single MmapReader may be shared across
// goroutines.
type MmapReader struct {
	file        *os.File
	data        []byte
	eventCount  uint64
	writeOffset uint64
}

// Open memory-maps path read-only and validates its FileHeader. It fails
// with *FormatError if the magic or version does not match, or an
// *IoError wrapping the underlying failure if opening, stat-ing, or
// mapping the file fails.
func Open(path string) (*MmapReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &IoError{Op: "open", Path: path, Err: err}
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, &IoError{Op: "stat", Path: path, Err: err}
	}
	size := info.Size()
	if size < FileHeaderSize {
		file.Close()
		return nil, &FormatError{Path: path, Reason: "file too small for header"}
	}

	data, err := syscall.Mmap(int(file.Fd()), 0, int(size), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, &IoError{Op: "mmap", Path: path, Err: err}
	}

	header := DecodeFileHeader(data[:FileHeaderSize])
	if !header.Validate() {
		syscall.Munmap(data)
		file.Close()
		return nil, &FormatError{Path: path, Reason: "magic or version mismatch"}
	}

	return &MmapReader{
		file:        file,
		data:        data,
		eventCount:  header.EventCount,
		writeOffset: header.WriteOffset,
	}, nil
}

// EventCount returns the number of complete frames recorded in the file
// header as of Open.
func (r *MmapReader) EventCount() uint64 {
	return r.eventCount
}

// WriteOffset returns the arena write offset recorded in the file header
// as of Open.
func (r *MmapReader) WriteOffset() uint64 {
	return r.writeOffset
}

// Close unmaps the file and closes the underlying descriptor.
func (r *MmapReader) Close() error {
	if err := syscall.Munmap(r.data); err != nil {
		r.file.Close()
		return &IoError{Op: "munmap", Path: r.file.Name(), Err: err}
	}
	return r.file.Close()
}

func (r *MmapReader) eventAt(offset uint64) (EventHeader, []byte) {
	start := FileHeaderSize + offset
	header := DecodeEventHeader(r.data[start : start+HeaderSize])
	payload := r.data[start+HeaderSize : start+uint64(header.TotalSize())]
	return header, payload
}

// Visit is the callback Replay invokes for each frame. Returning false
// stops iteration early.
type Visit func(header EventHeader, payload []byte) bool

// Replay iterates every complete frame from the start of the arena up to
// WriteOffset, in order, yielding each one to visit with a payload slice
// borrowed directly from the mapping (zero copy). Iteration stops early if
// visit returns false, or if a frame would extend past WriteOffset (a
// truncation guard against a log that was not fully synced).
func (r *MmapReader) Replay(visit Visit) {
	var offset uint64
	for offset < r.writeOffset {
		if offset+HeaderSize > r.writeOffset {
			break
		}
		header, payload := r.eventAt(offset)
		size := uint64(header.TotalSize())
		if offset+size > r.writeOffset {
			break
		}
		if !visit(header, payload) {
			return
		}
		offset += size
	}
}

// Iterator is a finite, single-pass, restartable view over an MmapReader's
// frames.
type Iterator struct {
	reader *MmapReader
	offset uint64
}

// Iterator constructs a fresh, restartable iterator starting at the
// beginning of the arena.
func (r *MmapReader) Iterator() *Iterator {
	return &Iterator{reader: r}
}

// Next returns the next frame, or ok=false once the iterator is exhausted.
func (it *Iterator) Next() (header EventHeader, payload []byte, ok bool) {
	r := it.reader
	if it.offset >= r.writeOffset || it.offset+HeaderSize > r.writeOffset {
		return EventHeader{}, nil, false
	}
	header, payload = r.eventAt(it.offset)
	size := uint64(header.TotalSize())
	if it.offset+size > r.writeOffset {
		return EventHeader{}, nil, false
	}
	it.offset += size
	return header, payload, true
}

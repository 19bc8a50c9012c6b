//go:build linux
// +build linux

package evtlog

import (
	"os"
	"syscall"
	"unsafe"
)

// MmapWriter is the append-path writer over a fixed-length memory-mapped
// log file. It is single-threaded: callers must not call its methods
// concurrently from more than one goroutine.
type MmapWriter struct {
	file        *os.File
	data        []byte
	capacity    uint64
	arenaCap    uint64
	writeOffset uint64
	eventCount  uint64
}

// Create opens or creates the log file at path, truncates or extends it to
// exactly capacity bytes, and memory-maps it read/write. If the file was
// newly created (or was shorter than FileHeaderSize), a fresh FileHeader is
// written with EventCount and WriteOffset both zero. If the file already
// held a valid header, its existing EventCount and WriteOffset are adopted
// and subsequent writes append from there.
func Create(path string, capacity uint64) (*MmapWriter, error) {
	if capacity < FileHeaderSize {
		return nil, &InvalidCapacityError{Capacity: capacity, Reason: "too small for file header"}
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, &IoError{Op: "open", Path: path, Err: err}
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, &IoError{Op: "stat", Path: path, Err: err}
	}
	wasFresh := info.Size() < FileHeaderSize

	if err := file.Truncate(int64(capacity)); err != nil {
		file.Close()
		return nil, &IoError{Op: "truncate", Path: path, Err: err}
	}

	data, err := syscall.Mmap(int(file.Fd()), 0, int(capacity),
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, &IoError{Op: "mmap", Path: path, Err: err}
	}

	w := &MmapWriter{
		file:     file,
		data:     data,
		capacity: capacity,
		arenaCap: capacity - FileHeaderSize,
	}

	if wasFresh {
		header := FileHeader{Magic: fileMagic, Version: CurrentVersion}
		header.Encode(w.data[:FileHeaderSize])
		return w, nil
	}

	header := DecodeFileHeader(w.data[:FileHeaderSize])
	if !header.Validate() {
		syscall.Munmap(w.data)
		w.file.Close()
		return nil, &FormatError{Path: path, Reason: "magic or version mismatch"}
	}
	w.eventCount = header.EventCount
	w.writeOffset = header.WriteOffset
	return w, nil
}

// WriteEvent appends header and payload to the arena if there is room,
// updates the in-memory file header, and reports whether the write
// happened. A false return means the arena is full; this writer never
// rotates or compacts. The header update is visible only in the mapped
// region until the next successful Sync.
func (w *MmapWriter) WriteEvent(header EventHeader, payload []byte) bool {
	need := uint64(header.TotalSize())
	if w.writeOffset+need > w.arenaCap {
		return false
	}

	dst := w.data[FileHeaderSize+w.writeOffset:]
	header.Encode(dst[:HeaderSize])
	copy(dst[HeaderSize:], payload)

	w.writeOffset += need
	w.eventCount++

	fh := FileHeader{
		Magic:       fileMagic,
		Version:     CurrentVersion,
		EventCount:  w.eventCount,
		WriteOffset: w.writeOffset,
	}
	fh.Encode(w.data[:FileHeaderSize])

	return true
}

// WriteOffset returns the current arena write offset.
func (w *MmapWriter) WriteOffset() uint64 {
	return w.writeOffset
}

// EventCount returns the current number of complete frames written.
func (w *MmapWriter) EventCount() uint64 {
	return w.eventCount
}

// Sync flushes the mapped region to disk synchronously. After Sync
// returns without error, a crash leaves a file readable by MmapReader
// containing exactly the events whose WriteEvent returned true before
// this call.
func (w *MmapWriter) Sync() error {
	_, _, errno := syscall.Syscall(syscall.SYS_MSYNC,
		uintptr(unsafe.Pointer(&w.data[0])), uintptr(len(w.data)), uintptr(syscall.MS_SYNC))
	if errno != 0 {
		return &IoError{Op: "msync", Path: w.file.Name(), Err: errno}
	}
	return nil
}

// Close syncs the mapped region, unmaps it, and closes the underlying
// file.
func (w *MmapWriter) Close() error {
	syncErr := w.Sync()
	if err := syscall.Munmap(w.data); err != nil {
		w.file.Close()
		return &IoError{Op: "munmap", Path: w.file.Name(), Err: err}
	}
	if err := w.file.Close(); err != nil {
		return &IoError{Op: "close", Path: w.file.Name(), Err: err}
	}
	return syncErr
}

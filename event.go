package evtlog

import "encoding/binary"

// HeaderSize is the fixed on-wire size of an EventHeader, in bytes.
const HeaderSize = 16

// EventHeader is the fixed 16-byte record that precedes every event
// payload, on the ring and in the mmap log alike. Layout is little-endian
// and exact: timestamp(8) event_type(1) flags(1) payload_len(2) _reserved(4).
type EventHeader struct {
	Timestamp  uint64
	EventType  uint8
	Flags      uint8
	PayloadLen uint16
}

// NewEventHeader builds a header with flags and the reserved bytes zeroed.
// payloadLen is bounded by the 16-bit field; callers must not pass a
// length above 65535.
func NewEventHeader(timestamp uint64, eventType uint8, payloadLen uint16) EventHeader {
	return EventHeader{
		Timestamp:  timestamp,
		EventType:  eventType,
		PayloadLen: payloadLen,
	}
}

// TotalSize is HeaderSize plus the payload length this header declares.
func (h EventHeader) TotalSize() int {
	return HeaderSize + int(h.PayloadLen)
}

// Encode writes the header's exact wire layout into dst[0:HeaderSize].
// dst must have length at least HeaderSize.
func (h EventHeader) Encode(dst []byte) {
	binary.LittleEndian.PutUint64(dst[0:8], h.Timestamp)
	dst[8] = h.EventType
	dst[9] = h.Flags
	binary.LittleEndian.PutUint16(dst[10:12], h.PayloadLen)
	dst[12], dst[13], dst[14], dst[15] = 0, 0, 0, 0
}

// DecodeEventHeader reads a header from its exact wire layout.
// src must have length at least HeaderSize; the reserved bytes are ignored.
func DecodeEventHeader(src []byte) EventHeader {
	return EventHeader{
		Timestamp:  binary.LittleEndian.Uint64(src[0:8]),
		EventType:  src[8],
		Flags:      src[9],
		PayloadLen: binary.LittleEndian.Uint16(src[10:12]),
	}
}

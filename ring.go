package evtlog

// RingBuffer is a single-threaded byte-region ring carrying framed events.
// It supports neither a concurrent reader nor a concurrent writer; for the
// single-producer/single-consumer case, use SpscRingBuffer instead.
type RingBuffer struct {
	buf      []byte
	capacity uint64
	mask     uint64
	writePos uint64
	readPos  uint64
	scratch  [maxPayloadLen]byte
}

// maxPayloadLen is the largest payload the 16-bit payload_len field can
// describe.
const maxPayloadLen = 1<<16 - 1

// NewRingBuffer constructs a ring of the given capacity. capacity must be
// at least 16 and a power of two.
func NewRingBuffer(capacity uint64) (*RingBuffer, error) {
	if capacity == 0 || (capacity&(capacity-1)) != 0 {
		return nil, &InvalidCapacityError{Capacity: capacity, Reason: "not power of two"}
	}
	if capacity < 16 {
		return nil, &InvalidCapacityError{Capacity: capacity, Reason: "too small"}
	}
	return &RingBuffer{
		buf:      make([]byte, capacity),
		capacity: capacity,
		mask:     capacity - 1,
	}, nil
}

// Used returns the number of bytes currently occupied by unread frames.
func (r *RingBuffer) Used() uint64 {
	return r.writePos - r.readPos
}

// Free returns the number of bytes available for the next WriteEvent.
func (r *RingBuffer) Free() uint64 {
	return r.capacity - r.Used()
}

// IsEmpty reports whether the ring has no unread frames.
func (r *RingBuffer) IsEmpty() bool {
	return r.writePos == r.readPos
}

// WriteEvent copies header and payload into the ring as one contiguous
// frame, splitting the copy across the wrap boundary when necessary.
func (r *RingBuffer) WriteEvent(header EventHeader, payload []byte) error {
	need := uint64(HeaderSize + len(payload))
	free := r.Free()
	if need > free {
		return &NotEnoughSpaceError{Required: int(need), Available: int(free)}
	}

	start := r.writePos & r.mask
	contiguous := r.capacity - start

	switch {
	case need <= contiguous:
		header.Encode(r.buf[start : start+HeaderSize])
		copy(r.buf[start+HeaderSize:], payload)
	case contiguous >= HeaderSize:
		header.Encode(r.buf[start : start+HeaderSize])
		firstChunk := contiguous - HeaderSize
		copy(r.buf[start+HeaderSize:], payload[:firstChunk])
		copy(r.buf[0:], payload[firstChunk:])
	default:
		var hdr [HeaderSize]byte
		header.Encode(hdr[:])
		copy(r.buf[start:], hdr[:contiguous])
		copy(r.buf[0:], hdr[contiguous:])
		copy(r.buf[HeaderSize-contiguous:], payload)
	}

	r.writePos += need
	return nil
}

// ReadEvent returns the next frame's header and payload, or ok=false if
// fewer than a full frame is available. The returned payload slice is
// borrowed: it aliases either the ring's backing array or this RingBuffer's
// internal scratch buffer, and is invalidated by the next call to
// ReadEvent or WriteEvent.
func (r *RingBuffer) ReadEvent() (header EventHeader, payload []byte, ok bool) {
	if r.Used() < HeaderSize {
		return EventHeader{}, nil, false
	}

	start := r.readPos & r.mask
	contiguous := r.capacity - start

	if contiguous >= HeaderSize {
		header = DecodeEventHeader(r.buf[start : start+HeaderSize])
	} else {
		var hdr [HeaderSize]byte
		copy(hdr[:], r.buf[start:])
		copy(hdr[contiguous:], r.buf[0:])
		header = DecodeEventHeader(hdr[:])
	}

	need := uint64(header.TotalSize())
	if r.Used() < need {
		return EventHeader{}, nil, false
	}

	payloadStart := (start + HeaderSize) & r.mask
	payloadLen := uint64(header.PayloadLen)
	payloadContiguous := r.capacity - payloadStart

	if payloadLen <= payloadContiguous {
		payload = r.buf[payloadStart : payloadStart+payloadLen]
	} else {
		copy(r.scratch[:payloadContiguous], r.buf[payloadStart:])
		copy(r.scratch[payloadContiguous:payloadLen], r.buf[0:])
		payload = r.scratch[:payloadLen]
	}

	r.readPos += need
	return header, payload, true
}

package evtlog

import "sync/atomic"

// cacheLinePad is sized to push the next field onto its own cache line on
// essentially every architecture this library runs on.
type cacheLinePad [64]byte

// spscCore is the region shared by a SpscRingBuffer's Producer and Consumer
// handles. writePos and readPos sit on separate cache lines so that the
// producer's cursor updates never bounce the consumer's cache line (and
// vice versa).
type spscCore struct {
	buf      []byte
	capacity uint64
	mask     uint64

	_        cacheLinePad
	writePos atomic.Uint64
	_        cacheLinePad
	readPos  atomic.Uint64
	_        cacheLinePad
}

// SpscRingBuffer is a lock-free single-producer/single-consumer ring,
// identical in logical model to RingBuffer but with atomic, cache-line
// -isolated cursors so a Producer and a Consumer handle may each be moved
// to a different thread.
type SpscRingBuffer struct {
	core *spscCore
}

// NewSpscRingBuffer constructs a ring of the given capacity. capacity must
// be at least 16 and a power of two.
func NewSpscRingBuffer(capacity uint64) (*SpscRingBuffer, error) {
	if capacity == 0 || (capacity&(capacity-1)) != 0 {
		return nil, &InvalidCapacityError{Capacity: capacity, Reason: "not power of two"}
	}
	if capacity < 16 {
		return nil, &InvalidCapacityError{Capacity: capacity, Reason: "too small"}
	}
	return &SpscRingBuffer{
		core: &spscCore{
			buf:      make([]byte, capacity),
			capacity: capacity,
			mask:     capacity - 1,
		},
	}, nil
}

// Split transfers exclusive write-side capability to the returned Producer
// and exclusive read-side capability to the returned Consumer. Each handle
// may be moved to its own goroutine; using both from the same goroutine is
// also legal. Neither handle's lifetime affects the other — the backing
// region is reclaimed by the garbage collector once both are unreachable.
func (r *SpscRingBuffer) Split() (*Producer, *Consumer) {
	return &Producer{core: r.core}, &Consumer{core: r.core}
}

// IsEmpty reports whether the ring currently holds no unread frames. Safe
// to call from either side, though the result may be stale by the time the
// caller acts on it.
func (r *SpscRingBuffer) IsEmpty() bool {
	return r.core.writePos.Load() == r.core.readPos.Load()
}

// Producer holds the exclusive right to append frames to an
// SpscRingBuffer. It must not be shared across goroutines without the
// caller's own exclusion; doing so violates the single-producer contract.
type Producer struct {
	core *spscCore
	full NotEnoughSpaceError
}

// WriteEvent never blocks and never allocates. It fails with
// *NotEnoughSpaceError if the ring cannot currently hold the frame; the
// caller decides whether to drop the event or retry. The returned error
// is stored in the Producer and is overwritten by its next failed
// WriteEvent.
func (p *Producer) WriteEvent(header EventHeader, payload []byte) error {
	core := p.core
	writePos := core.writePos.Load()
	readPos := core.readPos.Load()

	used := writePos - readPos
	free := core.capacity - used
	need := uint64(HeaderSize + len(payload))
	if need > free {
		p.full = NotEnoughSpaceError{Required: int(need), Available: int(free)}
		return &p.full
	}

	start := writePos & core.mask
	contiguous := core.capacity - start

	switch {
	case need <= contiguous:
		header.Encode(core.buf[start : start+HeaderSize])
		copy(core.buf[start+HeaderSize:], payload)
	case contiguous >= HeaderSize:
		header.Encode(core.buf[start : start+HeaderSize])
		firstChunk := contiguous - HeaderSize
		copy(core.buf[start+HeaderSize:], payload[:firstChunk])
		copy(core.buf[0:], payload[firstChunk:])
	default:
		var hdr [HeaderSize]byte
		header.Encode(hdr[:])
		copy(core.buf[start:], hdr[:contiguous])
		copy(core.buf[0:], hdr[contiguous:])
		copy(core.buf[HeaderSize-contiguous:], payload)
	}

	core.writePos.Store(writePos + need)
	return nil
}

// IsEmpty reports whether the ring currently holds no unread frames, as
// observed by the producer.
func (p *Producer) IsEmpty() bool {
	return p.core.writePos.Load() == p.core.readPos.Load()
}

// Consumer holds the exclusive right to drain frames from an
// SpscRingBuffer. It must not be shared across goroutines without the
// caller's own exclusion; doing so violates the single-consumer contract.
type Consumer struct {
	core    *spscCore
	scratch [maxPayloadLen]byte
}

// ReadEvent returns the next frame's header and payload, or ok=false if
// the ring is empty or holds fewer than a full frame. ReadEvent never
// blocks. The returned payload slice is borrowed: when a frame wraps the
// end of the backing region, the payload is materialized into this
// Consumer's internal scratch buffer and the returned slice is invalidated
// by the next call to ReadEvent on the same Consumer. Non-wrapping frames
// return a slice directly into the shared backing region.
func (c *Consumer) ReadEvent() (header EventHeader, payload []byte, ok bool) {
	core := c.core
	readPos := core.readPos.Load()
	writePos := core.writePos.Load()

	used := writePos - readPos
	if used < HeaderSize {
		return EventHeader{}, nil, false
	}

	start := readPos & core.mask
	contiguous := core.capacity - start

	if contiguous >= HeaderSize {
		header = DecodeEventHeader(core.buf[start : start+HeaderSize])
	} else {
		var hdr [HeaderSize]byte
		copy(hdr[:], core.buf[start:])
		copy(hdr[contiguous:], core.buf[0:])
		header = DecodeEventHeader(hdr[:])
	}

	need := uint64(header.TotalSize())
	if used < need {
		return EventHeader{}, nil, false
	}

	payloadStart := (start + HeaderSize) & core.mask
	payloadLen := uint64(header.PayloadLen)
	payloadContiguous := core.capacity - payloadStart

	if payloadLen <= payloadContiguous {
		payload = core.buf[payloadStart : payloadStart+payloadLen]
	} else {
		copy(c.scratch[:payloadContiguous], core.buf[payloadStart:])
		copy(c.scratch[payloadContiguous:payloadLen], core.buf[0:])
		payload = c.scratch[:payloadLen]
	}

	core.readPos.Store(readPos + need)
	return header, payload, true
}

// IsEmpty reports whether the ring currently holds no unread frames, as
// observed by the consumer.
func (c *Consumer) IsEmpty() bool {
	return c.core.writePos.Load() == c.core.readPos.Load()
}

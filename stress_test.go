package evtlog

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/valyala/fastrand"
)

// TestSPSCTenMillionSequence is the full-scale two-thread SPSC scenario
// from the testable-properties list: the producer writes 10,000,000
// frames each carrying an 8-byte sequence number, and the consumer must
// observe exactly 0..9,999,999 with no gaps or duplicates. It is skipped
// under `go test -short`.
func TestSPSCTenMillionSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping 10,000,000-frame stress scenario in -short mode")
	}

	const n = 10_000_000
	ring, err := NewSpscRingBuffer(1 << 16)
	if err != nil {
		t.Fatal(err)
	}
	producer, consumer := ring.Split()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var payload [8]byte
		for i := uint64(0); i < n; i++ {
			binary.LittleEndian.PutUint64(payload[:], i)
			// jitter the declared event_type with fastrand to exercise the
			// field without affecting the sequence check below.
			h := NewEventHeader(i, uint8(fastrand.Uint32n(256)), 8)
			for producer.WriteEvent(h, payload[:]) != nil {
			}
		}
	}()

	var got uint64
	for got < n {
		_, payload, ok := consumer.ReadEvent()
		if !ok {
			continue
		}
		seq := binary.LittleEndian.Uint64(payload)
		if seq != got {
			t.Fatalf("gap or duplicate at position %d: got sequence %d", got, seq)
		}
		got++
	}
	wg.Wait()
}

// forwardBufPool reuses the scratch buffer used to copy a drained SPSC
// payload into the mmap writer, avoiding a per-frame allocation on the
// forwarding path between the ring and the log.
var forwardBufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, maxPayloadLen)
		return &buf
	},
}

// forwardingConsumer is an EventConsumer that appends every event it sees
// to an MmapWriter, using a pooled scratch buffer for the copy.
type forwardingConsumer struct {
	writer *MmapWriter
}

func (f *forwardingConsumer) Name() string { return "mmap-forwarder" }

func (f *forwardingConsumer) Consume(header EventHeader, payload []byte) bool {
	bufp := forwardBufPool.Get().(*[]byte)
	defer forwardBufPool.Put(bufp)

	scratch := (*bufp)[:len(payload)]
	copy(scratch, payload)
	return f.writer.WriteEvent(header, scratch)
}

// TestStressRingToMmapForwarding drives randomized payload sizes (via
// fastrand, matching the teacher's own declared dependency) through an
// SPSC ring, a dispatcher, and into an mmap log, then verifies the log
// replays back exactly what was forwarded.
func TestStressRingToMmapForwarding(t *testing.T) {
	const n = 2000

	ring, err := NewSpscRingBuffer(1 << 12)
	if err != nil {
		t.Fatal(err)
	}
	producer, consumer := ring.Split()

	path := tempLogPath(t)
	writer, err := Create(path, 1<<22)
	if err != nil {
		t.Fatal(err)
	}
	defer writer.Close()

	var d EventDispatcher
	d.AddConsumer(&forwardingConsumer{writer: writer})

	expected := make([][]byte, 0, n)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			payloadLen := fastrand.Uint32n(256)
			payload := make([]byte, payloadLen)
			for j := range payload {
				payload[j] = byte(fastrand.Uint32n(256))
			}
			expected = append(expected, payload)

			h := NewEventHeader(uint64(i), 3, uint16(payloadLen))
			for producer.WriteEvent(h, payload) != nil {
			}
		}
	}()

	forwarded := 0
	for forwarded < n {
		stats := d.DrainBatch(consumer, 64)
		forwarded += int(stats.EventsRead)
	}
	wg.Wait()

	if err := writer.Sync(); err != nil {
		t.Fatal(err)
	}

	if writer.EventCount() != uint64(n) {
		t.Fatalf("expected %d events written, got %d", n, writer.EventCount())
	}

	reader, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	i := 0
	reader.Replay(func(h EventHeader, payload []byte) bool {
		if int(h.PayloadLen) != len(expected[i]) {
			t.Fatalf("frame %d: payload_len mismatch", i)
		}
		for j, b := range payload {
			if b != expected[i][j] {
				t.Fatalf("frame %d: byte %d mismatch", i, j)
			}
		}
		i++
		return true
	})
	if i != n {
		t.Fatalf("expected to replay %d frames, got %d", n, i)
	}
}

package evtlog

// EventConsumer is a named sink registered with an EventDispatcher. Consume
// is invoked once per drained event, in registration order relative to any
// other registered consumers. Returning false marks the event as failed
// for this consumer; it never stops the drain or affects other consumers.
type EventConsumer interface {
	Consume(header EventHeader, payload []byte) bool
	Name() string
}

// ConsumerStats holds the running totals for one registered consumer.
type ConsumerStats struct {
	Name      string
	Processed uint64
	Failed    uint64
}

// DrainStats is the result of one Drain or DrainBatch call. EventsRead,
// Processed and Failed count that call only, summed across consumers;
// PerConsumer holds each consumer's running totals since it was added.
type DrainStats struct {
	EventsRead  uint64
	Processed   uint64
	Failed      uint64
	PerConsumer []ConsumerStats
}

// SuccessRate returns Processed / (Processed + Failed) as a fraction in
// [0,1]. It returns 0.0 when there is no processed-or-failed total, rather
// than dividing zero by zero.
func (s DrainStats) SuccessRate() float64 {
	total := s.Processed + s.Failed
	if total == 0 {
		return 0.0
	}
	return float64(s.Processed) / float64(total)
}

// EventDispatcher drains a ring in batches and fans each event out to a
// registered sequence of consumers, invoked strictly in registration order
// with no reordering across events. It runs consumers sequentially on the
// calling goroutine; a slow consumer blocks the drain.
type EventDispatcher struct {
	consumers []EventConsumer
	processed []uint64
	failed    []uint64
}

// AddConsumer appends c to the dispatch sequence. Later calls to Drain and
// DrainBatch invoke consumers in the order they were added.
func (d *EventDispatcher) AddConsumer(c EventConsumer) {
	d.consumers = append(d.consumers, c)
	d.processed = append(d.processed, 0)
	d.failed = append(d.failed, 0)
}

// Ring is the minimal interface Drain and DrainBatch need from a source of
// framed events; both RingBuffer and Consumer (the SPSC read handle)
// satisfy it.
type Ring interface {
	ReadEvent() (header EventHeader, payload []byte, ok bool)
}

// Drain reads events from ring until it reports empty, invoking every
// registered consumer for every event in registration order.
func (d *EventDispatcher) Drain(ring Ring) DrainStats {
	return d.drainUpTo(ring, ^uint64(0))
}

// DrainBatch is like Drain but stops once limit events have been consumed
// from ring, regardless of how many consumers fan out per event. A limit
// of zero performs no reads.
func (d *EventDispatcher) DrainBatch(ring Ring, limit uint64) DrainStats {
	return d.drainUpTo(ring, limit)
}

func (d *EventDispatcher) drainUpTo(ring Ring, limit uint64) DrainStats {
	var stats DrainStats
	for stats.EventsRead < limit {
		header, payload, ok := ring.ReadEvent()
		if !ok {
			break
		}
		stats.EventsRead++
		for i, c := range d.consumers {
			if c.Consume(header, payload) {
				d.processed[i]++
				stats.Processed++
			} else {
				d.failed[i]++
				stats.Failed++
			}
		}
	}

	stats.PerConsumer = make([]ConsumerStats, len(d.consumers))
	for i, c := range d.consumers {
		stats.PerConsumer[i] = ConsumerStats{
			Name:      c.Name(),
			Processed: d.processed[i],
			Failed:    d.failed[i],
		}
	}
	return stats
}

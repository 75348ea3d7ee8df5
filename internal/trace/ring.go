package trace

import (
	"io"
	"sync"
)

// RingTracer keeps the most recent events in memory. The CLI dumps it when a
// run fails, which shows what the last repositories were doing without
// paying for a trace file on every run.
type RingTracer struct {
	mu      sync.Mutex
	events  []Event
	written uint64 // total events ever stored
	level   Level
}

func NewRingTracer(capacity int, level Level) *RingTracer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &RingTracer{events: make([]Event, capacity), level: level}
}

func (t *RingTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) && ev.Kind != KindHeartbeat {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	slot := t.written % uint64(len(t.events))
	t.events[slot] = *ev
	t.events[slot].Seq = nextSeq()
	t.written++
}

// Len is the number of events currently held.
func (t *RingTracer) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int(min(t.written, uint64(len(t.events))))
}

// Snapshot returns the held events, oldest first.
func (t *RingTracer) Snapshot() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	size := uint64(len(t.events))
	if t.written <= size {
		return append([]Event(nil), t.events[:t.written]...)
	}
	start := t.written % size
	out := make([]Event, 0, size)
	out = append(out, t.events[start:]...)
	return append(out, t.events[:start]...)
}

// Dump writes the held events as one document in format.
func (t *RingTracer) Dump(w io.Writer, format Format) error {
	out := eventWriter{w: w, format: format}
	if err := out.begin(); err != nil {
		return err
	}
	events := t.Snapshot()
	for i := range events {
		if err := out.write(&events[i]); err != nil {
			return err
		}
	}
	return out.end()
}

func (t *RingTracer) Flush() error  { return nil }
func (t *RingTracer) Close() error  { return nil }
func (t *RingTracer) Level() Level  { return t.level }
func (t *RingTracer) Enabled() bool { return t.level > LevelOff }

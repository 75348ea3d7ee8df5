package trace

import (
	"io"
	"os"
	"sync"
)

// StreamTracer writes every event as it happens. Write errors are counted,
// never returned from Emit: a broken trace file must not stop a run.
type StreamTracer struct {
	mu     sync.Mutex
	out    eventWriter
	level  Level
	failed int
	closed bool
}

func NewStreamTracer(w io.Writer, level Level, format Format) *StreamTracer {
	t := &StreamTracer{out: eventWriter{w: w, format: format}, level: level}
	if t.out.begin() != nil {
		t.failed++
	}
	return t
}

func (t *StreamTracer) Emit(ev *Event) {
	if !t.level.ShouldEmit(ev.Scope) && ev.Kind != KindHeartbeat {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	ev.Seq = nextSeq()
	if t.out.write(ev) != nil {
		t.failed++
	}
}

// Failed returns how many writes failed so far.
func (t *StreamTracer) Failed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}

func (t *StreamTracer) Flush() error {
	if f, ok := t.out.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	if f, ok := t.out.w.(*os.File); ok && !isStdStream(f) {
		return f.Sync()
	}
	return nil
}

// Close terminates the document and closes the writer unless it is stdout
// or stderr. Events emitted after Close are dropped.
func (t *StreamTracer) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	err := t.out.end()
	t.mu.Unlock()

	if err != nil {
		return err
	}
	if err := t.Flush(); err != nil {
		return err
	}
	if c, ok := t.out.w.(io.Closer); ok && !isStdStream(t.out.w) {
		return c.Close()
	}
	return nil
}

func (t *StreamTracer) Level() Level  { return t.level }
func (t *StreamTracer) Enabled() bool { return t.level > LevelOff }

func isStdStream(w io.Writer) bool {
	return w == os.Stderr || w == os.Stdout
}

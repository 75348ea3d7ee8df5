package trace

import (
	"context"
	"runtime"
	"strconv"
	"sync"
	"time"
)

// Heartbeat emits a liveness event at a fixed interval. A run of heartbeats
// with no span ends between them points at a hung clone, install or tsc.
type Heartbeat struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartHeartbeat starts emitting into tracer. It returns nil when tracing is
// off or interval is not positive; Stop on nil is a no-op.
func StartHeartbeat(tracer Tracer, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Heartbeat{cancel: cancel, done: make(chan struct{})}
	go h.run(ctx, tracer, interval)
	return h
}

func (h *Heartbeat) run(ctx context.Context, tracer Tracer, interval time.Duration) {
	defer close(h.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var mem runtime.MemStats
	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			runtime.ReadMemStats(&mem)
			tracer.Emit(&Event{
				Time:   now,
				Kind:   KindHeartbeat,
				Scope:  ScopeRun,
				Name:   "heartbeat",
				Detail: "#" + strconv.Itoa(n),
				Extra: map[string]string{
					"goroutines": strconv.Itoa(runtime.NumGoroutine()),
					"heap_mb":    strconv.FormatUint(mem.HeapAlloc>>20, 10),
				},
			})
		}
	}
}

// Stop ends the heartbeat and waits for its goroutine.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		h.cancel()
		<-h.done
	})
}

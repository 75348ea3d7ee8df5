package trace

import "errors"

// MultiTracer fans events out to several tracers; each gets its own copy.
type MultiTracer struct {
	children []Tracer
	level    Level
}

func NewMultiTracer(level Level, children ...Tracer) *MultiTracer {
	return &MultiTracer{children: children, level: level}
}

func (t *MultiTracer) Emit(ev *Event) {
	for _, c := range t.children {
		cp := *ev
		c.Emit(&cp)
	}
}

func (t *MultiTracer) Flush() error { return t.each(Tracer.Flush) }
func (t *MultiTracer) Close() error { return t.each(Tracer.Close) }

func (t *MultiTracer) each(f func(Tracer) error) error {
	var errs []error
	for _, c := range t.children {
		errs = append(errs, f(c))
	}
	return errors.Join(errs...)
}

// Ring returns the first ring tracer among the children, if any.
func (t *MultiTracer) Ring() *RingTracer {
	for _, c := range t.children {
		if r, ok := c.(*RingTracer); ok {
			return r
		}
	}
	return nil
}

func (t *MultiTracer) Level() Level  { return t.level }
func (t *MultiTracer) Enabled() bool { return t.level > LevelOff }

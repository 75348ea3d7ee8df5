package trace

import (
	"sync/atomic"
	"time"
)

var (
	seqCounter  atomic.Uint64
	spanCounter atomic.Uint64
)

func nextSeq() uint64    { return seqCounter.Add(1) }
func nextSpanID() uint64 { return spanCounter.Add(1) }

// Span is one traced operation: a repository, one of its steps, or a single
// compiler invocation. The zero-cost form (tracer Nop) is returned when the
// scope is filtered out, so callers never check.
type Span struct {
	tracer  Tracer
	id      uint64
	parent  uint64
	scope   Scope
	name    string
	repo    string
	started time.Time
	attrs   map[string]string
}

// Begin emits the begin event of a span under parent (0 for a root span).
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	return begin(t, scope, name, parent, "")
}

func begin(t Tracer, scope Scope, name string, parent uint64, repo string) *Span {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return &Span{tracer: Nop, repo: repo}
	}
	s := &Span{
		tracer:  t,
		id:      nextSpanID(),
		parent:  parent,
		scope:   scope,
		name:    name,
		repo:    repo,
		started: time.Now(),
	}
	t.Emit(s.event(KindSpanBegin, s.started, ""))
	return s
}

func (s *Span) event(kind Kind, at time.Time, detail string) *Event {
	ev := &Event{
		Time:     at,
		Kind:     kind,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parent,
		Repo:     s.repo,
		Name:     s.name,
		Detail:   detail,
	}
	if kind == KindSpanEnd {
		ev.Extra = s.attrs
	}
	return ev
}

func (s *Span) live() bool {
	return s != nil && s.tracer != nil && s.tracer.Enabled()
}

// Set attaches an attribute reported with the end event.
func (s *Span) Set(key, value string) *Span {
	if !s.live() {
		return s
	}
	if s.attrs == nil {
		s.attrs = make(map[string]string, 2)
	}
	s.attrs[key] = value
	return s
}

// End emits the end event and returns how long the span lasted.
func (s *Span) End(detail string) time.Duration {
	if !s.live() {
		return 0
	}
	now := time.Now()
	s.tracer.Emit(s.event(KindSpanEnd, now, detail))
	return now.Sub(s.started)
}

// Fail ends the span with err as its detail. A nil err ends it normally.
func (s *Span) Fail(err error) time.Duration {
	if err == nil {
		return s.End("")
	}
	return s.Set("error", "true").End(err.Error())
}

// ID returns the span ID, 0 when the span is not recorded.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

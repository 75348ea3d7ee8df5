package trace

import (
	"context"
	"time"
)

type ctxKey struct{}

// FromContext returns the Tracer carried by ctx, or Nop.
func FromContext(ctx context.Context) Tracer {
	if ctx == nil {
		return Nop
	}
	if t, ok := ctx.Value(ctxKey{}).(Tracer); ok {
		return t
	}
	return Nop
}

// WithTracer attaches a Tracer to context.
func WithTracer(ctx context.Context, t Tracer) context.Context {
	if t == nil {
		t = Nop
	}
	return context.WithValue(ctx, ctxKey{}, t)
}

// SpanContext is what nested spans inherit from their parent.
type SpanContext struct {
	SpanID uint64
	Repo   string
}

type spanCtxKey struct{}

// CurrentSpan returns the innermost span started with Start, if any.
func CurrentSpan(ctx context.Context) SpanContext {
	if ctx == nil {
		return SpanContext{}
	}
	if sc, ok := ctx.Value(spanCtxKey{}).(SpanContext); ok {
		return sc
	}
	return SpanContext{}
}

func WithSpanContext(ctx context.Context, sc SpanContext) context.Context {
	return context.WithValue(ctx, spanCtxKey{}, sc)
}

// Start begins a span under the tracer and parent span carried by ctx. A
// ScopeRepo span names the repository; every span below it is attributed to
// that repository.
func Start(ctx context.Context, scope Scope, name string) (context.Context, *Span) {
	parent := CurrentSpan(ctx)
	repo := parent.Repo
	if scope == ScopeRepo {
		repo = name
	}
	span := begin(FromContext(ctx), scope, name, parent.SpanID, repo)
	if span.ID() == 0 && repo == parent.Repo {
		return ctx, span
	}
	id := span.ID()
	if id == 0 {
		id = parent.SpanID
	}
	return WithSpanContext(ctx, SpanContext{SpanID: id, Repo: repo}), span
}

// Point emits an instant event under the current span.
func Point(ctx context.Context, scope Scope, name, detail string) {
	t := FromContext(ctx)
	if !t.Enabled() || !t.Level().ShouldEmit(scope) {
		return
	}
	parent := CurrentSpan(ctx)
	t.Emit(&Event{
		Time:     time.Now(),
		Kind:     KindPoint,
		Scope:    scope,
		SpanID:   nextSpanID(),
		ParentID: parent.SpanID,
		Repo:     parent.Repo,
		Name:     name,
		Detail:   detail,
	})
}

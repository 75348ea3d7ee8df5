// Package trace records what a run spends its time on: repositories, the
// steps inside each of them and single compiler invocations.
//
// # Usage
//
//	errdeltas 10 5.4.5 5.5.2 false --trace=run.json --trace-level=step
//
// A ".json" output is written in the Chrome trace format and opens in
// Perfetto, ".ndjson" gives one JSON object per line and ".msgpack" a packed
// stream. Anything else, including "-" for stderr, is plain text.
//
// # Tracers
//
//   - Nop: used when tracing is off
//   - StreamTracer: writes each event as it happens
//   - RingTracer: keeps the last events in memory for a dump on failure
//   - MultiTracer: fans out to several tracers
//
// # Levels and scopes
//
// Events carry a Scope (run, repo, step, project). The Level decides which
// scopes are kept: repo keeps run and repo events, step adds steps, debug
// adds every compiler invocation. Heartbeats are always kept once tracing is
// on.
//
// # Context propagation
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, span := trace.Start(ctx, trace.ScopeStep, "install")
//	defer span.End("")
//
// Spans started below a ScopeRepo span carry that repository's owner/name in
// Event.Repo, also when the repo span itself is filtered out.
package trace

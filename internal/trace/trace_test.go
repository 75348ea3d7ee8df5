package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/vmihailenco/msgpack/v5"
)

func TestLevelShouldEmit(t *testing.T) {
	tests := []struct {
		level Level
		want  []Scope
	}{
		{LevelOff, nil},
		{LevelError, nil},
		{LevelRepo, []Scope{ScopeRun, ScopeRepo}},
		{LevelStep, []Scope{ScopeRun, ScopeRepo, ScopeStep}},
		{LevelDebug, []Scope{ScopeRun, ScopeRepo, ScopeStep, ScopeProject}},
	}
	for _, tt := range tests {
		var got []Scope
		for _, s := range []Scope{ScopeRun, ScopeRepo, ScopeStep, ScopeProject} {
			if tt.level.ShouldEmit(s) {
				got = append(got, s)
			}
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("%s: scopes mismatch (-want +got):\n%s", tt.level, diff)
		}
	}
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	if _, err := ParseLevel("phase"); err == nil {
		t.Fatalf("expected error")
	}
	if l, err := ParseLevel("STEP"); err != nil || l != LevelStep {
		t.Fatalf("ParseLevel(STEP) = %v, %v", l, err)
	}
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"":              FormatText,
		"-":             FormatText,
		"run.json":      FormatChrome,
		"run.ndjson":    FormatNDJSON,
		"run.msgpack":   FormatMsgpack,
		"run.trace.txt": FormatText,
	}
	for path, want := range tests {
		if got := DetectFormat(path); got != want {
			t.Errorf("DetectFormat(%q) = %d, want %d", path, got, want)
		}
	}
}

func TestStreamTracerFiltersByScope(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelRepo, FormatNDJSON)
	ctx := WithTracer(context.Background(), tr)

	ctx, repo := Start(ctx, ScopeRepo, "repo")
	_, step := Start(ctx, ScopeStep, "install")
	step.End("")
	repo.Set("owner", "octo").End("done")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d events, want 2:\n%s", len(lines), buf.String())
	}
	var end map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &end); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if end["kind"] != "end" || end["detail"] != "done" || end["scope"] != "repo" {
		t.Fatalf("unexpected end event %v", end)
	}
}

func TestStartNestsSpans(t *testing.T) {
	ring := NewRingTracer(16, LevelDebug)
	ctx := WithTracer(context.Background(), ring)

	ctx, repo := Start(ctx, ScopeRepo, "repo")
	_, project := Start(ctx, ScopeProject, "tsc -p")
	project.End("")
	repo.End("")

	evs := ring.Snapshot()
	if len(evs) != 4 {
		t.Fatalf("got %d events, want 4", len(evs))
	}
	if evs[1].ParentID != repo.ID() {
		t.Fatalf("project parent = %d, want %d", evs[1].ParentID, repo.ID())
	}
}

func TestRingTracerWrapsAndDumpsChrome(t *testing.T) {
	ring := NewRingTracer(3, LevelDebug)
	for i := range 5 {
		ring.Emit(&Event{Time: time.Now(), Kind: KindPoint, Scope: ScopeStep, Name: string(rune('a' + i))})
	}
	var names []string
	for _, ev := range ring.Snapshot() {
		names = append(names, ev.Name)
	}
	if diff := cmp.Diff([]string{"c", "d", "e"}, names); diff != "" {
		t.Fatalf("ring order mismatch (-want +got):\n%s", diff)
	}

	var buf bytes.Buffer
	if err := ring.Dump(&buf, FormatChrome); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	var doc struct {
		TraceEvents []map[string]any `json:"traceEvents"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("chrome dump is not JSON: %v\n%s", err, buf.String())
	}
	if len(doc.TraceEvents) != 3 || doc.TraceEvents[0]["ph"] != "i" {
		t.Fatalf("unexpected chrome events %v", doc.TraceEvents)
	}
}

func TestStreamChromeIsValidJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDebug, FormatChrome)
	span := Begin(tr, ScopeRun, "run", 0)
	span.End("")
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	var doc struct {
		TraceEvents []map[string]any `json:"traceEvents"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid chrome trace: %v\n%s", err, buf.String())
	}
	if len(doc.TraceEvents) != 2 || doc.TraceEvents[0]["ph"] != "B" || doc.TraceEvents[1]["ph"] != "E" {
		t.Fatalf("unexpected events %v", doc.TraceEvents)
	}
}

func TestFormatTextSortsExtra(t *testing.T) {
	ev := &Event{
		Time:  time.Now(),
		Kind:  KindSpanEnd,
		Scope: ScopeRepo,
		Name:  "repo",
		Extra: map[string]string{"z": "1", "a": "2", "m": "3"},
	}
	got := string(formatText(ev))
	if !strings.HasSuffix(got, "← repo:repo {a=2, m=3, z=1}\n") {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestFormatMsgpackRoundTrips(t *testing.T) {
	data := FormatEvent(&Event{Kind: KindPoint, Scope: ScopeRun, Name: "filed"}, FormatMsgpack)
	var w wireEvent
	if err := msgpack.Unmarshal(data, &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w.Name != "filed" || w.Kind != "point" || w.Scope != "run" {
		t.Fatalf("unexpected %+v", w)
	}
}

func TestMultiTracerJoinsChildren(t *testing.T) {
	var buf bytes.Buffer
	ring := NewRingTracer(8, LevelStep)
	m := NewMultiTracer(LevelStep, NewStreamTracer(&buf, LevelStep, FormatText), ring)
	Begin(m, ScopeStep, "clone", 0).End("")
	if m.Ring() != ring {
		t.Fatalf("Ring() did not return the ring child")
	}
	if len(ring.Snapshot()) != 2 || strings.Count(buf.String(), "\n") != 2 {
		t.Fatalf("fan-out mismatch: ring=%d text=%q", len(ring.Snapshot()), buf.String())
	}
}

func TestHeartbeatStops(t *testing.T) {
	ring := NewRingTracer(64, LevelRepo)
	h := StartHeartbeat(ring, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	h.Stop()
	n := len(ring.Snapshot())
	if n == 0 {
		t.Fatalf("no heartbeats recorded")
	}
	time.Sleep(20 * time.Millisecond)
	if len(ring.Snapshot()) != n {
		t.Fatalf("heartbeat kept running after Stop")
	}
	if StartHeartbeat(Nop, time.Millisecond) != nil {
		t.Fatalf("heartbeat started for disabled tracer")
	}
}

func TestStartAttributesRepository(t *testing.T) {
	ring := NewRingTracer(16, LevelDebug)
	ctx := WithTracer(context.Background(), ring)

	ctx, run := Start(ctx, ScopeRun, "run")
	repoCtx, repo := Start(ctx, ScopeRepo, "octo/app")
	_, step := Start(repoCtx, ScopeStep, "install")
	step.Fail(errors.New("npm ci: exit 1"))
	Point(repoCtx, ScopeStep, "precheck", "compare")
	repo.End("")
	run.End("")

	var got []string
	for _, ev := range ring.Snapshot() {
		got = append(got, ev.Kind.String()+" "+ev.Name+" "+ev.Repo)
	}
	want := []string{
		"begin run ",
		"begin octo/app octo/app",
		"begin install octo/app",
		"end install octo/app",
		"point precheck octo/app",
		"end octo/app octo/app",
		"end run ",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
	failed := ring.Snapshot()[3]
	if failed.Detail != "npm ci: exit 1" || failed.Extra["error"] != "true" {
		t.Fatalf("failed step = %+v", failed)
	}
}

func TestStepSpansCarryRepository(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelStep, FormatText)
	ctx := WithTracer(context.Background(), tr)

	ctx, _ = Start(ctx, ScopeRepo, "octo/app")
	_, step := Start(ctx, ScopeStep, "clone")
	step.End("")
	_, project := Start(ctx, ScopeProject, "tsc -p")
	if project.ID() != 0 {
		t.Fatalf("project span recorded at step level")
	}
	if !strings.Contains(buf.String(), "step:clone [octo/app]") {
		t.Fatalf("missing attribution in %q", buf.String())
	}
}

func TestNewRingOnly(t *testing.T) {
	tr, err := New(Config{Level: LevelRepo, Mode: ModeRing, RingSize: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ring, ok := tr.(*RingTracer)
	if !ok {
		t.Fatalf("New returned %T, want *RingTracer", tr)
	}
	for range 3 {
		Begin(ring, ScopeRepo, "r", 0)
	}
	if ring.Len() != 2 {
		t.Fatalf("Len = %d, want 2", ring.Len())
	}
	if _, err := ParseMode("disk"); err == nil {
		t.Fatalf("ParseMode accepted disk")
	}
	if m, err := ParseMode("Both"); err != nil || m != ModeBoth {
		t.Fatalf("ParseMode(Both) = %v, %v", m, err)
	}
}

func TestStreamDropsAfterClose(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelRepo, FormatNDJSON)
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	Begin(tr, ScopeRepo, "late", 0)
	if buf.Len() != 0 || tr.Failed() != 0 {
		t.Fatalf("event written after Close: %q", buf.String())
	}
}

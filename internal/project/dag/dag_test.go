package dag

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func idsToPaths(idx *Index, ids []NodeID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = idx.IDToPath[int(id)]
	}
	return out
}

func TestBuildIndexSortsAndDedups(t *testing.T) {
	idx := BuildIndex([]string{"/r/b/tsconfig.json", "/r/a/tsconfig.json", "/r/b/tsconfig.json", ""})

	want := []string{"/r/a/tsconfig.json", "/r/b/tsconfig.json"}
	if diff := cmp.Diff(want, idx.IDToPath); diff != "" {
		t.Fatalf("IDToPath mismatch (-want +got):\n%s", diff)
	}
	for i, p := range want {
		if id, ok := idx.Lookup(p); !ok || int(id) != i {
			t.Fatalf("Lookup(%q) = %v, %v; want %d", p, id, ok, i)
		}
	}
}

func TestInternAppends(t *testing.T) {
	idx := BuildIndex([]string{"/r/a"})
	id, added := idx.Intern("/r/base.json")
	if !added || id != 1 {
		t.Fatalf("Intern new = %d, %v; want 1, true", id, added)
	}
	id, added = idx.Intern("/r/a")
	if added || id != 0 {
		t.Fatalf("Intern existing = %d, %v; want 0, false", id, added)
	}
	if idx.Len() != 2 {
		t.Fatalf("Len = %d, want 2", idx.Len())
	}
}

func TestLinkMirrorsAndDedups(t *testing.T) {
	e := NewEdges(1)
	if !e.Link(0, 2) {
		t.Fatalf("first link should be recorded")
	}
	if e.Link(0, 2) {
		t.Fatalf("duplicate link should be ignored")
	}
	e.Link(1, 2)

	if diff := cmp.Diff([]NodeID{2}, e.From(0)); diff != "" {
		t.Fatalf("From(0) mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]NodeID{0, 1}, e.To(2)); diff != "" {
		t.Fatalf("To(2) mismatch:\n%s", diff)
	}
	if got := e.From(7); got != nil {
		t.Fatalf("From out of range = %v, want nil", got)
	}
}

func TestClosure(t *testing.T) {
	e := NewEdges(5)
	e.Link(0, 1)
	e.Link(1, 2)
	e.Link(3, 4)

	got := e.Closure([]NodeID{0})
	if len(got) != 2 {
		t.Fatalf("closure size = %d, want 2", len(got))
	}
	for _, id := range []NodeID{1, 2} {
		if _, ok := got[id]; !ok {
			t.Fatalf("closure missing %d", id)
		}
	}
	if _, ok := got[0]; ok {
		t.Fatalf("root should not be in its own closure")
	}
}

func TestToposortDependenciesFirst(t *testing.T) {
	idx := BuildIndex([]string{"app", "core", "util"})
	app, _ := idx.Lookup("app")
	core, _ := idx.Lookup("core")
	util, _ := idx.Lookup("util")

	e := NewEdges(idx.Len())
	e.Link(app, core)
	e.Link(core, util)
	e.Link(app, util)

	topo := ToposortKahn(e, []bool{true, true, true})
	if topo.Cyclic {
		t.Fatalf("expected acyclic graph")
	}
	if diff := cmp.Diff([]string{"util", "core", "app"}, idsToPaths(idx, topo.Order)); diff != "" {
		t.Fatalf("order mismatch:\n%s", diff)
	}
	if len(topo.Batches) != 3 {
		t.Fatalf("batches = %v, want 3 waves", topo.Batches)
	}
}

func TestToposortIgnoresAbsentNodes(t *testing.T) {
	e := NewEdges(3)
	e.Link(0, 1)
	e.Link(2, 1)

	topo := ToposortKahn(e, []bool{true, false, true})
	if topo.Cyclic {
		t.Fatalf("absent dependency must not block ordering")
	}
	if diff := cmp.Diff([][]NodeID{{0, 2}}, topo.Batches); diff != "" {
		t.Fatalf("batches mismatch:\n%s", diff)
	}
}

func TestToposortReportsCycles(t *testing.T) {
	e := NewEdges(3)
	e.Link(0, 1)
	e.Link(1, 0)
	e.Link(2, 2)

	topo := ToposortKahn(e, []bool{true, true, true})
	if !topo.Cyclic {
		t.Fatalf("expected cycle")
	}
	if diff := cmp.Diff([]NodeID{0, 1, 2}, topo.Cycles); diff != "" {
		t.Fatalf("cycles mismatch:\n%s", diff)
	}
	if len(topo.Order) != 0 {
		t.Fatalf("order = %v, want empty", topo.Order)
	}
}

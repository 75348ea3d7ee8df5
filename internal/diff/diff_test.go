package diff

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"errdeltas/internal/diag"
	"errdeltas/internal/repos"
)

var testRepo = repos.Repo{Owner: "o", Name: "n", URL: "https://github.com/o/n"}

const (
	projP = "https://github.com/o/n/blob/abc123/tsconfig.json"
	projQ = "https://github.com/o/n/blob/abc123/packages/q/tsconfig.json"
)

func clean(url string) diag.ProjectErrors {
	return diag.ProjectErrors{ProjectURL: url}
}

func TestCompareSingleNewError(t *testing.T) {
	old := &diag.RepoErrors{Projects: []diag.ProjectErrors{clean(projP)}}
	newer := &diag.RepoErrors{Projects: []diag.ProjectErrors{{
		ProjectURL: projP,
		Errors:     []diag.Diagnostic{{Code: 2345, Text: "Foo", FileURL: "u1", ProjectURL: projP}},
	}}}

	s := Compare(testRepo, old, newer)
	want := []ProjectDiff{{
		ProjectURL: projP,
		Groups:     []Group{{Text: "Foo", Locations: []Location{{Code: 2345, FileURL: "u1"}}}},
		Count:      1,
	}}
	if diff := cmp.Diff(want, s.Projects); diff != "" {
		t.Fatalf("projects mismatch (-want +got):\n%s", diff)
	}
	if !s.SawNewErrors() {
		t.Fatalf("summary should be non-empty")
	}
}

func TestCompareDropsOverwriteInputDiagnostics(t *testing.T) {
	old := &diag.RepoErrors{Projects: []diag.ProjectErrors{clean(projP)}}
	newer := &diag.RepoErrors{Projects: []diag.ProjectErrors{{
		ProjectURL: projP,
		Errors: []diag.Diagnostic{
			{Code: diag.CodeOverwritesInput, Text: "Cannot write file 'a.d.ts'"},
			{Code: diag.CodeOverwritesInput, Text: "Cannot write file 'b.d.ts'"},
		},
	}}}

	s := Compare(testRepo, old, newer)
	if s.SawNewErrors() || len(s.Projects) != 0 {
		t.Fatalf("expected empty summary, got %+v", s)
	}
}

func TestCompareCleanOldAndNewIsEmpty(t *testing.T) {
	old := &diag.RepoErrors{Projects: []diag.ProjectErrors{clean(projP), clean(projQ)}}
	newer := &diag.RepoErrors{Projects: []diag.ProjectErrors{clean(projP), clean(projQ)}}
	if s := Compare(testRepo, old, newer); s.SawNewErrors() {
		t.Fatalf("expected empty summary, got %+v", s)
	}
}

func TestCompareGroupsByTextInFirstSeenOrder(t *testing.T) {
	old := &diag.RepoErrors{Projects: []diag.ProjectErrors{clean(projP)}}
	newer := &diag.RepoErrors{Projects: []diag.ProjectErrors{{
		ProjectURL: projP,
		Errors: []diag.Diagnostic{
			{Code: 2322, Text: "B", FileURL: "f1"},
			{Code: 2345, Text: "A", FileURL: "f2"},
			{Code: 2322, Text: "B", FileURL: "f3"},
			{Code: 5055, Text: "B", FileURL: "f4"},
			{Code: 2345, Text: "A"},
		},
	}}}

	s := Compare(testRepo, old, newer)
	want := []Group{
		{Text: "B", Locations: []Location{{Code: 2322, FileURL: "f1"}, {Code: 2322, FileURL: "f3"}}},
		{Text: "A", Locations: []Location{{Code: 2345, FileURL: "f2"}, {Code: 2345}}},
	}
	if diff := cmp.Diff(want, s.Projects[0].Groups); diff != "" {
		t.Fatalf("groups mismatch (-want +got):\n%s", diff)
	}
	if s.NewErrorCount() != 4 {
		t.Fatalf("NewErrorCount = %d, want 4", s.NewErrorCount())
	}
}

func TestCompareSkipsProjectsThatFailedBefore(t *testing.T) {
	old := &diag.RepoErrors{Projects: []diag.ProjectErrors{
		{ProjectURL: projP, Errors: []diag.Diagnostic{{Code: 2304, Text: "old"}}},
		{ProjectURL: projQ, HasBuildFailure: true},
	}}
	newer := &diag.RepoErrors{Projects: []diag.ProjectErrors{
		{ProjectURL: projP, Errors: []diag.Diagnostic{{Code: 2304, Text: "new"}}},
		{ProjectURL: projQ, Errors: []diag.Diagnostic{{Code: 2304, Text: "new"}}},
	}}
	if s := Compare(testRepo, old, newer); len(s.Projects) != 0 {
		t.Fatalf("pre-existing failures must not be compared: %+v", s.Projects)
	}
}

func TestCompareMissingNewProject(t *testing.T) {
	old := &diag.RepoErrors{Projects: []diag.ProjectErrors{clean(projP)}}
	newer := &diag.RepoErrors{Projects: []diag.ProjectErrors{clean(projQ)}}
	if s := Compare(testRepo, old, newer); s.SawNewErrors() {
		t.Fatalf("missing project should count as no new errors")
	}
}

func TestCompareNewGraphFailure(t *testing.T) {
	old := &diag.RepoErrors{Projects: []diag.ProjectErrors{clean(projP)}}
	newer := &diag.RepoErrors{
		HasConfigFailure: true,
		Projects: []diag.ProjectErrors{{
			ProjectURL: projP,
			Errors:     []diag.Diagnostic{{Code: 2345, Text: "ignored"}},
		}},
	}
	s := Compare(testRepo, old, newer)
	if !s.GraphFailure || !s.SawNewErrors() {
		t.Fatalf("graph failure must force a summary: %+v", s)
	}
	if len(s.Projects) != 0 {
		t.Fatalf("no per-project comparison expected, got %+v", s.Projects)
	}
	if !strings.Contains(s.Markdown(), "Unable to build the project graph with the new tsc") {
		t.Fatalf("markdown missing marker:\n%s", s.Markdown())
	}
}

func TestPrecheck(t *testing.T) {
	tests := []struct {
		name string
		old  diag.RepoErrors
		want Verdict
	}{
		{
			name: "old graph failure",
			old:  diag.RepoErrors{HasConfigFailure: true},
			want: Verdict{Kind: VerdictOldGraphFailure},
		},
		{
			name: "all failed",
			old: diag.RepoErrors{Projects: []diag.ProjectErrors{
				{ProjectURL: projP, HasBuildFailure: true},
				{ProjectURL: projQ, Errors: []diag.Diagnostic{{Code: 1}}},
			}},
			want: Verdict{Kind: VerdictAllOldFailed, NumProjects: 2, NumOldFailed: 2},
		},
		{
			name: "no projects",
			old:  diag.RepoErrors{},
			want: Verdict{Kind: VerdictAllOldFailed},
		},
		{
			name: "some clean",
			old: diag.RepoErrors{Projects: []diag.ProjectErrors{
				clean(projP),
				{ProjectURL: projQ, HasBuildFailure: true},
			}},
			want: Verdict{Kind: VerdictCompare, NumProjects: 2, NumOldFailed: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Precheck(&tt.old)
			if got != tt.want {
				t.Fatalf("Precheck = %+v, want %+v", got, tt.want)
			}
			if got.Skip() != (tt.want.Kind != VerdictCompare) {
				t.Fatalf("Skip mismatch for %v", got.Kind)
			}
		})
	}
}

func TestMarkdown(t *testing.T) {
	s := RepoSummary{
		Repo:         testRepo,
		NumProjects:  3,
		NumOldFailed: 1,
		Projects: []ProjectDiff{
			{
				ProjectURL: projP,
				Groups: []Group{{Text: "Foo", Locations: []Location{
					{FileURL: "https://github.com/o/n/blob/abc123/src/a.ts#L3"},
					{},
				}}},
				Count: 2,
			},
			{
				ProjectURL:  projQ,
				IsComposite: true,
				Groups: []Group{{Text: "Bar", Locations: []Location{{
					FileURL:    "https://github.com/o/n/blob/abc123/packages/q/src/b.ts#L9",
					ProjectURL: "https://github.com/o/n/blob/abc123/packages/q/lib/tsconfig.json",
				}}}},
				Count: 1,
			},
		},
	}

	want := "# [o/n](https://github.com/o/n)\n" +
		"**1 of 3 projects failed to build with the old tsc**\n" +
		"### [tsconfig.json](" + projP + ")\n" +
		" - `Foo`\n" +
		"   - [src/a.ts#L3](https://github.com/o/n/blob/abc123/src/a.ts#L3)\n" +
		"   - Project Scope\n" +
		"### [packages/q/tsconfig.json](" + projQ + ")\n" +
		" - `Bar`\n" +
		"   - [packages/q/src/b.ts#L9](https://github.com/o/n/blob/abc123/packages/q/src/b.ts#L9) in " +
		"[packages/q/lib/tsconfig.json](https://github.com/o/n/blob/abc123/packages/q/lib/tsconfig.json)\n"
	if diff := cmp.Diff(want, s.Markdown()); diff != "" {
		t.Fatalf("markdown mismatch (-want +got):\n%s", diff)
	}
}

func TestMarkdownLinkLeavesOtherURLs(t *testing.T) {
	if got := MarkdownLink("https://example.com/x"); got != "https://example.com/x" {
		t.Fatalf("MarkdownLink = %q", got)
	}
}

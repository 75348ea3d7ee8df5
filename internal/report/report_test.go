package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-github/v68/github"
)

func TestNewIssue(t *testing.T) {
	got := NewIssue("5.4.5", "5.5.2", "# [o/r](https://github.com/o/r)\n", true)
	want := Issue{
		Title: "[NewErrors] 5.5.2 vs 5.4.5",
		Body:  "The following errors were reported by 5.5.2, but not by 5.4.5\n\n# [o/r](https://github.com/o/r)\n",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("issue mismatch (-want +got):\n%s", diff)
	}
	if !NewIssue("a", "b", "", false).Close {
		t.Fatalf("issue without regressions should be closed")
	}
}

func TestNewGitHubFilerRejectsBadRepo(t *testing.T) {
	for _, name := range []string{"", "typescript", "/typescript", "a/b/c"} {
		if _, err := NewGitHubFiler(nil, "", name); !errors.Is(err, ErrIssueRepo) {
			t.Errorf("NewGitHubFiler(%q) err = %v, want ErrIssueRepo", name, err)
		}
	}
}

type issueServer struct {
	mu       sync.Mutex
	requests []string
	bodies   []map[string]any
	auth     string
}

func (s *issueServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.auth = r.Header.Get("Authorization")
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		s.bodies = append(s.bodies, body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"number":7,"html_url":"https://github.com/microsoft/typescript/issues/7"}`)
	})
}

func newTestFiler(t *testing.T, s *issueServer) *GitHubFiler {
	t.Helper()
	srv := httptest.NewServer(s.handler(t))
	t.Cleanup(srv.Close)

	client := github.NewClient(nil)
	base, err := url.Parse(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	client.BaseURL = base
	f, err := NewGitHubFiler(client, "secret", DefaultIssueRepo)
	if err != nil {
		t.Fatalf("NewGitHubFiler: %v", err)
	}
	return f
}

func TestGitHubFilerLeavesRegressionsOpen(t *testing.T) {
	s := &issueServer{}
	f := newTestFiler(t, s)

	filed, err := f.File(context.Background(), NewIssue("1.0", "2.0", "body", true))
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if filed.Number != 7 || filed.Closed {
		t.Fatalf("filed = %+v", filed)
	}
	if diff := cmp.Diff([]string{"POST /repos/microsoft/typescript/issues"}, s.requests); diff != "" {
		t.Fatalf("requests mismatch (-want +got):\n%s", diff)
	}
	if s.bodies[0]["title"] != "[NewErrors] 2.0 vs 1.0" {
		t.Fatalf("title = %v", s.bodies[0]["title"])
	}
	if s.auth != "Bearer secret" {
		t.Fatalf("Authorization = %q", s.auth)
	}
}

func TestGitHubFilerClosesEmptyReport(t *testing.T) {
	s := &issueServer{}
	f := newTestFiler(t, s)

	filed, err := f.File(context.Background(), NewIssue("1.0", "2.0", "", false))
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if !filed.Closed {
		t.Fatalf("issue left open")
	}
	want := []string{
		"POST /repos/microsoft/typescript/issues",
		"PATCH /repos/microsoft/typescript/issues/7",
	}
	if diff := cmp.Diff(want, s.requests); diff != "" {
		t.Fatalf("requests mismatch (-want +got):\n%s", diff)
	}
	if s.bodies[1]["state"] != "closed" {
		t.Fatalf("edit body = %v", s.bodies[1])
	}
}

type record struct {
	Repo      string `msgpack:"repo"`
	NewErrors int    `msgpack:"new_errors"`
}

func TestArchiveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.msgpack")
	a, err := CreateArchive(path)
	if err != nil {
		t.Fatalf("CreateArchive: %v", err)
	}
	in := []record{{Repo: "o/a", NewErrors: 0}, {Repo: "o/b", NewErrors: 3}}
	for _, r := range in {
		if err := a.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if a.Len() != 2 || a.Path() != path {
		t.Fatalf("Len = %d, Path = %q", a.Len(), a.Path())
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	out, err := ReadArchive[record](f)
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("archive mismatch (-want +got):\n%s", diff)
	}
}

func TestReadArchiveEmpty(t *testing.T) {
	out, err := ReadArchive[record](bytes.NewReader(nil))
	if err != nil || len(out) != 0 {
		t.Fatalf("ReadArchive(empty) = %v, %v", out, err)
	}
}

func TestS3UploaderPutsObject(t *testing.T) {
	var (
		mu   sync.Mutex
		got  string
		body []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		got = r.Method + " " + r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "none"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "none"))

	u, err := NewS3Uploader(context.Background(), "runs", "errdeltas", "us-east-1", srv.URL)
	if err != nil {
		t.Fatalf("NewS3Uploader: %v", err)
	}
	path := filepath.Join(t.TempDir(), "run.msgpack")
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := u.Upload(context.Background(), path, "run.msgpack"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if got != "PUT /runs/errdeltas/run.msgpack" {
		t.Fatalf("request = %q", got)
	}
	if !strings.Contains(string(body), "payload") {
		t.Fatalf("body = %q", body)
	}
}

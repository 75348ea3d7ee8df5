package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"errdeltas/internal/repos"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(TokenEnv, " ghp_test ")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Run.Timeout.Duration != 10*time.Minute {
		t.Errorf("timeout = %s", cfg.Run.Timeout)
	}
	if cfg.Scratch.Dir != "/mnt/ts_downloads" || cfg.Scratch.Size != "2g" || !cfg.Scratch.Mount {
		t.Errorf("scratch = %+v", cfg.Scratch)
	}
	if cfg.Issue.Repo != "microsoft/typescript" {
		t.Errorf("issue repo = %q", cfg.Issue.Repo)
	}
	want := []string{
		"https://github.com/storybookjs/storybook",
		"https://github.com/microsoft/frontend-bootcamp",
	}
	if diff := cmp.Diff(want, cfg.Run.Denylist); diff != "" {
		t.Errorf("denylist mismatch (-want +got):\n%s", diff)
	}
	if cfg.Token != "ghp_test" || cfg.StaticRepos {
		t.Errorf("token = %q, static = %v", cfg.Token, cfg.StaticRepos)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "errdeltas.toml", `
[run]
timeout = "90s"
repos = ["https://github.com/octo/app", "https://github.com/octo/lib.git"]
max_diagnostics = 500

[scratch]
dir = "/tmp/errdeltas"
mount = false

[archive]
path = "run.msgpack"
s3_bucket = "runs"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Run.Timeout.Duration != 90*time.Second || cfg.Run.MaxDiagnostics != 500 {
		t.Errorf("run = %+v", cfg.Run)
	}
	if cfg.Scratch.Mount || cfg.Scratch.Dir != "/tmp/errdeltas" || !cfg.Scratch.Sudo {
		t.Errorf("scratch = %+v", cfg.Scratch)
	}
	if !cfg.StaticRepos || cfg.Path != path {
		t.Errorf("static = %v, path = %q", cfg.StaticRepos, cfg.Path)
	}
	src, err := cfg.StaticSource()
	if err != nil {
		t.Fatalf("StaticSource: %v", err)
	}
	want := repos.StaticSource{
		{Owner: "octo", Name: "app", URL: "https://github.com/octo/app"},
		{Owner: "octo", Name: "lib", URL: "https://github.com/octo/lib"},
	}
	if diff := cmp.Diff(want, src); diff != "" {
		t.Errorf("static source mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "errdeltas.toml", "[run]\ntimeuot = \"1m\"\n")
	_, err := Load(path)
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())
	tests := map[string]string{
		"zero timeout": "[run]\ntimeout = \"0s\"\n",
		"bad repo":     "[run]\nrepos = [\"not a url\"]\n",
		"issue repo":   "[issue]\nrepo = \"typescript\"\n",
		"bucket":       "[archive]\ns3_bucket = \"runs\"\n",
		"no size":      "[scratch]\nsize = \"\"\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeFile(t, "c.toml", content)); !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(TokenEnv, "")
	os.Unsetenv(TokenEnv)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(TokenEnv+"=from_dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Token != "from_dotenv" {
		t.Fatalf("token = %q", cfg.Token)
	}
}

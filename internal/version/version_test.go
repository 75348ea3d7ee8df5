package version

import (
	"testing"

	"github.com/fatih/color"
)

func TestVersion_DefaultValues(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
}

func TestColored(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	orig := Version
	t.Cleanup(func() { Version = orig })

	tests := map[string]string{
		"1.2.3":         "1.2.3",
		"0.1.0-dev":     "0.1.0-dev",
		"2.0.0+build.7": "2.0.0+build.7",
		"nightly":       "nightly",
	}
	for in, want := range tests {
		Version = in
		if got := Colored(); got != want {
			t.Errorf("Colored(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestShortCommit(t *testing.T) {
	orig := GitCommit
	t.Cleanup(func() { GitCommit = orig })

	GitCommit = "abc123def4567890"
	if got := ShortCommit(); got != "abc123def456" {
		t.Errorf("ShortCommit = %q", got)
	}
	GitCommit = "abc"
	if got := ShortCommit(); got != "abc" {
		t.Errorf("ShortCommit = %q", got)
	}
}

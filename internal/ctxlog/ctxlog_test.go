package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	logger := New("debug", "text", &buf)
	ctx := WithLogger(context.Background(), logger)

	FromContext(ctx).Debug("cloning", "repo", "a/b")
	if !strings.Contains(buf.String(), "repo=a/b") {
		t.Fatalf("log output missing attribute: %q", buf.String())
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Fatalf("expected default logger")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New("warn", "json", &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("unexpected output %q", out)
	}
}

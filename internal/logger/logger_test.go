package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestTextLoggerWritesAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := Text(&buf, slog.LevelInfo)
	log.Info("training started", "iters", 100)

	out := buf.String()
	if !strings.Contains(out, "training started") {
		t.Errorf("message missing from output: %s", out)
	}
	if !strings.Contains(out, "iters=100") {
		t.Errorf("attribute missing from output: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := Text(&buf, slog.LevelWarn)
	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("suppressed levels leaked: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn record missing: %s", out)
	}
}

func TestWithCarriesAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := Text(&buf, slog.LevelInfo).With("run", "r1")
	log.Info("step")
	if !strings.Contains(buf.String(), "run=r1") {
		t.Errorf("bound attribute missing: %s", buf.String())
	}
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo)
	log.Info("serving", "addr", "127.0.0.1:8080")

	out := buf.String()
	if !strings.Contains(out, `"msg":"serving"`) {
		t.Errorf("JSON output malformed: %s", out)
	}
	if !strings.Contains(out, `"addr":"127.0.0.1:8080"`) {
		t.Errorf("attribute missing: %s", out)
	}
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	log := Console(&buf, slog.LevelInfo)
	log.Info("loss update", "loss", 1.5, "note", "two words")

	out := buf.String()
	if !strings.Contains(out, "loss update") {
		t.Errorf("message missing: %s", out)
	}
	if !strings.Contains(out, "loss=1.5") {
		t.Errorf("numeric attribute missing: %s", out)
	}
	if !strings.Contains(out, `note="two words"`) {
		t.Errorf("string with spaces not quoted: %s", out)
	}
}

func TestConsoleHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	log := Console(&buf, slog.LevelInfo).WithGroup("train").With("run", "r2")
	log.Info("step")
	if !strings.Contains(buf.String(), "train.run=r2") {
		t.Errorf("group prefix missing: %s", buf.String())
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	log := Text(&buf, slog.LevelInfo)
	ctx := WithContext(context.Background(), log)
	FromContext(ctx).Info("from context")
	if !strings.Contains(buf.String(), "from context") {
		t.Errorf("context logger not used: %s", buf.String())
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected a default logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func newTestConsole(buf *bytes.Buffer, level slog.Level) *slog.Logger {
	lvl := new(slog.LevelVar)
	lvl.Set(level)
	return slog.New(newConsoleHandler(buf, lvl))
}

func TestConsoleHandlerFormatsHeaderFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsole(&buf, slog.LevelInfo)

	logger.With(String(FieldComponent, "verify"), String(FieldRunID, "run-1")).
		Info("row verified", Int("row", 7))

	line := buf.String()
	if !strings.Contains(line, "[verify]") {
		t.Fatalf("expected component in header, got %q", line)
	}
	if !strings.Contains(line, "run=run-1") {
		t.Fatalf("expected run id in header, got %q", line)
	}
	if !strings.Contains(line, "row=7") {
		t.Fatalf("expected row attribute, got %q", line)
	}
}

func TestConsoleHandlerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsole(&buf, slog.LevelWarn)

	logger.Info("suppressed")
	logger.Warn("emitted")

	if strings.Contains(buf.String(), "suppressed") {
		t.Fatal("info record should have been suppressed")
	}
	if !strings.Contains(buf.String(), "emitted") {
		t.Fatal("warn record missing")
	}
}

func TestConsoleHandlerFlattensGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestConsole(&buf, slog.LevelInfo)

	logger.WithGroup("counts").Info("done", Int("ok", 3), Int("error", 1))

	line := buf.String()
	if !strings.Contains(line, "counts.ok=3") || !strings.Contains(line, "counts.error=1") {
		t.Fatalf("expected grouped keys, got %q", line)
	}
}

func TestJSONHandlerShape(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	jl := slog.New(newJSONHandler(&buf, lvl))
	jl.Info("hello", String("stage", "verify"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if record["msg"] != "hello" {
		t.Fatalf("unexpected msg: %v", record["msg"])
	}
	if record["level"] != "info" {
		t.Fatalf("unexpected level: %v", record["level"])
	}
	if record["stage"] != "verify" {
		t.Fatalf("unexpected stage: %v", record["stage"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger must report disabled")
	}
}

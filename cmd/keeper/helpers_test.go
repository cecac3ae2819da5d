package main

import (
	"strings"
	"testing"
	"time"
)

func TestRenderTablePadsShortRows(t *testing.T) {
	got := renderTable(
		[]tableColumn{{Title: "Metric"}, {Title: "Count", Numeric: true}},
		[][]string{
			{"Hash groups", "3"},
			{"Members"},
		},
	)
	for _, want := range []string{"Metric", "Count", "Hash groups", "Members"} {
		if !strings.Contains(got, want) {
			t.Fatalf("rendered table missing %q:\n%s", want, got)
		}
	}
	lines := strings.Split(got, "\n")
	// Header separator, two data rows, and the surrounding borders.
	if len(lines) != 6 {
		t.Fatalf("expected 6 rendered lines, got %d:\n%s", len(lines), got)
	}
}

func TestRenderTableEmptyColumns(t *testing.T) {
	if got := renderTable(nil, [][]string{{"orphan"}}); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := formatTimestamp(time.Time{}); got != "-" {
		t.Fatalf("zero time rendered as %q", got)
	}
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	if got := formatTimestamp(at); got != "2026-03-14 09:26:53" {
		t.Fatalf("unexpected timestamp: %q", got)
	}
}

package table

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderAlignsColumnsInOrder(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, []string{"region", "units"}, [][]any{{"North", int64(4)}, {"South", 7.5}, {nil, float64(3)}}, false)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 6 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasPrefix(lines[0], "region  units") {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[2], "North   4") {
		t.Fatalf("row = %q", lines[2])
	}
	if !strings.HasPrefix(lines[4], "NULL    3") {
		t.Fatalf("null row = %q", lines[4])
	}
	if lines[5] != "(3 rows)" {
		t.Fatalf("summary = %q", lines[5])
	}
}

func TestRenderTruncatedSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, []string{"n"}, [][]any{{1}, {2}}, true); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(buf.String(), "(first 2 rows, result truncated)") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestFormatCell(t *testing.T) {
	cases := map[string]any{
		"1200.5": 1200.5,
		"42":     int64(42),
		"a b":    "a\nb",
		"true":   true,
		"NULL":   nil,
	}
	for want, value := range cases {
		if got := FormatCell(value); got != want {
			t.Fatalf("FormatCell(%#v) = %q, want %q", value, got, want)
		}
	}
	long := FormatCell(strings.Repeat("x", 100))
	if len(long) != maxCellWidth || !strings.HasSuffix(long, "...") {
		t.Fatalf("long cell = %q", long)
	}
}

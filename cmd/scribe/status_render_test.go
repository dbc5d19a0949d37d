package main

import (
	"strings"
	"testing"
)

func TestRenderStatusLineAlignsAndLabels(t *testing.T) {
	line := renderStatusLine("structuring", statusOK, "", false)
	if !strings.HasPrefix(line, statusIndent+"structuring") {
		t.Fatalf("unexpected prefix in %q", line)
	}
	if !strings.HasSuffix(line, "ok") {
		t.Fatalf("expected ok label, got %q", line)
	}

	withDetail := renderStatusLine("ffmpeg", statusWarn, "binary not found", false)
	if !strings.Contains(withDetail, "warn") || !strings.Contains(withDetail, "binary not found") {
		t.Fatalf("expected warn label and detail, got %q", withDetail)
	}
	if strings.Contains(withDetail, ansiYellow) {
		t.Fatalf("expected no color codes, got %q", withDetail)
	}
}

func TestRenderStatusLineColorizes(t *testing.T) {
	line := renderStatusLine("failed", statusError, "3", true)
	if !strings.HasPrefix(line, ansiRed) || !strings.HasSuffix(line, ansiReset) {
		t.Fatalf("expected red wrapping, got %q", line)
	}
}

func TestShouldColorizeRespectsNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if shouldColorize(nil) {
		t.Fatal("NO_COLOR must disable colorizing")
	}
}

func TestRenderTableRightAlignsRequestedColumns(t *testing.T) {
	out := renderTable(
		[]string{"ID", "Title"},
		[][]string{{"7", "Cell Division"}, {"12", "Meiosis"}},
		0,
	)
	// Right alignment pushes both ids against the column separator.
	if !strings.Contains(out, " 7 │") || !strings.Contains(out, "12 │") {
		t.Fatalf("expected right-aligned id column in:\n%s", out)
	}
	if !strings.Contains(out, "Cell Division") {
		t.Fatalf("missing row content in:\n%s", out)
	}
}

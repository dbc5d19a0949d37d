package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "scribe.toml")
	content := fmt.Sprintf("[paths]\ndata_dir = %q\nscratch_dir = %q\n",
		filepath.Join(dir, "data"), filepath.Join(dir, "scratch"))
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestAddTextQueuesSource(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCommand(t, "-c", cfgPath, "add", "text", "mitochondria are the powerhouse", "--title", "Bio")
	if err != nil {
		t.Fatalf("add text: %v", err)
	}
	if !strings.Contains(out, "Queued source #1") {
		t.Fatalf("unexpected output: %s", out)
	}

	out, err = runCommand(t, "-c", cfgPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	if !strings.Contains(out, "Bio") || !strings.Contains(out, "pending") {
		t.Fatalf("expected queued source in list, got:\n%s", out)
	}
}

func TestAddTextRequiresContent(t *testing.T) {
	cfgPath := writeTestConfig(t)
	if _, err := runCommand(t, "-c", cfgPath, "add", "text"); err == nil {
		t.Fatal("expected error without text content")
	}
}

func TestAddFileRejectsUnknownExtension(t *testing.T) {
	cfgPath := writeTestConfig(t)
	odd := filepath.Join(t.TempDir(), "notes.xyz")
	if err := os.WriteFile(odd, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := runCommand(t, "-c", cfgPath, "add", "file", odd); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestAddFileClassifiesPDF(t *testing.T) {
	cfgPath := writeTestConfig(t)
	pdf := filepath.Join(t.TempDir(), "chapter.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	out, err := runCommand(t, "-c", cfgPath, "add", "file", pdf, "--title", "Chapter 1")
	if err != nil {
		t.Fatalf("add file: %v", err)
	}
	if !strings.Contains(out, "as pdf") {
		t.Fatalf("expected pdf classification, got: %s", out)
	}
}

func TestQueueHealthOnEmptyQueue(t *testing.T) {
	cfgPath := writeTestConfig(t)
	out, err := runCommand(t, "-c", cfgPath, "queue", "health")
	if err != nil {
		t.Fatalf("queue health: %v", err)
	}
	if !strings.Contains(out, "Sources:    0") {
		t.Fatalf("unexpected health output:\n%s", out)
	}
}

func TestShowWithoutNoteExplainsProgress(t *testing.T) {
	cfgPath := writeTestConfig(t)
	if _, err := runCommand(t, "-c", cfgPath, "add", "text", "some text"); err != nil {
		t.Fatalf("add text: %v", err)
	}
	_, err := runCommand(t, "-c", cfgPath, "show", "1")
	if err == nil || !strings.Contains(err.Error(), "no note for source 1 yet") {
		t.Fatalf("expected pending-note error, got %v", err)
	}
}

func TestQueueListRejectsUnknownStatus(t *testing.T) {
	cfgPath := writeTestConfig(t)
	if _, err := runCommand(t, "-c", cfgPath, "queue", "list", "--status", "bogus"); err == nil {
		t.Fatal("expected error for unknown status filter")
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected output: %s", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config on disk: %v", err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

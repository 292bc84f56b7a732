package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestCheckBinaries(t *testing.T) {
	present := writeScript(t, t.TempDir(), "present", "exit 0")
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Optional", Command: "also-not-present", Optional: true},
		{Name: "Unset"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[3].Detail != "command not configured" {
		t.Fatalf("unexpected detail for unset command: %q", results[3].Detail)
	}

	missing := Missing(results)
	if len(missing) != 2 || missing[0].Name != "Missing" || missing[1].Name != "Unset" {
		t.Fatalf("Missing = %#v", missing)
	}
}

func TestCheckFFmpegReportsVersion(t *testing.T) {
	bin := writeScript(t, t.TempDir(), "ffmpeg", `echo "ffmpeg version 7.1 Copyright"`)
	status := CheckFFmpeg(context.Background(), bin)
	if !status.Available {
		t.Fatalf("expected ffmpeg available, got %#v", status)
	}
	if status.Detail != "ffmpeg version 7.1 Copyright" {
		t.Fatalf("unexpected detail %q", status.Detail)
	}
}

func TestCheckFFmpegBrokenBinary(t *testing.T) {
	bin := writeScript(t, t.TempDir(), "ffmpeg", "exit 3")
	status := CheckFFmpeg(context.Background(), bin)
	if status.Available || status.Detail == "" {
		t.Fatalf("expected failing probe, got %#v", status)
	}
}

func TestCheckFFmpegMissing(t *testing.T) {
	status := CheckFFmpeg(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if status.Available {
		t.Fatal("expected missing ffmpeg to be unavailable")
	}
}

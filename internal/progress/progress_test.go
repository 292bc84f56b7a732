package progress

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestLogTrackerSamplesBuckets(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	tracker := Logs(logger)("rebuild", 100)

	for i := 0; i < 100; i++ {
		tracker.Increment()
	}
	tracker.Finish(false)

	lines := strings.Count(buf.String(), "event_type=progress")
	// First line of the phase, then one per 10% bucket.
	if lines < 10 || lines > 12 {
		t.Fatalf("expected about 11 sampled lines, got %d:\n%s", lines, buf.String())
	}
}

func TestLogTrackerAbortLogsWarning(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	tracker := Logs(logger)("folders", 4)
	tracker.Increment()
	tracker.Finish(true)
	if !strings.Contains(buf.String(), "progress_aborted") {
		t.Fatalf("expected abort line, got %q", buf.String())
	}
}

func TestBarTrackerFinishDoesNotBlock(t *testing.T) {
	var buf bytes.Buffer
	tracker := Bars(&buf)("rebuild", 3)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Increment()
		}()
	}
	wg.Wait()
	// One item never completes; Finish must still return.
	tracker.Finish(false)
	tracker.Finish(false)
}

func TestAutoWithoutTerminalUsesLogs(t *testing.T) {
	if _, ok := Auto(nil, nil)("x", 1).(*logTracker); !ok {
		t.Fatal("expected log tracker when no terminal is attached")
	}
}

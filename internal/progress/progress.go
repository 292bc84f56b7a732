// Package progress reports batch progress as a terminal bar when stderr is a
// TTY and as sampled log lines otherwise.
package progress

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"beatset/internal/logging"
)

// Tracker counts completed items of one batch. Increment is safe for
// concurrent use.
type Tracker interface {
	Increment()
	Finish(aborted bool)
}

// Factory starts a tracker for a named batch of total items.
type Factory func(name string, total int) Tracker

// Auto returns a bar factory when out is a terminal and a log factory
// otherwise.
func Auto(out *os.File, logger *slog.Logger) Factory {
	if out != nil && (isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())) {
		return Bars(out)
	}
	return Logs(logger)
}

// Nop returns a factory whose trackers do nothing.
func Nop() Factory {
	return func(string, int) Tracker { return nopTracker{} }
}

type nopTracker struct{}

func (nopTracker) Increment() {}
func (nopTracker) Finish(bool) {}

// Bars renders one mpb progress bar per batch to out.
func Bars(out io.Writer) Factory {
	return func(name string, total int) Tracker {
		p := mpb.New(mpb.WithWidth(64), mpb.WithOutput(out))
		bar := p.AddBar(int64(total),
			mpb.PrependDecorators(
				decor.Name(name+": "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
				decor.AverageETA(decor.ET_STYLE_GO),
			),
		)
		return &barTracker{progress: p, bar: bar}
	}
}

type barTracker struct {
	progress *mpb.Progress
	bar      *mpb.Bar
	once     sync.Once
}

func (t *barTracker) Increment() { t.bar.Increment() }

// Finish aborts an incomplete bar so Wait cannot block on it.
func (t *barTracker) Finish(aborted bool) {
	t.once.Do(func() {
		if aborted || !t.bar.Completed() {
			t.bar.Abort(false)
		}
		t.progress.Wait()
	})
}

// logBuckets is how many progress lines a log tracker emits per batch.
const logBuckets = 10

// Logs emits an info line for the first item and whenever progress crosses a
// 10% bucket.
func Logs(logger *slog.Logger) Factory {
	logger = logging.NewComponentLogger(logger, "progress")
	return func(name string, total int) Tracker {
		return &logTracker{logger: logger, name: name, total: total, lastBucket: -1}
	}
}

type logTracker struct {
	mu         sync.Mutex
	logger     *slog.Logger
	name       string
	total      int
	done       int
	lastBucket int
}

func (t *logTracker) Increment() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done++
	bucket := logBuckets
	if t.total > 0 {
		bucket = min(t.done*logBuckets/t.total, logBuckets)
	}
	if bucket <= t.lastBucket {
		return
	}
	t.lastBucket = bucket
	t.logger.Info(t.name,
		logging.String(logging.FieldProgress, fmt.Sprintf("%d/%d", t.done, t.total)),
		logging.Int("percent", bucket*100/logBuckets),
		logging.String(logging.FieldEventType, "progress"))
}

func (t *logTracker) Finish(aborted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if aborted {
		t.logger.Warn(t.name+" interrupted",
			logging.String(logging.FieldProgress, fmt.Sprintf("%d/%d", t.done, t.total)),
			logging.String(logging.FieldEventType, "progress_aborted"))
	}
}

package preflight

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"beatset/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks that apply to cfg. The ffmpeg check is skipped
// when use_cache is set, since such builds never decode audio.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckReadableDirectory("Songs directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Cache directory", cfg.Cache.Dir),
	}
	if !cfg.AudioProcessing.UseCache {
		results = append(results, CheckFFmpeg(ctx, cfg))
	}
	return results
}

// Failed joins every failed result into one error, or returns nil.
func Failed(results []Result) error {
	var msgs []string
	for _, r := range results {
		if !r.Passed {
			msgs = append(msgs, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return errors.New("preflight failed: " + strings.Join(msgs, "; "))
}

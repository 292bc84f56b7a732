package featurecache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"beatset/internal/audio"
	"beatset/internal/logging"
	"beatset/internal/progress"
	"beatset/internal/services"
)

const lockFilename = ".rebuild.lock"

// Extractor computes a feature table from decoded audio.
type Extractor interface {
	Params() audio.Params
	Extract(pcm audio.PCM) (*audio.FeatureTable, error)
}

// Options configures a Cache.
type Options struct {
	Store     Store
	Decoder   audio.Decoder
	Extractor Extractor
	// LockDir holds the rebuild lock file. Empty disables locking.
	LockDir      string
	Workers      int
	VerifySource bool
	Logger       *slog.Logger
	Progress     progress.Factory
}

// Cache couples a Store with the decode and extract steps that fill it.
type Cache struct {
	store     Store
	decoder   audio.Decoder
	extractor Extractor
	lockDir   string
	workers   int
	verify    bool
	logger    *slog.Logger
	progress  progress.Factory
}

// New validates opts and returns a Cache. Decoder and Extractor may be nil
// for read-only use; Rebuild then fails.
func New(opts Options) (*Cache, error) {
	if opts.Store == nil {
		return nil, errors.New("featurecache: store is required")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	prog := opts.Progress
	if prog == nil {
		prog = progress.Nop()
	}
	return &Cache{
		store:     opts.Store,
		decoder:   opts.Decoder,
		extractor: opts.Extractor,
		lockDir:   opts.LockDir,
		workers:   workers,
		verify:    opts.VerifySource,
		logger:    logging.NewComponentLogger(opts.Logger, "featurecache"),
		progress:  prog,
	}, nil
}

// Store returns the underlying store.
func (c *Cache) Store() Store { return c.store }

// Load returns the cached feature table of source. It never computes: an
// absent, stale or mismatched artifact is reported as ErrCacheMiss.
func (c *Cache) Load(ctx context.Context, source string, want audio.Params) (*audio.FeatureTable, error) {
	artifact, err := c.store.Get(ctx, source)
	if err != nil {
		return nil, err
	}
	if artifact.Params != want {
		c.logger.Debug("cached params differ from config",
			logging.String(logging.FieldSource, source))
		return nil, ErrCacheMiss
	}
	if c.verify {
		sum, err := hashFile(source)
		if err != nil || sum != artifact.SourceHash {
			c.logger.Debug("cached artifact is stale",
				logging.String(logging.FieldSource, source))
			return nil, ErrCacheMiss
		}
	}
	return artifact.Table, nil
}

// Remove invalidates the artifact of every source under the rebuild lock.
// Absent artifacts are not an error.
func (c *Cache) Remove(ctx context.Context, sources []string) error {
	unlock, err := c.lock()
	if err != nil {
		return err
	}
	defer unlock()
	return c.invalidate(ctx, sources)
}

func (c *Cache) invalidate(ctx context.Context, sources []string) error {
	var errs []error
	for _, source := range sources {
		if err := c.store.Invalidate(ctx, source); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", source, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalidate cache: %w", errors.Join(errs...))
	}
	c.logger.Info("invalidated feature cache",
		logging.Int("sources", len(sources)),
		logging.String(logging.FieldEventType, "cache_invalidated"))
	return nil
}

// SourceFailure records one source that could not be cached.
type SourceFailure struct {
	Source string
	Err    error
}

// RebuildReport summarizes a rebuild batch.
type RebuildReport struct {
	Requested int
	Written   int
	Failed    []SourceFailure
	// Skipped counts sources never dispatched because the context ended.
	Skipped  int
	Swept    int
	Duration time.Duration
}

// Rebuild decodes, extracts and persists every source on a bounded pool. A
// failing source is recorded in the report and does not stop the batch. On
// cancellation no new sources start; committed artifacts are untouched and
// the context error is returned alongside the partial report.
func (c *Cache) Rebuild(ctx context.Context, sources []string) (RebuildReport, error) {
	report := RebuildReport{Requested: len(sources)}
	if err := c.canCompute(); err != nil {
		return report, err
	}
	unlock, err := c.lock()
	if err != nil {
		return report, err
	}
	defer unlock()
	return c.rebuild(ctx, sources)
}

// Recalculate invalidates and then rebuilds sources while holding the rebuild
// lock once, so a concurrent writer never sees its artifacts removed. When
// the lock is taken nothing is invalidated and ErrCacheLocked is returned.
func (c *Cache) Recalculate(ctx context.Context, sources []string) (RebuildReport, error) {
	report := RebuildReport{Requested: len(sources)}
	if err := c.canCompute(); err != nil {
		return report, err
	}
	unlock, err := c.lock()
	if err != nil {
		return report, err
	}
	defer unlock()
	if err := c.invalidate(ctx, sources); err != nil {
		return report, err
	}
	return c.rebuild(ctx, sources)
}

func (c *Cache) canCompute() error {
	if c.decoder == nil || c.extractor == nil {
		return errors.New("featurecache: rebuild requires a decoder and extractor")
	}
	return nil
}

// rebuild expects the caller to hold the rebuild lock.
func (c *Cache) rebuild(ctx context.Context, sources []string) (RebuildReport, error) {
	report := RebuildReport{Requested: len(sources)}
	start := time.Now()

	if s, ok := c.store.(sweeper); ok {
		swept, err := s.Sweep()
		if err != nil {
			c.logger.Warn("failed to sweep partial artifacts", logging.Error(err))
		}
		report.Swept = swept
	}

	c.logger.Info("rebuilding feature cache",
		logging.Int("sources", len(sources)),
		logging.Int("workers", c.workers),
		logging.String(logging.FieldEventType, "cache_rebuild_start"))

	tracker := c.progress("features", len(sources))
	results := make([]error, len(sources))
	dispatched := make([]bool, len(sources))

	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, source := range sources {
		if ctx.Err() != nil {
			break
		}
		dispatched[i] = true
		g.Go(func() error {
			results[i] = c.compute(ctx, source)
			tracker.Increment()
			return nil
		})
	}
	_ = g.Wait()
	tracker.Finish(ctx.Err() != nil)

	for i, source := range sources {
		switch {
		case !dispatched[i]:
			report.Skipped++
		case results[i] == nil:
			report.Written++
		default:
			report.Failed = append(report.Failed, SourceFailure{Source: source, Err: results[i]})
			if ctx.Err() == nil {
				logging.WarnWithContext(c.logger, "feature extraction failed",
					"cache_source_failed",
					logging.String(logging.FieldSource, source),
					logging.String("error_kind", services.Kind(results[i])),
					logging.Error(results[i]),
					logging.String(logging.FieldErrorHint, "check the audio file decodes with ffmpeg"),
					logging.String(logging.FieldImpact, "folders using this source will be skipped"))
			}
		}
	}
	report.Duration = time.Since(start)

	c.logger.Info("feature cache rebuilt",
		logging.Int("written", report.Written),
		logging.Int("failed", len(report.Failed)),
		logging.Int("skipped", report.Skipped),
		logging.Duration("duration", report.Duration),
		logging.String(logging.FieldEventType, "cache_rebuild_complete"))

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (c *Cache) compute(ctx context.Context, source string) error {
	pcm, err := c.decoder.Decode(ctx, source)
	if err != nil {
		return services.Wrap(services.ErrAudioDecode, "featurecache", "decode", source, err)
	}
	table, err := c.extractor.Extract(pcm)
	if err != nil {
		return services.Wrap(services.ErrAudioDecode, "featurecache", "extract", source, err)
	}
	sum, err := hashFile(source)
	if err != nil {
		return services.Wrap(services.ErrAudioDecode, "featurecache", "hash", source, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	artifact := &Artifact{
		Source:     source,
		Params:     c.extractor.Params(),
		SourceHash: sum,
		CreatedAt:  time.Now(),
		Table:      table,
	}
	if err := c.store.Put(ctx, artifact); err != nil {
		return services.Wrap(services.ErrCacheWrite, "featurecache", "put", source, err)
	}
	c.logger.Debug("cached features",
		logging.String(logging.FieldSource, source),
		logging.Int("frames", table.Frames()))
	return nil
}

func (c *Cache) lock() (func(), error) {
	if c.lockDir == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(c.lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	lock := flock.New(filepath.Join(c.lockDir, lockFilename))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire rebuild lock: %w", err)
	}
	if !ok {
		return nil, ErrCacheLocked
	}
	return func() { _ = lock.Unlock() }, nil
}

// Stats reports the store's contents.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	return c.store.Stats(ctx)
}

// Clear removes every artifact. It takes the rebuild lock.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	unlock, err := c.lock()
	if err != nil {
		return 0, err
	}
	defer unlock()
	return c.store.Clear(ctx)
}

func hashFile(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	h := xxhash.New64()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"beatset/internal/audio"
	"beatset/internal/config"
	"beatset/internal/featurecache"
	"beatset/internal/folderproc"
	"beatset/internal/logging"
	"beatset/internal/progress"
	"beatset/internal/services"
	"beatset/internal/snippets"
	"beatset/internal/songtable"
)

// FeatureCache is the part of featurecache.Cache the builder drives.
type FeatureCache interface {
	Recalculate(ctx context.Context, sources []string) (featurecache.RebuildReport, error)
}

// FolderProcessor turns one folder into rows.
type FolderProcessor interface {
	Process(ctx context.Context, folder string, progress folderproc.Progress) (*songtable.Table, error)
}

// Options wires a Builder.
type Options struct {
	Config    *config.Config
	Cache     FeatureCache
	Processor FolderProcessor
	Logger    *slog.Logger
	Progress  progress.Factory
}

// Builder runs the dataset pipeline.
type Builder struct {
	cfg       *config.Config
	cache     FeatureCache
	processor FolderProcessor
	logger    *slog.Logger
	progress  progress.Factory
}

// NewBuilder validates opts.
func NewBuilder(opts Options) (*Builder, error) {
	if opts.Config == nil {
		return nil, errors.New("dataset: config is required")
	}
	if opts.Processor == nil {
		return nil, errors.New("dataset: folder processor is required")
	}
	if opts.Cache == nil && !opts.Config.AudioProcessing.UseCache {
		return nil, errors.New("dataset: feature cache is required when use_cache is false")
	}
	prog := opts.Progress
	if prog == nil {
		prog = progress.Nop()
	}
	return &Builder{
		cfg:       opts.Config,
		cache:     opts.Cache,
		processor: opts.Processor,
		logger:    logging.NewComponentLogger(opts.Logger, "dataset"),
		progress:  prog,
	}, nil
}

// Dataset is the ordered snippet collection of one build. Groups hold the
// full time-ordered rows each group's snippets window over.
type Dataset struct {
	RunID    string
	Groups   []songtable.Group
	Snippets []snippets.Snippet
	Window   snippets.Options
	Params   audio.Params
}

// FolderFailure records a folder that produced no rows.
type FolderFailure struct {
	Folder string
	Kind   string
	Err    error
}

// PhaseTiming is the wall time of one build step.
type PhaseTiming struct {
	Name     string
	Duration time.Duration
}

// Report summarizes a build, including failed ones.
type Report struct {
	RunID     string
	Attempted int
	Succeeded int
	Failed    []FolderFailure
	Rows      int
	Groups    int
	Snippets  int
	Rebuild   *featurecache.RebuildReport
	Phases    []PhaseTiming
}

// Build runs every step to completion before starting the next: cache
// rebuild (unless use_cache), folder processing on the worker pool,
// filtering, concatenation and per-group windowing. It returns
// services.ErrEmptyCorpus when no folder produced rows.
func (b *Builder) Build(ctx context.Context, folders []string) (_ *Dataset, report Report, err error) {
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, b.logger)
	report = Report{RunID: runID, Attempted: len(folders)}
	timer := newPhaseTimer(logger)
	defer func() { report.Phases = timer.phases }()

	logger.Info("creating dataset from song folders",
		logging.Int("folders", len(folders)),
		logging.Int("workers", b.cfg.WorkerCount()),
		logging.Bool("use_cache", b.cfg.AudioProcessing.UseCache),
		logging.String(logging.FieldEventType, "build_start"))

	if !b.cfg.AudioProcessing.UseCache {
		rebuild, err := b.recalculate(services.WithPhase(ctx, "features"), folders)
		report.Rebuild = rebuild
		if err != nil {
			return nil, report, err
		}
	}
	timer.mark("recalculated feature cache")

	tables, errs := b.dispatch(services.WithPhase(ctx, "folders"), folders)
	timer.mark("processed song folders")
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	surviving := make([]*songtable.Table, 0, len(tables))
	for i, table := range tables {
		if errs[i] != nil {
			report.Failed = append(report.Failed, FolderFailure{
				Folder: folders[i],
				Kind:   services.Kind(errs[i]),
				Err:    errs[i],
			})
			continue
		}
		surviving = append(surviving, table)
	}
	report.Succeeded = len(surviving)
	timer.mark("filtered failed folders")

	if len(surviving) == 0 {
		return nil, report, services.Wrap(services.ErrEmptyCorpus, "dataset", "build",
			fmt.Sprintf("no folder produced rows (%d attempted)", len(folders)), nil)
	}

	combined := songtable.Concat(surviving...)
	report.Rows = combined.Len()
	timer.mark("concatenated tables")

	window := snippets.OptionsFromConfig(b.cfg)
	ds := &Dataset{RunID: runID, Window: window, Params: audio.ParamsFromConfig(b.cfg)}
	for _, group := range combined.Groups() {
		ds.Groups = append(ds.Groups, group)
		ds.Snippets = append(ds.Snippets, snippets.Generate(group, window)...)
	}
	report.Groups = len(ds.Groups)
	report.Snippets = len(ds.Snippets)
	timer.mark("generated snippets")

	logger.Info("dataset built",
		logging.Int("succeeded", report.Succeeded),
		logging.Int("failed", len(report.Failed)),
		logging.Int("rows", report.Rows),
		logging.Int("groups", report.Groups),
		logging.Int("snippets", report.Snippets),
		logging.String(logging.FieldEventType, "build_complete"))
	return ds, report, nil
}

func (b *Builder) recalculate(ctx context.Context, folders []string) (*featurecache.RebuildReport, error) {
	sources := featurecache.SourcePaths(folders, b.logger)
	rebuild, err := b.cache.Recalculate(ctx, sources)
	if err != nil {
		return &rebuild, fmt.Errorf("recalculate features: %w", err)
	}
	return &rebuild, nil
}

// dispatch processes every folder exactly once on the worker pool. Results
// are indexed by submission order; a folder not started because ctx ended
// carries the context error.
func (b *Builder) dispatch(ctx context.Context, folders []string) ([]*songtable.Table, []error) {
	tables := make([]*songtable.Table, len(folders))
	errs := make([]error, len(folders))
	tracker := b.progress("folders", len(folders))

	var g errgroup.Group
	g.SetLimit(b.cfg.WorkerCount())
	for i, folder := range folders {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		prog := folderproc.Progress{Index: i, Total: len(folders)}
		g.Go(func() error {
			defer tracker.Increment()
			tables[i], errs[i] = b.processOne(ctx, folder, prog)
			return nil
		})
	}
	_ = g.Wait()
	tracker.Finish(ctx.Err() != nil)
	return tables, errs
}

func (b *Builder) processOne(ctx context.Context, folder string, prog folderproc.Progress) (table *songtable.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			table = nil
			err = services.Wrap(services.ErrFolderParse, "dataset", "process folder", folder, fmt.Errorf("panic: %v", r))
		}
		if err != nil && ctx.Err() == nil {
			logging.WarnWithContext(logging.WithContext(ctx, b.logger), "song folder skipped",
				"folder_skipped",
				logging.String(logging.FieldFolder, folder),
				logging.String(logging.FieldProgress, prog.String()),
				logging.String("error_kind", services.Kind(err)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, hintFor(err)),
				logging.String(logging.FieldImpact, "folder excluded from dataset"))
		}
	}()

	table, err = b.processor.Process(ctx, folder, prog)
	if err != nil {
		return nil, err
	}
	if table.Len() == 0 {
		return nil, services.Wrap(services.ErrFolderParse, "dataset", "process folder", folder, errors.New("no rows"))
	}
	return table, nil
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, services.ErrAudioDecode):
		return "run 'beatset cache rebuild' or set audio_processing.use_cache = false"
	case errors.Is(err, services.ErrFolderParse):
		return "check info.dat and the difficulty files"
	default:
		return "check logs for details"
	}
}

type phaseTimer struct {
	logger *slog.Logger
	last   time.Time
	phases []PhaseTiming
}

func newPhaseTimer(logger *slog.Logger) *phaseTimer {
	return &phaseTimer{logger: logger, last: time.Now()}
}

func (t *phaseTimer) mark(name string) {
	now := time.Now()
	elapsed := now.Sub(t.last)
	t.last = now
	t.phases = append(t.phases, PhaseTiming{Name: name, Duration: elapsed})
	t.logger.Info(name,
		logging.Duration("elapsed", elapsed),
		logging.String(logging.FieldEventType, "phase_complete"))
}

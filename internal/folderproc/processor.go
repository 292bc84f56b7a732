// Package folderproc turns one song folder into aligned note rows.
package folderproc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"beatset/internal/audio"
	"beatset/internal/beatmap"
	"beatset/internal/logging"
	"beatset/internal/services"
	"beatset/internal/songtable"
)

// Progress locates a folder within its batch. It is only used for logging.
type Progress struct {
	Index int
	Total int
}

func (p Progress) String() string {
	return fmt.Sprintf("%d/%d", p.Index+1, p.Total)
}

// FeatureLoader reads cached feature tables. It must never compute.
type FeatureLoader interface {
	Load(ctx context.Context, source string, want audio.Params) (*audio.FeatureTable, error)
}

// Processor parses charts and joins them with cached features. It holds no
// mutable state and is safe for concurrent use.
type Processor struct {
	loader FeatureLoader
	params audio.Params
	logger *slog.Logger
}

// New returns a Processor reading features computed with params.
func New(loader FeatureLoader, params audio.Params, logger *slog.Logger) *Processor {
	return &Processor{
		loader: loader,
		params: params,
		logger: logging.NewComponentLogger(logger, "folderproc"),
	}
}

// Process returns the folder's rows across all difficulties, sorted by time
// then hand. On failure the table is nil and the error carries
// services.ErrFolderParse or services.ErrAudioDecode.
func (p *Processor) Process(ctx context.Context, folder string, progress Progress) (*songtable.Table, error) {
	logger := logging.WithContext(ctx, p.logger).With(
		logging.String(logging.FieldFolder, folder),
		logging.String(logging.FieldProgress, progress.String()),
	)

	info, err := beatmap.ReadInfo(folder)
	if err != nil {
		return nil, services.Wrap(services.ErrFolderParse, "folderproc", "read info", folder, err)
	}

	charts, chartErrs := beatmap.ReadCharts(folder, info)
	if len(charts) == 0 {
		if len(chartErrs) == 0 {
			chartErrs = append(chartErrs, errors.New("info lists no difficulties"))
		}
		return nil, services.Wrap(services.ErrFolderParse, "folderproc", "read charts", folder, errors.Join(chartErrs...))
	}
	for _, chartErr := range chartErrs {
		logging.WarnWithContext(logger, "skipping unreadable difficulty",
			"difficulty_skipped",
			logging.Error(chartErr),
			logging.String(logging.FieldErrorHint, "check the chart file is valid JSON"),
			logging.String(logging.FieldImpact, "difficulty excluded from dataset"))
	}

	source, err := beatmap.AudioSource(folder, info)
	if err != nil {
		return nil, services.Wrap(services.ErrAudioDecode, "folderproc", "locate audio", folder, err)
	}
	features, err := p.loader.Load(ctx, source, p.params)
	if err != nil {
		return nil, services.Wrap(services.ErrAudioDecode, "folderproc", "load features", source, err)
	}

	song := songtable.FolderKey(folder)
	title := strings.TrimSpace(info.SongName)
	table := &songtable.Table{}
	dropped := 0
	for _, chart := range charts {
		for _, note := range chart.Beatmap.Notes {
			hand, ok := beatmap.HandForNoteType(note.Type)
			if !ok {
				continue
			}
			lanes := beatmap.LaneValuesOf(note)
			if !lanes.Valid() {
				dropped++
				continue
			}
			seconds := note.Time * 60 / info.BeatsPerMinute
			frame, ok := features.FrameAt(seconds)
			if !ok {
				dropped++
				continue
			}
			table.Rows = append(table.Rows, songtable.Row{
				Song:       song,
				Title:      title,
				Difficulty: chart.Difficulty,
				Beat:       note.Time,
				Time:       seconds,
				Frame:      frame,
				Hand:       hand,
				Lanes:      lanes,
				Features:   features.Row(frame),
			})
		}
	}

	if table.Len() == 0 {
		return nil, services.Wrap(services.ErrFolderParse, "folderproc", "align", folder,
			fmt.Errorf("no usable rows (%d notes outside audio or schema)", dropped))
	}
	table.Sort()

	logger.Debug("processed song folder",
		logging.String(logging.FieldSource, source),
		logging.Int("difficulties", len(charts)),
		logging.Int("rows", table.Len()),
		logging.Int("dropped", dropped))
	return table, nil
}

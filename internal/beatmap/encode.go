package beatmap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Predictions is a wide per-time-step table of lane probabilities. Columns are
// named by hand prefix and lane (see Column); each column holds one
// probability vector per time step.
type Predictions struct {
	Times   []float64              `json:"times"`
	Columns map[string][][]float64 `json:"columns"`
}

// ReadPredictions loads a predictions table from a JSON file.
func ReadPredictions(path string) (*Predictions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Predictions
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse predictions: %w", err)
	}
	return &p, nil
}

func (p *Predictions) validate() error {
	for name, column := range p.Columns {
		if !knownColumn(name) {
			return fmt.Errorf("unknown column %q", name)
		}
		if len(column) != len(p.Times) {
			return fmt.Errorf("column %q has %d rows, want %d", name, len(column), len(p.Times))
		}
	}
	for _, hand := range Hands {
		var missing []string
		for _, lane := range Lanes {
			if _, ok := p.Columns[Column(hand, lane)]; !ok {
				missing = append(missing, Column(hand, lane))
			}
		}
		if len(missing) > 0 && len(missing) < len(Lanes) {
			return fmt.Errorf("partial lane columns: missing %s", strings.Join(missing, ", "))
		}
	}
	return nil
}

func knownColumn(name string) bool {
	for _, hand := range Hands {
		for _, lane := range Lanes {
			if name == Column(hand, lane) {
				return true
			}
		}
	}
	return false
}

// Encode converts predictions into a chart. For each hand in order, every
// time step becomes one note whose lane values are the arg-max of that hand's
// probability vectors. A hand must carry all of its lane columns or none;
// hands without columns emit nothing. events are passed through unchanged.
func Encode(p *Predictions, bpm float64, events []Event) (Beatmap, Info, error) {
	if p == nil {
		return Beatmap{}, Info{}, fmt.Errorf("encode: nil predictions")
	}
	if bpm <= 0 {
		return Beatmap{}, Info{}, fmt.Errorf("encode: bpm must be positive, got %v", bpm)
	}
	if err := p.validate(); err != nil {
		return Beatmap{}, Info{}, fmt.Errorf("encode: %w", err)
	}
	if events == nil {
		events = []Event{}
	}

	notes := make([]Note, 0, len(p.Times)*len(Hands))
	for _, hand := range Hands {
		if _, ok := p.Columns[Column(hand, Lanes[0])]; !ok {
			continue
		}
		columns := make([][][]float64, len(Lanes))
		for i, lane := range Lanes {
			columns[i] = p.Columns[Column(hand, lane)]
		}
		for row, t := range p.Times {
			var values LaneValues
			for i, column := range columns {
				probs := column[row]
				if len(probs) == 0 {
					return Beatmap{}, Info{}, fmt.Errorf("encode: empty probability vector in %s row %d", Column(hand, Lanes[i]), row)
				}
				values[i] = floats.MaxIdx(probs)
			}
			notes = append(notes, Note{
				Time:         t,
				Type:         int(hand),
				LineIndex:    values[LaneLineIndex],
				LineLayer:    values[LaneLineLayer],
				CutDirection: values[LaneCutDirection],
			})
		}
	}

	bm := Beatmap{Version: "2.0.0", Notes: notes, Events: events}
	return bm, NewInfo(bpm), nil
}

// Output file names written by WriteChart.
const (
	InfoFilename  = "info.dat"
	ChartFilename = "Expert.dat"
	songFilename  = "song.egg"
)

// NewInfo returns the fixed metadata record for a generated chart.
func NewInfo(bpm float64) Info {
	return Info{
		Version:            "2.0.0",
		SongName:           "beatset",
		SongAuthorName:     "beatset",
		LevelAuthorName:    "beatset",
		BeatsPerMinute:     bpm,
		ShufflePeriod:      0.5,
		PreviewStartTime:   12,
		PreviewDuration:    10,
		SongFilename:       songFilename,
		CoverImageFilename: "cover.jpg",
		EnvironmentName:    "DefaultEnvironment",
		DifficultyBeatmapSets: []DifficultyBeatmapSet{{
			Characteristic: "Standard",
			DifficultyBeatmaps: []DifficultyBeatmap{{
				Difficulty:            "Expert",
				DifficultyRank:        7,
				BeatmapFilename:       ChartFilename,
				NoteJumpMovementSpeed: 16,
			}},
		}},
	}
}

// WriteChart writes info.dat and Expert.dat into dir.
func WriteChart(dir string, bm Beatmap, info Info) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("write chart: output directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	for name, payload := range map[string]any{InfoFilename: info, ChartFilename: bm} {
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("write chart: encode %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
	}
	return nil
}

package beatmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Indicator file names marking a song folder, matched case-insensitively.
var indicatorNames = []string{"info.dat", "info.json"}

// ErrNoIndicator is returned when a folder has no info file.
var ErrNoIndicator = errors.New("no info.dat or info.json in folder")

// Note is one chart note. Field order matches the emitted JSON.
type Note struct {
	Time         float64 `json:"_time"`
	Type         int     `json:"_type"`
	LineIndex    int     `json:"_lineIndex"`
	LineLayer    int     `json:"_lineLayer"`
	CutDirection int     `json:"_cutDirection"`
}

// Event is a lighting event, passed through untouched.
type Event struct {
	Time  float64 `json:"_time"`
	Type  int     `json:"_type"`
	Value int     `json:"_value"`
}

// Beatmap is one difficulty chart.
type Beatmap struct {
	Version   string            `json:"_version,omitempty"`
	Notes     []Note            `json:"_notes"`
	Events    []Event           `json:"_events"`
	Obstacles []json.RawMessage `json:"_obstacles,omitempty"`

	// BeatsPerMinute is only present in legacy charts.
	BeatsPerMinute float64 `json:"_beatsPerMinute,omitempty"`
}

// Info is the song metadata file.
type Info struct {
	Version               string                 `json:"_version"`
	SongName              string                 `json:"_songName"`
	SongSubName           string                 `json:"_songSubName"`
	SongAuthorName        string                 `json:"_songAuthorName"`
	LevelAuthorName       string                 `json:"_levelAuthorName"`
	BeatsPerMinute        float64                `json:"_beatsPerMinute"`
	SongTimeOffset        float64                `json:"_songTimeOffset"`
	Shuffle               float64                `json:"_shuffle"`
	ShufflePeriod         float64                `json:"_shufflePeriod"`
	PreviewStartTime      float64                `json:"_previewStartTime"`
	PreviewDuration       float64                `json:"_previewDuration"`
	SongFilename          string                 `json:"_songFilename"`
	CoverImageFilename    string                 `json:"_coverImageFilename"`
	EnvironmentName       string                 `json:"_environmentName"`
	DifficultyBeatmapSets []DifficultyBeatmapSet `json:"_difficultyBeatmapSets"`
}

// DifficultyBeatmapSet groups the charts of one characteristic.
type DifficultyBeatmapSet struct {
	Characteristic     string              `json:"_beatmapCharacteristicName"`
	DifficultyBeatmaps []DifficultyBeatmap `json:"_difficultyBeatmaps"`
}

// DifficultyBeatmap points at one chart file.
type DifficultyBeatmap struct {
	Difficulty              string  `json:"_difficulty"`
	DifficultyRank          int     `json:"_difficultyRank"`
	BeatmapFilename         string  `json:"_beatmapFilename"`
	NoteJumpMovementSpeed   float64 `json:"_noteJumpMovementSpeed"`
	NoteJumpStartBeatOffset float64 `json:"_noteJumpStartBeatOffset"`
}

// legacyInfo is the pre-v2 info.json layout.
type legacyInfo struct {
	SongName         string  `json:"songName"`
	SongSubName      string  `json:"songSubName"`
	AuthorName       string  `json:"authorName"`
	BeatsPerMinute   float64 `json:"beatsPerMinute"`
	PreviewStartTime float64 `json:"previewStartTime"`
	PreviewDuration  float64 `json:"previewDuration"`
	CoverImagePath   string  `json:"coverImagePath"`
	EnvironmentName  string  `json:"environmentName"`
	DifficultyLevels []struct {
		Difficulty     string `json:"difficulty"`
		DifficultyRank int    `json:"difficultyRank"`
		AudioPath      string `json:"audioPath"`
		JSONPath       string `json:"jsonPath"`
	} `json:"difficultyLevels"`
}

// Chart is a parsed difficulty together with the label used for grouping.
type Chart struct {
	Difficulty string
	Path       string
	Beatmap    *Beatmap
}

// FindIndicator returns the info file inside folder, preferring info.dat.
func FindIndicator(folder string) (string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return "", err
	}
	found := make(map[string]string, len(indicatorNames))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		lower := strings.ToLower(entry.Name())
		for _, name := range indicatorNames {
			if lower == name {
				if _, dup := found[name]; !dup {
					found[name] = entry.Name()
				}
			}
		}
	}
	for _, name := range indicatorNames {
		if actual, ok := found[name]; ok {
			return filepath.Join(folder, actual), nil
		}
	}
	return "", ErrNoIndicator
}

// IsIndicator reports whether a file name marks a song folder.
func IsIndicator(name string) bool {
	lower := strings.ToLower(name)
	for _, candidate := range indicatorNames {
		if lower == candidate {
			return true
		}
	}
	return false
}

// ReadInfo locates and parses the info file of a song folder. Legacy
// info.json files are converted to the v2 layout.
func ReadInfo(folder string) (*Info, error) {
	path, err := FindIndicator(folder)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Base(path), "info.json") {
		return parseLegacyInfo(data)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if info.BeatsPerMinute <= 0 {
		return nil, fmt.Errorf("parse %s: _beatsPerMinute must be positive", filepath.Base(path))
	}
	return &info, nil
}

func parseLegacyInfo(data []byte) (*Info, error) {
	var legacy legacyInfo
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("parse info.json: %w", err)
	}
	if legacy.BeatsPerMinute <= 0 {
		return nil, errors.New("parse info.json: beatsPerMinute must be positive")
	}
	info := &Info{
		Version:            "1.0.0",
		SongName:           legacy.SongName,
		SongSubName:        legacy.SongSubName,
		SongAuthorName:     legacy.AuthorName,
		BeatsPerMinute:     legacy.BeatsPerMinute,
		PreviewStartTime:   legacy.PreviewStartTime,
		PreviewDuration:    legacy.PreviewDuration,
		CoverImageFilename: legacy.CoverImagePath,
		EnvironmentName:    legacy.EnvironmentName,
	}
	set := DifficultyBeatmapSet{Characteristic: "Standard"}
	for _, level := range legacy.DifficultyLevels {
		if info.SongFilename == "" {
			info.SongFilename = level.AudioPath
		}
		set.DifficultyBeatmaps = append(set.DifficultyBeatmaps, DifficultyBeatmap{
			Difficulty:      level.Difficulty,
			DifficultyRank:  level.DifficultyRank,
			BeatmapFilename: level.JSONPath,
		})
	}
	info.DifficultyBeatmapSets = []DifficultyBeatmapSet{set}
	return info, nil
}

// ReadBeatmap parses a difficulty chart file.
func ReadBeatmap(path string) (*Beatmap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var bm Beatmap
	if err := json.Unmarshal(data, &bm); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return &bm, nil
}

// Charts lists the difficulty files referenced by info. Difficulties outside
// the Standard characteristic are labelled "<characteristic>/<difficulty>".
func (info *Info) Charts() []Chart {
	var charts []Chart
	for _, set := range info.DifficultyBeatmapSets {
		for _, diff := range set.DifficultyBeatmaps {
			label := diff.Difficulty
			if set.Characteristic != "" && !strings.EqualFold(set.Characteristic, "Standard") {
				label = set.Characteristic + "/" + diff.Difficulty
			}
			charts = append(charts, Chart{Difficulty: label, Path: diff.BeatmapFilename})
		}
	}
	return charts
}

// ReadCharts parses every chart referenced by info relative to folder. A chart
// that fails to parse is reported in errs; the rest are still returned.
func ReadCharts(folder string, info *Info) (charts []Chart, errs []error) {
	for _, chart := range info.Charts() {
		if strings.TrimSpace(chart.Path) == "" {
			errs = append(errs, fmt.Errorf("difficulty %s: missing beatmap filename", chart.Difficulty))
			continue
		}
		path := filepath.Join(folder, filepath.FromSlash(chart.Path))
		bm, err := ReadBeatmap(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("difficulty %s: %w", chart.Difficulty, err))
			continue
		}
		chart.Path = path
		chart.Beatmap = bm
		charts = append(charts, chart)
	}
	return charts, errs
}

// AudioSource returns the audio file of a song folder: the info file's
// _songFilename when it exists, otherwise the first .ogg or .egg file.
func AudioSource(folder string, info *Info) (string, error) {
	if info != nil && strings.TrimSpace(info.SongFilename) != "" {
		path := filepath.Join(folder, filepath.FromSlash(info.SongFilename))
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	entries, err := os.ReadDir(folder)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".ogg", ".egg":
			return filepath.Join(folder, entry.Name()), nil
		}
	}
	return "", fmt.Errorf("no audio source in %s", folder)
}

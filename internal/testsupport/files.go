package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"beatset/internal/beatmap"
)

// Song describes a song folder fixture.
type Song struct {
	Name  string
	BPM   float64
	Audio string
	// Charts maps difficulty names to their notes. Nil notes write a chart
	// file that is not valid JSON.
	Charts map[string][]beatmap.Note
	// Order fixes the difficulty order in info.dat; defaults to sorted keys.
	Order []string
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteSongFolder writes info.dat, one chart per difficulty and a placeholder
// audio file under root/song.Name, returning the folder path.
func WriteSongFolder(t testing.TB, root string, song Song) string {
	t.Helper()
	folder := filepath.Join(root, song.Name)
	if song.BPM == 0 {
		song.BPM = 60
	}
	if song.Audio == "" {
		song.Audio = "song.egg"
	}
	order := song.Order
	if len(order) == 0 {
		for name := range song.Charts {
			order = append(order, name)
		}
		slices.Sort(order)
	}

	set := beatmap.DifficultyBeatmapSet{Characteristic: "Standard"}
	for _, name := range order {
		filename := name + ".dat"
		set.DifficultyBeatmaps = append(set.DifficultyBeatmaps, beatmap.DifficultyBeatmap{
			Difficulty:      name,
			BeatmapFilename: filename,
		})
		notes := song.Charts[name]
		if notes == nil {
			WriteFile(t, filepath.Join(folder, filename), []byte("{corrupt"))
			continue
		}
		writeJSON(t, filepath.Join(folder, filename), beatmap.Beatmap{Version: "2.0.0", Notes: notes, Events: []beatmap.Event{}})
	}

	info := beatmap.Info{
		Version:               "2.0.0",
		SongName:              song.Name,
		BeatsPerMinute:        song.BPM,
		SongFilename:          song.Audio,
		DifficultyBeatmapSets: []beatmap.DifficultyBeatmapSet{set},
	}
	writeJSON(t, filepath.Join(folder, "info.dat"), info)
	WriteFile(t, filepath.Join(folder, song.Audio), []byte("audio:"+song.Name))
	return folder
}

// Notes returns n left/right alternating notes, one per beat starting at beat 0.
func Notes(n int) []beatmap.Note {
	notes := make([]beatmap.Note, n)
	for i := range notes {
		notes[i] = beatmap.Note{
			Time:         float64(i),
			Type:         i % 2,
			LineIndex:    i % 4,
			LineLayer:    i % 3,
			CutDirection: i % 9,
		}
	}
	return notes
}

func writeJSON(t testing.TB, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", path, err)
	}
	WriteFile(t, path, data)
}

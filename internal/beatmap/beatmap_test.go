package beatmap_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"beatset/internal/beatmap"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestEncodeSingleHandRow(t *testing.T) {
	p := &beatmap.Predictions{
		Times: []float64{4},
		Columns: map[string][][]float64{
			"l_lineIndex":    {{0, 1, 0}},
			"l_lineLayer":    {{0, 0, 1}},
			"l_cutDirection": {{0, 0, 0, 0, 0, 0, 0, 0, 1}},
		},
	}
	bm, info, err := beatmap.Encode(p, 120, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(bm.Notes) != 1 {
		t.Fatalf("notes = %d, want 1", len(bm.Notes))
	}
	note := bm.Notes[0]
	if note.Type != int(beatmap.HandLeft) || note.LineIndex != 1 || note.LineLayer != 2 || note.CutDirection != 8 || note.Time != 4 {
		t.Fatalf("unexpected note %+v", note)
	}
	if info.BeatsPerMinute != 120 {
		t.Fatalf("_beatsPerMinute = %v, want 120", info.BeatsPerMinute)
	}
	if bm.Events == nil {
		t.Fatal("expected empty events slice, got nil")
	}
}

func TestEncodeOrdersLeftBeforeRight(t *testing.T) {
	p := &beatmap.Predictions{
		Times: []float64{1, 2},
		Columns: map[string][][]float64{
			"r_lineIndex":    {{0, 0, 0, 1}, {1, 0, 0, 0}},
			"r_lineLayer":    {{0, 0, 1}, {0, 1, 0}},
			"r_cutDirection": {{0, 0, 0, 0, 0, 0, 0, 0, 1}, {1, 0, 0, 0, 0, 0, 0, 0, 0}},
			"l_lineIndex":    {{1, 0, 0, 0}, {0, 1, 0, 0}},
			"l_lineLayer":    {{1, 0, 0}, {0, 0, 1}},
			"l_cutDirection": {{0, 1, 0, 0, 0, 0, 0, 0, 0}, {0, 0, 1, 0, 0, 0, 0, 0, 0}},
		},
	}
	events := []beatmap.Event{{Time: 0, Type: 1, Value: 3}}
	bm, _, err := beatmap.Encode(p, 90, events)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []beatmap.Note{
		{Time: 1, Type: 0, LineIndex: 0, LineLayer: 0, CutDirection: 1},
		{Time: 2, Type: 0, LineIndex: 1, LineLayer: 2, CutDirection: 2},
		{Time: 1, Type: 1, LineIndex: 3, LineLayer: 2, CutDirection: 8},
		{Time: 2, Type: 1, LineIndex: 0, LineLayer: 1, CutDirection: 0},
	}
	if len(bm.Notes) != len(want) {
		t.Fatalf("notes = %d, want %d", len(bm.Notes), len(want))
	}
	for i := range want {
		if bm.Notes[i] != want[i] {
			t.Fatalf("note %d = %+v, want %+v", i, bm.Notes[i], want[i])
		}
	}
	if len(bm.Events) != 1 || bm.Events[0] != events[0] {
		t.Fatalf("events not passed through: %+v", bm.Events)
	}
}

func TestEncodeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		p    *beatmap.Predictions
		bpm  float64
	}{
		{"nil", nil, 120},
		{"zero bpm", &beatmap.Predictions{}, 0},
		{"empty vector", &beatmap.Predictions{Times: []float64{0}, Columns: map[string][][]float64{
			"l_lineIndex": {{}}, "l_lineLayer": {{1}}, "l_cutDirection": {{1}},
		}}, 120},
		{"partial hand", &beatmap.Predictions{Times: []float64{0}, Columns: map[string][][]float64{
			"r_lineIndex": {{0, 1}}, "r_lineLayer": {{1}},
		}}, 120},
		{"ragged", &beatmap.Predictions{Times: []float64{0, 1}, Columns: map[string][][]float64{"l_lineIndex": {{1}}}}, 120},
		{"unknown column", &beatmap.Predictions{Times: []float64{0}, Columns: map[string][][]float64{"x_speed": {{1}}}}, 120},
	}
	for _, tt := range tests {
		if _, _, err := beatmap.Encode(tt.p, tt.bpm, nil); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestNoteJSONFieldOrder(t *testing.T) {
	data, err := json.Marshal(beatmap.Note{Time: 1, Type: 1, LineIndex: 2, LineLayer: 0, CutDirection: 8})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"_time":1,"_type":1,"_lineIndex":2,"_lineLayer":0,"_cutDirection":8}`
	if string(data) != want {
		t.Fatalf("json = %s, want %s", data, want)
	}
}

func TestReadInfoAndCharts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Info.dat"), `{
		"_songName": "Song",
		"_beatsPerMinute": 128,
		"_songFilename": "song.egg",
		"_difficultyBeatmapSets": [
			{"_beatmapCharacteristicName": "Standard", "_difficultyBeatmaps": [
				{"_difficulty": "Hard", "_beatmapFilename": "Hard.dat"},
				{"_difficulty": "Expert", "_beatmapFilename": "Expert.dat"}
			]},
			{"_beatmapCharacteristicName": "OneSaber", "_difficultyBeatmaps": [
				{"_difficulty": "Expert", "_beatmapFilename": "OneExpert.dat"}
			]}
		]
	}`)
	writeFile(t, filepath.Join(dir, "Hard.dat"), `{"_notes":[{"_time":1,"_type":0,"_lineIndex":1,"_lineLayer":0,"_cutDirection":1}]}`)
	writeFile(t, filepath.Join(dir, "Expert.dat"), `{not json`)
	writeFile(t, filepath.Join(dir, "OneExpert.dat"), `{"_notes":[]}`)
	writeFile(t, filepath.Join(dir, "song.egg"), "audio")

	info, err := beatmap.ReadInfo(dir)
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if info.BeatsPerMinute != 128 || info.SongName != "Song" {
		t.Fatalf("unexpected info %+v", info)
	}

	charts, errs := beatmap.ReadCharts(dir, info)
	if len(charts) != 2 || len(errs) != 1 {
		t.Fatalf("charts=%d errs=%d, want 2 and 1", len(charts), len(errs))
	}
	if charts[0].Difficulty != "Hard" || charts[1].Difficulty != "OneSaber/Expert" {
		t.Fatalf("unexpected labels %q %q", charts[0].Difficulty, charts[1].Difficulty)
	}
	if len(charts[0].Beatmap.Notes) != 1 {
		t.Fatalf("expected one note in Hard chart")
	}

	source, err := beatmap.AudioSource(dir, info)
	if err != nil || filepath.Base(source) != "song.egg" {
		t.Fatalf("AudioSource = %q, %v", source, err)
	}
}

func TestReadLegacyInfo(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "info.json"), `{
		"songName": "Old",
		"beatsPerMinute": 100,
		"difficultyLevels": [{"difficulty": "Normal", "audioPath": "song.ogg", "jsonPath": "Normal.json"}]
	}`)
	info, err := beatmap.ReadInfo(dir)
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if info.SongFilename != "song.ogg" || info.BeatsPerMinute != 100 {
		t.Fatalf("unexpected legacy conversion %+v", info)
	}
	charts := info.Charts()
	if len(charts) != 1 || charts[0].Difficulty != "Normal" || charts[0].Path != "Normal.json" {
		t.Fatalf("unexpected charts %+v", charts)
	}
}

func TestAudioSourceFallsBackToOgg(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "track.OGG"), "audio")
	source, err := beatmap.AudioSource(dir, &beatmap.Info{SongFilename: "missing.egg"})
	if err != nil || filepath.Base(source) != "track.OGG" {
		t.Fatalf("AudioSource = %q, %v", source, err)
	}
	if _, err := beatmap.AudioSource(t.TempDir(), nil); err == nil {
		t.Fatal("expected error without audio")
	}
}

func TestFindIndicatorMissing(t *testing.T) {
	if _, err := beatmap.FindIndicator(t.TempDir()); !errors.Is(err, beatmap.ErrNoIndicator) {
		t.Fatalf("expected ErrNoIndicator, got %v", err)
	}
}

func TestWriteChart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	bm, info, err := beatmap.Encode(&beatmap.Predictions{}, 120, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := beatmap.WriteChart(dir, bm, info); err != nil {
		t.Fatalf("WriteChart: %v", err)
	}
	got, err := beatmap.ReadInfo(dir)
	if err != nil {
		t.Fatalf("ReadInfo: %v", err)
	}
	if got.BeatsPerMinute != 120 {
		t.Fatalf("round trip bpm = %v", got.BeatsPerMinute)
	}
}

func TestHandForNoteType(t *testing.T) {
	if h, ok := beatmap.HandForNoteType(1); !ok || h != beatmap.HandRight {
		t.Fatalf("type 1 = %v, %v", h, ok)
	}
	if _, ok := beatmap.HandForNoteType(3); ok {
		t.Fatal("bombs must not map to a hand")
	}
	if beatmap.Column(beatmap.HandLeft, beatmap.Lanes[beatmap.LaneCutDirection]) != "l_cutDirection" {
		t.Fatal("unexpected column name")
	}
}

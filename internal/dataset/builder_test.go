package dataset_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"

	"beatset/internal/audio"
	"beatset/internal/beatmap"
	"beatset/internal/config"
	"beatset/internal/dataset"
	"beatset/internal/featurecache"
	"beatset/internal/folderproc"
	"beatset/internal/services"
	"beatset/internal/snippets"
	"beatset/internal/songtable"
	"beatset/internal/testsupport"
)

type harness struct {
	cfg       *config.Config
	store     *featurecache.MemoryStore
	decoder   *testsupport.FakeDecoder
	extractor *testsupport.FakeExtractor
	cache     *featurecache.Cache
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithWindow(4, 2)}, opts...)...)
	h := &harness{
		cfg:       cfg,
		store:     featurecache.NewMemoryStore(),
		decoder:   testsupport.NewFakeDecoder(cfg, "undecodable"),
		extractor: testsupport.NewFakeExtractor(cfg),
	}
	cache, err := featurecache.New(featurecache.Options{
		Store:     h.store,
		Decoder:   h.decoder,
		Extractor: h.extractor,
		LockDir:   cfg.Cache.Dir,
		Workers:   2,
	})
	if err != nil {
		t.Fatalf("featurecache.New: %v", err)
	}
	h.cache = cache
	return h
}

func (h *harness) builder(t *testing.T, processor dataset.FolderProcessor) *dataset.Builder {
	t.Helper()
	if processor == nil {
		processor = folderproc.New(h.cache, audio.ParamsFromConfig(h.cfg), nil)
	}
	b, err := dataset.NewBuilder(dataset.Options{Config: h.cfg, Cache: h.cache, Processor: processor})
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}
	return b
}

func (h *harness) song(t *testing.T, name string, charts map[string][]beatmap.Note) string {
	t.Helper()
	return testsupport.WriteSongFolder(t, h.cfg.Paths.DataDir, testsupport.Song{Name: name, Charts: charts})
}

func TestBuildSnippetCountMatchesGroups(t *testing.T) {
	h := newHarness(t)
	folders := []string{
		h.song(t, "one", map[string][]beatmap.Note{"Easy": testsupport.Notes(9), "Expert": testsupport.Notes(12)}),
		h.song(t, "two", map[string][]beatmap.Note{"Hard": testsupport.Notes(3)}),
		h.song(t, "three", map[string][]beatmap.Note{"Normal": testsupport.Notes(4)}),
	}

	ds, report, err := h.builder(t, nil).Build(context.Background(), folders)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	window := snippets.Options{WindowLength: 4, Stride: 2}
	want := snippets.Count(9, window) + snippets.Count(12, window) + snippets.Count(3, window) + snippets.Count(4, window)
	if len(ds.Snippets) != want || report.Snippets != want {
		t.Fatalf("snippets = %d (report %d), want %d", len(ds.Snippets), report.Snippets, want)
	}
	if report.Succeeded != 3 || report.Rows != 28 || report.Groups != 4 {
		t.Fatalf("unexpected report %+v", report)
	}
	wantGroups := []songtable.GroupKey{{Song: "one", Difficulty: "Easy"}, {Song: "one", Difficulty: "Expert"}, {Song: "two", Difficulty: "Hard"}, {Song: "three", Difficulty: "Normal"}}
	for i, key := range wantGroups {
		if ds.Groups[i].Key != key {
			t.Fatalf("group %d = %+v, want %+v", i, ds.Groups[i].Key, key)
		}
	}
	for _, snip := range ds.Snippets {
		for _, row := range snip.Rows {
			if songtable.KeyOf(row) != snip.Key {
				t.Fatalf("snippet %+v crosses into %+v", snip.Key, songtable.KeyOf(row))
			}
		}
	}
	if report.Rebuild == nil || report.Rebuild.Written != 3 {
		t.Fatalf("expected rebuild of 3 sources, got %+v", report.Rebuild)
	}
	if len(report.Phases) != 5 {
		t.Fatalf("phases = %d, want 5", len(report.Phases))
	}
}

func TestBuildWithUseCacheDoesNoCacheWork(t *testing.T) {
	h := newHarness(t)
	folders := []string{
		h.song(t, "one", map[string][]beatmap.Note{"Expert": testsupport.Notes(6)}),
		h.song(t, "two", map[string][]beatmap.Note{"Expert": testsupport.Notes(6)}),
	}
	if _, err := h.cache.Rebuild(context.Background(), featurecache.SourcePaths(folders, nil)); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	decodes, extracts, puts := h.decoder.Calls(), h.extractor.Calls(), h.store.Puts

	h.cfg.AudioProcessing.UseCache = true
	ds, report, err := h.builder(t, nil).Build(context.Background(), folders)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if h.decoder.Calls() != decodes || h.extractor.Calls() != extracts || h.store.Puts != puts {
		t.Fatal("use_cache build must not decode, extract or write")
	}
	if h.store.Invalidations != 0 {
		t.Fatalf("use_cache build invalidated %d entries", h.store.Invalidations)
	}
	if report.Rebuild != nil || len(ds.Snippets) == 0 {
		t.Fatalf("unexpected result: rebuild=%+v snippets=%d", report.Rebuild, len(ds.Snippets))
	}
}

func TestBuildUseCacheWithColdCacheSkipsFolders(t *testing.T) {
	h := newHarness(t, testsupport.WithUseCache(true))
	folders := []string{h.song(t, "cold", map[string][]beatmap.Note{"Expert": testsupport.Notes(6)})}

	_, report, err := h.builder(t, nil).Build(context.Background(), folders)
	if !errors.Is(err, services.ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
	if h.decoder.Calls() != 0 {
		t.Fatal("folder processing must never compute features")
	}
	if len(report.Failed) != 1 || report.Failed[0].Kind != "audio_decode" {
		t.Fatalf("unexpected failures %+v", report.Failed)
	}
}

func TestBuildSkipsBrokenSiblings(t *testing.T) {
	h := newHarness(t)
	folders := []string{
		h.song(t, "good", map[string][]beatmap.Note{"Expert": testsupport.Notes(8)}),
		h.song(t, "corrupt", map[string][]beatmap.Note{"Expert": nil}),
		h.song(t, "undecodable", map[string][]beatmap.Note{"Expert": testsupport.Notes(8)}),
	}

	ds, report, err := h.builder(t, nil).Build(context.Background(), folders)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report.Succeeded != 1 || len(report.Failed) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	kinds := map[string]string{}
	for _, f := range report.Failed {
		kinds[f.Folder] = f.Kind
	}
	if kinds[folders[1]] != "folder_parse" || kinds[folders[2]] != "audio_decode" {
		t.Fatalf("unexpected failure kinds %v", kinds)
	}
	if len(ds.Groups) != 1 || ds.Groups[0].Key.Song != songtable.FolderKey(folders[0]) {
		t.Fatalf("unexpected groups %+v", ds.Groups)
	}
	if len(report.Rebuild.Failed) != 1 {
		t.Fatalf("expected one rebuild failure, got %+v", report.Rebuild.Failed)
	}
}

func TestBuildAllFailingIsEmptyCorpus(t *testing.T) {
	h := newHarness(t)
	folders := []string{
		h.song(t, "a", map[string][]beatmap.Note{"Expert": nil}),
		h.song(t, "b", map[string][]beatmap.Note{"Expert": nil}),
	}
	ds, report, err := h.builder(t, nil).Build(context.Background(), folders)
	if !errors.Is(err, services.ErrEmptyCorpus) || ds != nil {
		t.Fatalf("expected ErrEmptyCorpus, got ds=%v err=%v", ds, err)
	}
	if report.Attempted != 2 || len(report.Failed) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}

	if _, _, err := h.builder(t, nil).Build(context.Background(), nil); !errors.Is(err, services.ErrEmptyCorpus) {
		t.Fatalf("expected ErrEmptyCorpus for no folders, got %v", err)
	}
}

type panickyProcessor struct {
	inner dataset.FolderProcessor
	bad   string
}

func (p panickyProcessor) Process(ctx context.Context, folder string, prog folderproc.Progress) (*songtable.Table, error) {
	if folder == p.bad {
		panic(fmt.Sprintf("boom in %s", folder))
	}
	return p.inner.Process(ctx, folder, prog)
}

func TestBuildRecoversWorkerPanic(t *testing.T) {
	h := newHarness(t)
	good := h.song(t, "good", map[string][]beatmap.Note{"Expert": testsupport.Notes(8)})
	bad := h.song(t, "bad", map[string][]beatmap.Note{"Expert": testsupport.Notes(8)})
	proc := panickyProcessor{inner: folderproc.New(h.cache, audio.ParamsFromConfig(h.cfg), nil), bad: bad}

	_, report, err := h.builder(t, proc).Build(context.Background(), []string{good, bad})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if report.Succeeded != 1 || len(report.Failed) != 1 || report.Failed[0].Folder != bad {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestBuildCancelled(t *testing.T) {
	h := newHarness(t, testsupport.WithUseCache(true))
	folders := []string{h.song(t, "one", map[string][]beatmap.Note{"Expert": testsupport.Notes(6)})}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := h.builder(t, nil).Build(ctx, folders); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewBuilderRequiresCacheWhenRecomputing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cache, err := featurecache.New(featurecache.Options{Store: featurecache.NewMemoryStore()})
	if err != nil {
		t.Fatalf("featurecache.New: %v", err)
	}
	proc := folderproc.New(cache, audio.ParamsFromConfig(cfg), nil)
	if _, err := dataset.NewBuilder(dataset.Options{Config: cfg, Processor: proc}); err == nil {
		t.Fatal("expected error without cache")
	}
}

func TestBuildKeepsCacheWhenRebuildLocked(t *testing.T) {
	h := newHarness(t)
	folders := []string{h.song(t, "one", map[string][]beatmap.Note{"Expert": testsupport.Notes(6)})}
	if _, err := h.cache.Rebuild(context.Background(), featurecache.SourcePaths(folders, nil)); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if err := os.MkdirAll(h.cfg.Cache.Dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	lock := flock.New(filepath.Join(h.cfg.Cache.Dir, ".rebuild.lock"))
	if ok, err := lock.TryLock(); !ok || err != nil {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	defer lock.Unlock()

	_, _, err := h.builder(t, nil).Build(context.Background(), folders)
	if !errors.Is(err, featurecache.ErrCacheLocked) {
		t.Fatalf("expected ErrCacheLocked, got %v", err)
	}
	if h.store.Len() != 1 || h.store.Invalidations != 0 {
		t.Fatalf("cache modified while locked: len=%d invalidations=%d", h.store.Len(), h.store.Invalidations)
	}
}

func TestBuildSeparatesSameNamedFolders(t *testing.T) {
	h := newHarness(t, testsupport.WithWindow(4, 1))
	packA := filepath.Join(h.cfg.Paths.DataDir, "packA")
	packB := filepath.Join(h.cfg.Paths.DataDir, "packB")
	folders := []string{
		testsupport.WriteSongFolder(t, packA, testsupport.Song{Name: "1001", Charts: map[string][]beatmap.Note{"Expert": testsupport.Notes(3)}}),
		testsupport.WriteSongFolder(t, packB, testsupport.Song{Name: "1001", Charts: map[string][]beatmap.Note{"Expert": testsupport.Notes(3)}}),
	}

	ds, _, err := h.builder(t, nil).Build(context.Background(), folders)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(ds.Groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(ds.Groups))
	}
	if ds.Groups[0].Key.Song == ds.Groups[1].Key.Song {
		t.Fatalf("folders share song key %q", ds.Groups[0].Key.Song)
	}
	if len(ds.Snippets) != 0 {
		t.Fatalf("snippets = %d, want 0 (each group has 3 rows, window 4)", len(ds.Snippets))
	}
}

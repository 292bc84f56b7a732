package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"beatset/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Chdir(tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, "beatmaps")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	wantCache := filepath.Join(tempHome, ".cache", "beatset", "features")
	if cfg.Cache.Dir != wantCache {
		t.Fatalf("unexpected cache dir: got %q want %q", cfg.Cache.Dir, wantCache)
	}
	if cfg.Cache.Backend != config.CacheBackendFile {
		t.Fatalf("unexpected cache backend: %q", cfg.Cache.Backend)
	}
	if !cfg.AudioProcessing.UseCache {
		t.Fatal("expected use_cache enabled by default")
	}
	if cfg.Snippets.WindowLength != config.Default().Snippets.WindowLength {
		t.Fatalf("unexpected window length: %d", cfg.Snippets.WindowLength)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.OutputDir, cfg.Paths.LogDir, cfg.Cache.Dir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "beatset.toml")

	type payload struct {
		AudioProcessing struct {
			UseCache  bool `toml:"use_cache"`
			HopLength int  `toml:"hop_length"`
		} `toml:"audio_processing"`
		Snippets struct {
			WindowLength int `toml:"window_length"`
			Stride       int `toml:"stride"`
		} `toml:"snippets"`
		Cache struct {
			Dir     string `toml:"dir"`
			Backend string `toml:"backend"`
		} `toml:"cache"`
	}
	custom := payload{}
	custom.AudioProcessing.UseCache = false
	custom.AudioProcessing.HopLength = 256
	custom.Snippets.WindowLength = 32
	custom.Snippets.Stride = 8
	custom.Cache.Dir = filepath.Join(tempDir, "features")
	custom.Cache.Backend = " Badger "

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.AudioProcessing.UseCache {
		t.Fatal("expected use_cache=false from file")
	}
	if cfg.AudioProcessing.HopLength != 256 {
		t.Fatalf("unexpected hop length: %d", cfg.AudioProcessing.HopLength)
	}
	if cfg.Snippets.WindowLength != 32 || cfg.Snippets.Stride != 8 {
		t.Fatalf("unexpected snippet settings: %+v", cfg.Snippets)
	}
	if cfg.Cache.Backend != config.CacheBackendBadger {
		t.Fatalf("expected backend normalized to badger, got %q", cfg.Cache.Backend)
	}
	if cfg.AudioProcessing.SampleRate != config.Default().AudioProcessing.SampleRate {
		t.Fatalf("expected default sample rate to survive partial file, got %d", cfg.AudioProcessing.SampleRate)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "beatset.toml")
	if err := os.WriteFile(configPath, []byte("[snippets]\nwindow_lenght = 4\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dataDir := t.TempDir()
	t.Setenv("BEATSET_DATA_DIR", dataDir)
	t.Setenv("BEATSET_USE_CACHE", "false")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.DataDir != dataDir {
		t.Fatalf("expected data dir from env, got %q", cfg.Paths.DataDir)
	}
	if cfg.AudioProcessing.UseCache {
		t.Fatal("expected BEATSET_USE_CACHE=false to disable the cache")
	}
}

func TestEnvOverrideRejectsBadBool(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("BEATSET_USE_CACHE", "maybe")
	if _, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected invalid BEATSET_USE_CACHE to fail")
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"backend", func(c *config.Config) { c.Cache.Backend = "redis" }, "cache.backend"},
		{"sample rate", func(c *config.Config) { c.AudioProcessing.SampleRate = 0 }, "sample_rate"},
		{"hop", func(c *config.Config) { c.AudioProcessing.HopLength = -1 }, "hop_length"},
		{"mfcc above mels", func(c *config.Config) { c.AudioProcessing.NMFCC = c.AudioProcessing.NMels + 1 }, "n_mfcc"},
		{"mels above bins", func(c *config.Config) {
			c.AudioProcessing.NFFT = 16
			c.AudioProcessing.NMFCC = 4
		}, "n_mels"},
		{"window", func(c *config.Config) { c.Snippets.WindowLength = 0 }, "window_length"},
		{"stride", func(c *config.Config) { c.Snippets.Stride = 0 }, "stride"},
		{"split", func(c *config.Config) { c.Split.Validation = 0.5 }, "split.validation"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestWorkerCountDefaultsToCPUs(t *testing.T) {
	cfg := config.Default()
	if got := cfg.WorkerCount(); got != runtime.NumCPU() {
		t.Fatalf("WorkerCount = %d, want %d", got, runtime.NumCPU())
	}
	cfg.Workers.Count = 3
	if got := cfg.WorkerCount(); got != 3 {
		t.Fatalf("WorkerCount = %d, want 3", got)
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Snippets.Stride != 50 {
		t.Fatalf("unexpected stride from sample: %d", cfg.Snippets.Stride)
	}
}

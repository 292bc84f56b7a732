package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains corpus, output, and log directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	OutputDir string `toml:"output_dir"`
	LogDir    string `toml:"log_dir"`
}

// Cache contains configuration for the persistent feature cache.
type Cache struct {
	Dir     string `toml:"dir"`
	Backend string `toml:"backend"` // "file" or "badger"
	// VerifySource hashes the source audio on every read and treats a changed
	// file as a cache miss.
	VerifySource bool `toml:"verify_source"`
}

// AudioProcessing contains decoding and MFCC extraction parameters.
type AudioProcessing struct {
	UseCache     bool   `toml:"use_cache"`
	SampleRate   int    `toml:"sample_rate"`
	NMFCC        int    `toml:"n_mfcc"`
	NMels        int    `toml:"n_mels"`
	NFFT         int    `toml:"n_fft"`
	HopLength    int    `toml:"hop_length"`
	FFmpegBinary string `toml:"ffmpeg_binary"`
}

// Snippets contains training window parameters.
type Snippets struct {
	WindowLength int `toml:"window_length"`
	Stride       int `toml:"stride"`
}

// Workers contains worker pool sizing. Count <= 0 means one worker per CPU.
type Workers struct {
	Count int `toml:"count"`
}

// Split contains the corpus split fractions used by `build --split`.
type Split struct {
	Train      float64 `toml:"train"`
	Validation float64 `toml:"validation"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for beatset.
//
// Configuration sections by subsystem:
//   - Paths: corpus root, dataset output and log directories
//   - Cache: feature cache location, backend and staleness checks
//   - AudioProcessing: cache gate plus decoder and MFCC parameters
//   - Snippets: window length and stride for training snippets
//   - Workers: folder processing pool size
//   - Split: train/validation/test fractions
//   - Logging: log format and level
type Config struct {
	Paths           Paths           `toml:"paths"`
	Cache           Cache           `toml:"cache"`
	AudioProcessing AudioProcessing `toml:"audio_processing"`
	Snippets        Snippets        `toml:"snippets"`
	Workers         Workers         `toml:"workers"`
	Split           Split           `toml:"split"`
	Logging         Logging         `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/beatset/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("beatset.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output, log and cache directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir, c.Cache.Dir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WorkerCount returns the effective folder processing pool size.
func (c *Config) WorkerCount() int {
	if c.Workers.Count > 0 {
		return c.Workers.Count
	}
	return runtime.NumCPU()
}

// FFmpegBinary returns the ffmpeg executable used to decode audio sources.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.AudioProcessing.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "beatset", "features")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/beatset/features"
	}
	return filepath.Join(home, ".cache", "beatset", "features")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML, used by `beatset config show`.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

package featurecache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"beatset/internal/config"
	"beatset/internal/logging"
)

const (
	artifactExt = ".feat"
	tempPattern = ".feat-*.tmp"
)

// FileStore keeps one compressed artifact file per source in a flat
// directory.
type FileStore struct {
	dir    string
	codec  *codec
	logger *slog.Logger
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	c, err := newCodec()
	if err != nil {
		return nil, err
	}
	return &FileStore{
		dir:    dir,
		codec:  c,
		logger: logging.NewComponentLogger(logger, "featurecache"),
	}, nil
}

func (s *FileStore) path(source string) string {
	return filepath.Join(s.dir, Key(source)+artifactExt)
}

// Get reads the artifact for source. A missing or unreadable file is a miss.
func (s *FileStore) Get(_ context.Context, source string) (*Artifact, error) {
	path := s.path(source)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	artifact, err := s.codec.decode(data)
	if err != nil {
		s.logger.Debug("discarding unreadable artifact",
			logging.String(logging.FieldSource, source),
			logging.String("path", path),
			logging.Error(err))
		return nil, ErrCacheMiss
	}
	if artifact.Source != canonical(source) {
		return nil, ErrCacheMiss
	}
	return artifact, nil
}

// Put writes the artifact to a temp file, syncs it and renames it into place.
func (s *FileStore) Put(_ context.Context, artifact *Artifact) error {
	data, err := s.codec.encode(artifact)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, tempPattern)
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(artifact.Source)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp artifact: %w", err)
	}
	return nil
}

// Invalidate removes the artifact for source. Missing artifacts are not an error.
func (s *FileStore) Invalidate(_ context.Context, source string) error {
	if err := os.Remove(s.path(source)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove artifact: %w", err)
	}
	return nil
}

// Clear removes every artifact and temp file.
func (s *FileStore) Clear(_ context.Context) (int, error) {
	artifacts, err := s.glob("*" + artifactExt)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range artifacts {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("remove artifact: %w", err)
		}
		removed++
	}
	if _, err := s.Sweep(); err != nil {
		return removed, err
	}
	return removed, nil
}

// Sweep deletes temp files left behind by an interrupted rebuild.
func (s *FileStore) Sweep() (int, error) {
	temps, err := s.glob(tempPattern)
	if err != nil {
		return 0, err
	}
	for _, path := range temps {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("remove temp artifact: %w", err)
		}
	}
	if len(temps) > 0 {
		s.logger.Info("removed partial artifacts",
			logging.Int("count", len(temps)),
			logging.String(logging.FieldEventType, "cache_sweep"))
	}
	return len(temps), nil
}

// Stats counts artifacts and their on-disk size.
func (s *FileStore) Stats(_ context.Context) (Stats, error) {
	stats := Stats{Backend: config.CacheBackendFile, Location: s.dir}
	artifacts, err := s.glob("*" + artifactExt)
	if err != nil {
		return stats, err
	}
	for _, path := range artifacts {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		stats.Entries++
		stats.Bytes += info.Size()
	}
	return stats, nil
}

// Close releases the codec.
func (s *FileStore) Close() error {
	s.codec.close()
	return nil
}

func (s *FileStore) glob(pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("list cache directory: %w", err)
	}
	return matches, nil
}

package featurecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/OneOfOne/xxhash"

	"beatset/internal/audio"
	"beatset/internal/config"
)

var (
	// ErrCacheMiss is returned by Store.Get when no valid artifact exists.
	ErrCacheMiss = errors.New("feature cache miss")
	// ErrCacheLocked is returned when another rebuild holds the cache lock.
	ErrCacheLocked = errors.New("feature cache rebuild already running")
)

// Artifact is one persisted feature table together with the metadata needed
// to decide whether it is still usable.
type Artifact struct {
	Source     string
	Params     audio.Params
	SourceHash uint64
	CreatedAt  time.Time
	Table      *audio.FeatureTable
}

// Stats summarizes a store's contents.
type Stats struct {
	Backend  string
	Location string
	Entries  int
	Bytes    int64
}

// Store persists feature artifacts keyed by audio source path. Implementations
// must make Put atomic per artifact: a reader sees either the previous state
// or the complete new artifact.
type Store interface {
	Get(ctx context.Context, source string) (*Artifact, error)
	Put(ctx context.Context, artifact *Artifact) error
	Invalidate(ctx context.Context, source string) error
	Clear(ctx context.Context) (int, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// sweeper is implemented by stores that can leave partial writes behind.
type sweeper interface {
	Sweep() (int, error)
}

// Open returns the store selected by cache.backend.
func Open(cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendBadger:
		return NewBadgerStore(cfg.Cache.Dir)
	case config.CacheBackendFile, "":
		return NewFileStore(cfg.Cache.Dir, logger)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// Key returns the stable cache key of a source path.
func Key(source string) string {
	return fmt.Sprintf("%016x", xxhash.ChecksumString64(canonical(source)))
}

func canonical(source string) string {
	if abs, err := filepath.Abs(source); err == nil {
		return abs
	}
	return filepath.Clean(source)
}

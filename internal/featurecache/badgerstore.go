package featurecache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v3"

	"beatset/internal/config"
)

var badgerPrefix = []byte("feat/")

// BadgerStore keeps artifacts as values in a Badger database. Each Put is a
// single transaction.
type BadgerStore struct {
	dir   string
	db    *badger.DB
	codec *codec
}

// NewBadgerStore opens (or creates) a Badger database in dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("cache directory is required")
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger cache: %w", err)
	}
	c, err := newCodec()
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BadgerStore{dir: dir, db: db, codec: c}, nil
}

func badgerKey(source string) []byte {
	return append(append([]byte{}, badgerPrefix...), Key(source)...)
}

func (s *BadgerStore) Get(_ context.Context, source string) (*Artifact, error) {
	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(source))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	artifact, err := s.codec.decode(raw)
	if err != nil || artifact.Source != canonical(source) {
		return nil, ErrCacheMiss
	}
	return artifact, nil
}

func (s *BadgerStore) Put(_ context.Context, artifact *Artifact) error {
	data, err := s.codec.encode(artifact)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(artifact.Source), data)
	})
}

func (s *BadgerStore) Invalidate(_ context.Context, source string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(source))
	})
}

func (s *BadgerStore) Clear(ctx context.Context) (int, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.db.DropPrefix(badgerPrefix); err != nil {
		return 0, fmt.Errorf("drop artifacts: %w", err)
	}
	return stats.Entries, nil
}

func (s *BadgerStore) Stats(_ context.Context) (Stats, error) {
	stats := Stats{Backend: config.CacheBackendBadger, Location: s.dir}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = badgerPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(badgerPrefix); it.ValidForPrefix(badgerPrefix); it.Next() {
			stats.Entries++
			stats.Bytes += it.Item().ValueSize()
		}
		return nil
	})
	return stats, err
}

func (s *BadgerStore) Close() error {
	s.codec.close()
	return s.db.Close()
}

// Package featurecache persists MFCC feature tables keyed by audio source.
//
// A Store holds compressed artifacts (file-per-source or Badger). Cache adds
// the rebuild path on top: decode, extract and persist on a bounded worker
// pool under an exclusive lock, so a batch can be killed and rerun without
// leaving partial entries behind. Readers use Cache.Load, which never
// computes and reports anything unusable as ErrCacheMiss.
package featurecache

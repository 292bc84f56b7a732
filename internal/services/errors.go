package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFolderParse marks a song folder whose chart is missing or unparsable,
	// or whose notes align to zero usable rows. The folder is skipped.
	ErrFolderParse = errors.New("folder parse error")
	// ErrAudioDecode marks an audio source that could not be decoded or whose
	// features are not in the cache. The source is treated as a cache miss.
	ErrAudioDecode = errors.New("audio decode error")
	// ErrCacheWrite marks a feature artifact that could not be persisted. The
	// rebuild batch continues without that source.
	ErrCacheWrite = errors.New("cache write error")
	// ErrEmptyCorpus is fatal: no folder produced usable rows.
	ErrEmptyCorpus = errors.New("empty corpus")
	// ErrConfiguration marks invalid or missing configuration.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for errors.Is classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		if err == nil {
			return errors.New(detail)
		}
		return fmt.Errorf("%s: %w", detail, err)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Recoverable reports whether err is a per-item failure that the batch absorbs
// (folder or source skipped) rather than one that aborts the run.
func Recoverable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrFolderParse), errors.Is(err, ErrAudioDecode), errors.Is(err, ErrCacheWrite):
		return true
	default:
		return false
	}
}

// Kind returns a short label for the taxonomy marker carried by err, used in
// reports and log fields.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFolderParse):
		return "folder_parse"
	case errors.Is(err, ErrAudioDecode):
		return "audio_decode"
	case errors.Is(err, ErrCacheWrite):
		return "cache_write"
	case errors.Is(err, ErrEmptyCorpus):
		return "empty_corpus"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	default:
		return "unknown"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}

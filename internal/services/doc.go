// Package services defines the error taxonomy and context helpers shared by
// the pipeline components.
//
// Key responsibilities:
//   - Sentinel markers (ErrFolderParse, ErrAudioDecode, ErrCacheWrite,
//     ErrEmptyCorpus) plus the Wrap helper that attaches component context
//     while keeping errors.Is classification intact.
//   - Context helpers that stamp the run ID and orchestrator phase for logging.
//
// Per-folder and per-source failures carry a recoverable marker and are
// absorbed by the batch; only ErrEmptyCorpus and configuration errors abort a
// run.
package services

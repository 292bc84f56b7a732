package featurecache

import (
	"log/slog"

	"beatset/internal/beatmap"
	"beatset/internal/logging"
)

// SourcePaths returns the audio source of each folder in folder order.
// Folders without a resolvable source are logged and left out; a source
// shared by several folders is listed once.
func SourcePaths(folders []string, logger *slog.Logger) []string {
	logger = logging.NewComponentLogger(logger, "featurecache")
	seen := make(map[string]struct{}, len(folders))
	sources := make([]string, 0, len(folders))
	for _, folder := range folders {
		source, err := SourceForFolder(folder)
		if err != nil {
			logging.WarnWithContext(logger, "no audio source for folder",
				"source_missing",
				logging.String(logging.FieldFolder, folder),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "add the song file named by _songFilename"))
			continue
		}
		key := Key(source)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		sources = append(sources, source)
	}
	return sources
}

// SourceForFolder resolves the audio source of one song folder. An unreadable
// info file falls back to the first audio file in the folder.
func SourceForFolder(folder string) (string, error) {
	info, err := beatmap.ReadInfo(folder)
	if err != nil {
		info = nil
	}
	return beatmap.AudioSource(folder, info)
}

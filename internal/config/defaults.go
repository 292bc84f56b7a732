package config

const (
	defaultDataDir      = "~/beatmaps"
	defaultOutputDir    = "~/.local/share/beatset/datasets"
	defaultLogDir       = "~/.local/share/beatset/logs"
	defaultCacheBackend = CacheBackendFile
	defaultSampleRate   = 22050
	defaultNMFCC        = 20
	defaultNMels        = 40
	defaultNFFT         = 2048
	defaultHopLength    = 512
	defaultFFmpegBinary = "ffmpeg"
	defaultWindowLength = 100
	defaultStride       = 50
	defaultSplitTrain   = 0.8
	defaultSplitVal     = 0.1
	defaultLogFormat    = "console"
	defaultLogLevel     = "info"
)

// Supported feature cache backends.
const (
	CacheBackendFile   = "file"
	CacheBackendBadger = "badger"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Cache: Cache{
			Dir:     defaultCacheDir(),
			Backend: defaultCacheBackend,
		},
		AudioProcessing: AudioProcessing{
			UseCache:     true,
			SampleRate:   defaultSampleRate,
			NMFCC:        defaultNMFCC,
			NMels:        defaultNMels,
			NFFT:         defaultNFFT,
			HopLength:    defaultHopLength,
			FFmpegBinary: defaultFFmpegBinary,
		},
		Snippets: Snippets{
			WindowLength: defaultWindowLength,
			Stride:       defaultStride,
		},
		Split: Split{
			Train:      defaultSplitTrain,
			Validation: defaultSplitVal,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

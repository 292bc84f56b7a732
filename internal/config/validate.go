package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateSnippets(); err != nil {
		return err
	}
	if err := c.validateSplit(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case CacheBackendFile, CacheBackendBadger:
	default:
		return fmt.Errorf("cache.backend: unsupported value %q (use %q or %q)", c.Cache.Backend, CacheBackendFile, CacheBackendBadger)
	}
	if c.Cache.Dir == "" {
		return errors.New("cache.dir must be set")
	}
	return nil
}

func (c *Config) validateAudio() error {
	a := c.AudioProcessing
	if a.SampleRate <= 0 {
		return errors.New("audio_processing.sample_rate must be positive")
	}
	if a.NFFT <= 1 {
		return errors.New("audio_processing.n_fft must be greater than 1")
	}
	if a.HopLength <= 0 {
		return errors.New("audio_processing.hop_length must be positive")
	}
	if a.NMels <= 1 {
		return errors.New("audio_processing.n_mels must be greater than 1")
	}
	if a.NMFCC <= 0 || a.NMFCC > a.NMels {
		return fmt.Errorf("audio_processing.n_mfcc must be between 1 and n_mels (%d)", a.NMels)
	}
	if a.NMels > a.NFFT/2+1 {
		return fmt.Errorf("audio_processing.n_mels must not exceed n_fft/2+1 (%d)", a.NFFT/2+1)
	}
	return nil
}

func (c *Config) validateSnippets() error {
	if c.Snippets.WindowLength <= 0 {
		return errors.New("snippets.window_length must be positive")
	}
	if c.Snippets.Stride <= 0 {
		return errors.New("snippets.stride must be positive")
	}
	return nil
}

func (c *Config) validateSplit() error {
	if c.Split.Train <= 0 || c.Split.Train > 1 {
		return errors.New("split.train must be in (0, 1]")
	}
	if c.Split.Validation < 0 || c.Split.Train+c.Split.Validation > 1 {
		return errors.New("split.validation must be >= 0 and train+validation must not exceed 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

package testsupport

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"

	"beatset/internal/audio"
	"beatset/internal/config"
)

// FakeDecoder returns deterministic PCM derived from the path and counts calls.
type FakeDecoder struct {
	SampleRate int
	// FailOn lists path fragments whose decode fails.
	FailOn []string

	mu    sync.Mutex
	calls int
}

// NewFakeDecoder returns a decoder matching cfg's sample rate.
func NewFakeDecoder(cfg *config.Config, failOn ...string) *FakeDecoder {
	return &FakeDecoder{SampleRate: cfg.AudioProcessing.SampleRate, FailOn: failOn}
}

func (d *FakeDecoder) Decode(ctx context.Context, path string) (audio.PCM, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return audio.PCM{}, err
	}
	for _, fragment := range d.FailOn {
		if strings.Contains(path, fragment) {
			return audio.PCM{}, errors.New("fake decode failure")
		}
	}
	h := fnv.New32a()
	h.Write([]byte(path))
	seed := float64(h.Sum32()%1000) / 1000
	samples := make([]float64, 64)
	for i := range samples {
		samples[i] = seed
	}
	return audio.PCM{Samples: samples, SampleRate: d.SampleRate}, nil
}

// Calls returns the number of Decode calls.
func (d *FakeDecoder) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// FakeExtractor produces a fixed-size table whose values depend only on the
// PCM content.
type FakeExtractor struct {
	P      audio.Params
	Frames int

	mu    sync.Mutex
	calls int
}

// NewFakeExtractor returns an extractor with cfg's params and enough frames
// to cover a few dozen beats at 60 bpm.
func NewFakeExtractor(cfg *config.Config) *FakeExtractor {
	return &FakeExtractor{P: audio.ParamsFromConfig(cfg), Frames: 2048}
}

func (e *FakeExtractor) Params() audio.Params { return e.P }

func (e *FakeExtractor) Extract(pcm audio.PCM) (*audio.FeatureTable, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if len(pcm.Samples) == 0 {
		return nil, audio.ErrEmptyTable
	}
	frames := make([][]float64, e.Frames)
	for i := range frames {
		row := make([]float64, e.P.NMFCC)
		for j := range row {
			row[j] = pcm.Samples[0] + float64(i) + float64(j)/100
		}
		frames[i] = row
	}
	return audio.NewFeatureTable(e.P, frames)
}

// Calls returns the number of Extract calls.
func (e *FakeExtractor) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

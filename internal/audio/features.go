package audio

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"beatset/internal/config"
)

// Params are the extraction parameters a FeatureTable was computed with.
// Two tables are only comparable when their Params match.
type Params struct {
	SampleRate int `json:"sample_rate"`
	NFFT       int `json:"n_fft"`
	HopLength  int `json:"hop_length"`
	NMels      int `json:"n_mels"`
	NMFCC      int `json:"n_mfcc"`
}

// ParamsFromConfig extracts the audio parameters from the process config.
func ParamsFromConfig(cfg *config.Config) Params {
	a := cfg.AudioProcessing
	return Params{
		SampleRate: a.SampleRate,
		NFFT:       a.NFFT,
		HopLength:  a.HopLength,
		NMels:      a.NMels,
		NMFCC:      a.NMFCC,
	}
}

// FrameRate returns the number of feature frames per second of audio.
func (p Params) FrameRate() float64 {
	if p.HopLength <= 0 {
		return 0
	}
	return float64(p.SampleRate) / float64(p.HopLength)
}

// FeatureTable is the MFCC matrix of one audio source: one row per frame,
// one column per coefficient.
type FeatureTable struct {
	params Params
	data   *mat.Dense
}

// ErrEmptyTable is returned when a feature table would have no frames.
var ErrEmptyTable = errors.New("feature table has no frames")

// NewFeatureTable copies frames into a dense matrix. Every frame must have the
// same number of coefficients.
func NewFeatureTable(params Params, frames [][]float64) (*FeatureTable, error) {
	if len(frames) == 0 || len(frames[0]) == 0 {
		return nil, ErrEmptyTable
	}
	cols := len(frames[0])
	data := make([]float64, 0, len(frames)*cols)
	for i, frame := range frames {
		if len(frame) != cols {
			return nil, fmt.Errorf("frame %d has %d coefficients, want %d", i, len(frame), cols)
		}
		data = append(data, frame...)
	}
	return &FeatureTable{params: params, data: mat.NewDense(len(frames), cols, data)}, nil
}

// FeatureTableFromMatrix rebuilds a table from the binary form produced by
// MarshalMatrix.
func FeatureTableFromMatrix(params Params, raw []byte) (*FeatureTable, error) {
	var dense mat.Dense
	if err := dense.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("decode feature matrix: %w", err)
	}
	if r, c := dense.Dims(); r == 0 || c == 0 {
		return nil, ErrEmptyTable
	}
	return &FeatureTable{params: params, data: &dense}, nil
}

// MarshalMatrix encodes the coefficient matrix using gonum's binary format.
func (t *FeatureTable) MarshalMatrix() ([]byte, error) {
	return t.data.MarshalBinary()
}

// Params returns the extraction parameters.
func (t *FeatureTable) Params() Params { return t.params }

// Frames returns the number of time steps.
func (t *FeatureTable) Frames() int {
	r, _ := t.data.Dims()
	return r
}

// Coefficients returns the number of columns per frame.
func (t *FeatureTable) Coefficients() int {
	_, c := t.data.Dims()
	return c
}

// Row returns a copy of frame i.
func (t *FeatureTable) Row(i int) []float64 {
	return mat.Row(nil, i, t.data)
}

// FrameAt maps a time in seconds to the nearest frame index. The second
// return value is false when the time falls outside the table.
func (t *FeatureTable) FrameAt(seconds float64) (int, bool) {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, false
	}
	frame := int(math.Round(seconds * t.params.FrameRate()))
	if frame < 0 || frame >= t.Frames() {
		return 0, false
	}
	return frame, true
}

// Equal reports whether both tables share params and identical values.
func (t *FeatureTable) Equal(other *FeatureTable) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.params == other.params && mat.Equal(t.data, other.data)
}

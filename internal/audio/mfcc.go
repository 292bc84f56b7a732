package audio

import (
	"errors"
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"
)

// logFloor bounds mel energies away from zero before the log.
const logFloor = 1e-10

// Extractor computes MFCC feature tables. The window and mel filterbank are
// precomputed and read-only, so one Extractor may be shared by workers; FFT
// work buffers are allocated per call.
type Extractor struct {
	params  Params
	window  []float64
	filters [][]float64
}

// NewExtractor validates params and precomputes the analysis window and mel
// filterbank.
func NewExtractor(params Params) (*Extractor, error) {
	switch {
	case params.SampleRate <= 0:
		return nil, errors.New("sample rate must be positive")
	case params.NFFT <= 1:
		return nil, errors.New("n_fft must be greater than 1")
	case params.HopLength <= 0:
		return nil, errors.New("hop length must be positive")
	case params.NMels <= 1:
		return nil, errors.New("n_mels must be greater than 1")
	case params.NMFCC <= 0 || params.NMFCC > params.NMels:
		return nil, fmt.Errorf("n_mfcc must be between 1 and %d", params.NMels)
	case params.NMels > params.NFFT/2+1:
		return nil, fmt.Errorf("n_mels must not exceed %d", params.NFFT/2+1)
	}
	return &Extractor{
		params:  params,
		window:  window.Hann(params.NFFT),
		filters: melFilterbank(params.SampleRate, params.NFFT, params.NMels),
	}, nil
}

// Params returns the extraction parameters.
func (e *Extractor) Params() Params { return e.params }

// Extract computes one MFCC vector per hop. The signal is centered by zero
// padding n_fft/2 samples on each side, so frame i is centered on sample
// i*hop_length.
func (e *Extractor) Extract(pcm PCM) (*FeatureTable, error) {
	if len(pcm.Samples) == 0 {
		return nil, ErrEmptyTable
	}
	if pcm.SampleRate != e.params.SampleRate {
		return nil, fmt.Errorf("pcm sample rate %d does not match extractor %d", pcm.SampleRate, e.params.SampleRate)
	}

	nfft := e.params.NFFT
	pad := nfft / 2
	padded := make([]float64, len(pcm.Samples)+2*pad)
	copy(padded[pad:], pcm.Samples)
	frames := 1 + (len(padded)-nfft)/e.params.HopLength

	fft := fourier.NewFFT(nfft)
	dct := fourier.NewDCT(e.params.NMels)
	seq := make([]float64, nfft)
	coeffs := make([]complex128, nfft/2+1)
	power := make([]float64, nfft/2+1)
	logMel := make([]float64, e.params.NMels)
	cepstrum := make([]float64, e.params.NMels)

	out := make([][]float64, frames)
	for f := 0; f < frames; f++ {
		start := f * e.params.HopLength
		for i := range seq {
			seq[i] = padded[start+i] * e.window[i]
		}
		fft.Coefficients(coeffs, seq)
		for k, c := range coeffs {
			re, im := real(c), imag(c)
			power[k] = re*re + im*im
		}
		for m, filter := range e.filters {
			var energy float64
			for k, w := range filter {
				energy += w * power[k]
			}
			logMel[m] = 10 * math.Log10(math.Max(energy, logFloor))
		}
		dct.Transform(cepstrum, logMel)
		row := make([]float64, e.params.NMFCC)
		copy(row, cepstrum[:e.params.NMFCC])
		out[f] = row
	}
	return NewFeatureTable(e.params, out)
}

func hzToMel(hz float64) float64 { return 2595 * math.Log10(1+hz/700) }

func melToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }

// melFilterbank builds nMels triangular filters spanning 0 Hz to Nyquist,
// evenly spaced on the mel scale.
func melFilterbank(sampleRate, nfft, nMels int) [][]float64 {
	bins := nfft/2 + 1
	maxMel := hzToMel(float64(sampleRate) / 2)
	edges := make([]float64, nMels+2)
	for i := range edges {
		edges[i] = melToHz(maxMel * float64(i) / float64(nMels+1))
	}

	filters := make([][]float64, nMels)
	for m := range filters {
		lower, center, upper := edges[m], edges[m+1], edges[m+2]
		filter := make([]float64, bins)
		for k := range filter {
			freq := float64(k) * float64(sampleRate) / float64(nfft)
			rising := (freq - lower) / (center - lower)
			falling := (upper - freq) / (upper - center)
			filter[k] = math.Max(0, math.Min(rising, falling))
		}
		filters[m] = filter
	}
	return filters
}

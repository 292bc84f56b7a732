package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// PCM is mono floating point audio in [-1, 1].
type PCM struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the signal length in seconds.
func (p PCM) Duration() float64 {
	if p.SampleRate <= 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.SampleRate)
}

// Decoder turns an audio file into mono PCM at a fixed sample rate.
type Decoder interface {
	Decode(ctx context.Context, path string) (PCM, error)
}

// FFmpegDecoder shells out to ffmpeg and reads 32-bit float little-endian
// samples from its stdout.
type FFmpegDecoder struct {
	Binary     string
	SampleRate int
}

// NewFFmpegDecoder returns a decoder that resamples to sampleRate.
func NewFFmpegDecoder(binary string, sampleRate int) *FFmpegDecoder {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &FFmpegDecoder{Binary: binary, SampleRate: sampleRate}
}

// Decode runs ffmpeg on path. Beat Saber ships Ogg Vorbis audio under a .egg
// extension, so the container is always probed rather than guessed from the name.
func (d *FFmpegDecoder) Decode(ctx context.Context, path string) (PCM, error) {
	if d.SampleRate <= 0 {
		return PCM{}, errors.New("decoder sample rate must be positive")
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-i", path,
		"-vn", "-ac", "1", "-ar", strconv.Itoa(d.SampleRate),
		"-f", "f32le", "-acodec", "pcm_f32le", "-",
	}
	cmd := exec.CommandContext(ctx, d.Binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return PCM{}, ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return PCM{}, fmt.Errorf("ffmpeg %s: %w: %s", path, err, detail)
		}
		return PCM{}, fmt.Errorf("ffmpeg %s: %w", path, err)
	}

	samples, err := parseFloat32LE(stdout.Bytes())
	if err != nil {
		return PCM{}, fmt.Errorf("ffmpeg %s: %w", path, err)
	}
	if len(samples) == 0 {
		return PCM{}, fmt.Errorf("ffmpeg %s: no audio samples decoded", path)
	}
	return PCM{Samples: samples, SampleRate: d.SampleRate}, nil
}

func parseFloat32LE(raw []byte) ([]float64, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("truncated pcm stream: %d bytes", len(raw))
	}
	out := make([]float64, len(raw)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		out[i] = float64(math.Float32frombits(bits))
	}
	return out, nil
}

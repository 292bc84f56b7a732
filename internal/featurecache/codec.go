package featurecache

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"beatset/internal/audio"
)

const artifactVersion = 1

type artifactHeader struct {
	Version    int          `json:"version"`
	Source     string       `json:"source"`
	Params     audio.Params `json:"params"`
	SourceHash uint64       `json:"source_hash,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// codec frames an artifact as a length-prefixed JSON header followed by the
// gonum matrix encoding, all zstd compressed.
type codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newCodec() (*codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &codec{encoder: encoder, decoder: decoder}, nil
}

func (c *codec) encode(a *Artifact) ([]byte, error) {
	if a == nil || a.Table == nil {
		return nil, errors.New("artifact has no feature table")
	}
	header, err := json.Marshal(artifactHeader{
		Version:    artifactVersion,
		Source:     canonical(a.Source),
		Params:     a.Params,
		SourceHash: a.SourceHash,
		CreatedAt:  a.CreatedAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode artifact header: %w", err)
	}
	matrix, err := a.Table.MarshalMatrix()
	if err != nil {
		return nil, fmt.Errorf("encode feature matrix: %w", err)
	}
	plain := make([]byte, 4, 4+len(header)+len(matrix))
	binary.BigEndian.PutUint32(plain, uint32(len(header)))
	plain = append(plain, header...)
	plain = append(plain, matrix...)
	return c.encoder.EncodeAll(plain, nil), nil
}

func (c *codec) decode(raw []byte) (*Artifact, error) {
	plain, err := c.decoder.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress artifact: %w", err)
	}
	if len(plain) < 4 {
		return nil, errors.New("artifact truncated")
	}
	n := int(binary.BigEndian.Uint32(plain))
	if n > len(plain)-4 {
		return nil, errors.New("artifact header truncated")
	}
	var header artifactHeader
	if err := json.Unmarshal(plain[4:4+n], &header); err != nil {
		return nil, fmt.Errorf("decode artifact header: %w", err)
	}
	if header.Version != artifactVersion {
		return nil, fmt.Errorf("artifact version %d unsupported", header.Version)
	}
	table, err := audio.FeatureTableFromMatrix(header.Params, plain[4+n:])
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Source:     header.Source,
		Params:     header.Params,
		SourceHash: header.SourceHash,
		CreatedAt:  header.CreatedAt,
		Table:      table,
	}, nil
}

func (c *codec) close() {
	c.encoder.Close()
	c.decoder.Close()
}

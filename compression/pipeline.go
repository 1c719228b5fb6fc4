// Package compression implements the compression decision pipeline (C4):
// deciding whether a payload is worth compressing, and round-tripping it
// through the codec registry when it is.
package compression

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/quantarax/rdpe/codec"
	"github.com/quantarax/rdpe/envelope"
)

// Config captures the compression-relevant subset of the socket
// configuration.
type Config struct {
	Enabled         bool
	Codec           envelope.CodecIndex
	Level           int
	MinSize         int
	MinReductionPct float64
}

// DefaultConfig returns conservative compression defaults: disabled,
// codec NONE, min_size=256, min_reduction_pct=10.
func DefaultConfig() Config {
	return Config{
		Enabled:         false,
		Codec:           envelope.CodecNone,
		Level:           0,
		MinSize:         256,
		MinReductionPct: 10,
	}
}

// Pipeline decides whether to compress a payload and performs the
// compress/decompress round trip via a codec.Registry.
type Pipeline struct {
	cfg      Config
	registry *codec.Registry
}

// NewPipeline constructs a Pipeline over the given registry and config.
func NewPipeline(cfg Config, registry *codec.Registry) *Pipeline {
	return &Pipeline{cfg: cfg, registry: registry}
}

// Config returns the pipeline's current configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// SetConfig replaces the pipeline's configuration (used by Engine.Configure).
func (p *Pipeline) SetConfig(cfg Config) { p.cfg = cfg }

// ShouldCompress reports whether a payload of the given size is a
// candidate for compression under the current config.
func (p *Pipeline) ShouldCompress(size int) bool {
	return p.cfg.Enabled && size >= p.cfg.MinSize
}

// Result is the outcome of a successful compression attempt.
type Result struct {
	Data           string // base64-encoded compressed bytes
	Codec          envelope.CodecIndex
	OriginalSize   int
	CompressedSize int
}

// TryCompress attempts to compress payload (the application value,
// already marshaled to JSON bytes by the caller). It returns ok=false
// when: compression is disabled, the payload is below MinSize, the
// configured codec is unavailable, compression errored, or the observed
// size reduction is below MinReductionPct.
func (p *Pipeline) TryCompress(payload []byte) (Result, bool) {
	if !p.ShouldCompress(len(payload)) {
		return Result{}, false
	}
	c, ok := p.registry.Lookup(p.cfg.Codec)
	if !ok {
		return Result{}, false
	}
	compressed, err := c.Compress(payload)
	if err != nil {
		return Result{}, false
	}

	original := len(payload)
	reduced := len(compressed)
	reductionPct := (1 - float64(reduced)/float64(original)) * 100
	if reductionPct < p.cfg.MinReductionPct {
		return Result{}, false
	}

	return Result{
		Data:           base64.StdEncoding.EncodeToString(compressed),
		Codec:          p.cfg.Codec,
		OriginalSize:   original,
		CompressedSize: reduced,
	}, true
}

// TryDecompress reverses TryCompress: it base64-decodes data, decompresses
// it with the codec identified by idx, and JSON-unmarshals the result into
// an application value. It returns ok=false on any failure: codec
// unavailable, or a base64/decompress/unmarshal error.
func (p *Pipeline) TryDecompress(data string, idx envelope.CodecIndex) (any, bool) {
	raw, decoded, ok := p.decompressBytes(data, idx)
	_ = raw
	if !ok {
		return nil, false
	}
	var value any
	if err := json.Unmarshal(decoded, &value); err != nil {
		return nil, false
	}
	return value, true
}

// DecompressBytes reverses TryCompress down to raw bytes, without
// attempting a JSON unmarshal. Used by the chunked receive path, which
// only decompresses after full reassembly.
func (p *Pipeline) DecompressBytes(data []byte, idx envelope.CodecIndex) ([]byte, error) {
	c, ok := p.registry.Lookup(idx)
	if !ok {
		return nil, fmt.Errorf("compression: codec %d unavailable", idx)
	}
	return c.Decompress(data)
}

func (p *Pipeline) decompressBytes(data string, idx envelope.CodecIndex) ([]byte, []byte, bool) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, nil, false
	}
	decoded, err := p.DecompressBytes(raw, idx)
	if err != nil {
		return raw, nil, false
	}
	return raw, decoded, true
}

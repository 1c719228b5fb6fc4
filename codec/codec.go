// Package codec provides the pluggable compression codec interface and a
// registry of available codecs (C3). Each codec wraps a real third-party
// compression library behind a uniform Compress/Decompress contract.
package codec

import "github.com/quantarax/rdpe/envelope"

// Codec is a pluggable compression algorithm.
type Codec interface {
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
	Available() bool
}

// Registry holds only the codecs that report themselves available. Lookups
// for unregistered or unavailable codecs return (nil, false).
type Registry struct {
	byIndex map[envelope.CodecIndex]Codec
}

// NewRegistry builds a Registry from the given codecs, keeping only those
// whose Available() returns true.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{byIndex: make(map[envelope.CodecIndex]Codec)}
	for _, c := range codecs {
		if !c.Available() {
			continue
		}
		idx, ok := indexForName(c.Name())
		if !ok {
			continue
		}
		r.byIndex[idx] = c
	}
	return r
}

// DefaultRegistry wires every codec RDPE ships.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewNoneCodec(),
		NewGzipCodec(),
		NewSnappyCodec(),
		NewLZ4Codec(),
		NewZstdCodec(),
	)
}

// Lookup returns the codec registered for idx, if available.
func (r *Registry) Lookup(idx envelope.CodecIndex) (Codec, bool) {
	c, ok := r.byIndex[idx]
	return c, ok
}

func indexForName(name string) (envelope.CodecIndex, bool) {
	switch name {
	case "none":
		return envelope.CodecNone, true
	case "gzip":
		return envelope.CodecGzip, true
	case "snappy":
		return envelope.CodecSnappy, true
	case "lz4":
		return envelope.CodecLZ4, true
	case "zstd":
		return envelope.CodecZstd, true
	default:
		return 0, false
	}
}

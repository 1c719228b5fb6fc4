package codec

import (
	"bytes"
	"testing"

	"github.com/quantarax/rdpe/envelope"
)

func allCodecs() []Codec {
	return []Codec{
		NewNoneCodec(),
		NewGzipCodec(),
		NewSnappyCodec(),
		NewLZ4Codec(),
		NewZstdCodec(),
	}
}

func TestCodecsRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 50)
	for _, c := range allCodecs() {
		c := c
		t.Run(c.Name(), func(t *testing.T) {
			compressed, err := c.Compress(payload)
			if err != nil {
				t.Fatal(err)
			}
			got, err := c.Decompress(compressed)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("round trip mismatch for codec %s", c.Name())
			}
		})
	}
}

func TestRegistryOnlyHoldsAvailableCodecs(t *testing.T) {
	r := DefaultRegistry()
	for _, idx := range []envelope.CodecIndex{
		envelope.CodecNone, envelope.CodecGzip, envelope.CodecSnappy,
		envelope.CodecLZ4, envelope.CodecZstd,
	} {
		if _, ok := r.Lookup(idx); !ok {
			t.Fatalf("expected codec index %d to be registered", idx)
		}
	}
}

func TestRegistryLookupMissing(t *testing.T) {
	r := NewRegistry(NewNoneCodec())
	if _, ok := r.Lookup(envelope.CodecGzip); ok {
		t.Fatal("expected gzip to be unavailable in a none-only registry")
	}
}

package compression

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/quantarax/rdpe/codec"
	"github.com/quantarax/rdpe/envelope"
)

func newTestPipeline(cfg Config) *Pipeline {
	return NewPipeline(cfg, codec.DefaultRegistry())
}

func TestShouldCompress(t *testing.T) {
	p := newTestPipeline(Config{Enabled: true, MinSize: 256})
	if p.ShouldCompress(100) {
		t.Fatal("expected false below min_size")
	}
	if !p.ShouldCompress(256) {
		t.Fatal("expected true at exactly min_size")
	}

	disabled := newTestPipeline(Config{Enabled: false, MinSize: 0})
	if disabled.ShouldCompress(10000) {
		t.Fatal("expected false when disabled regardless of size")
	}
}

func TestTryCompressReturnsFalseBelowReductionThreshold(t *testing.T) {
	p := newTestPipeline(Config{
		Enabled: true, Codec: envelope.CodecGzip, MinSize: 1, MinReductionPct: 10,
	})
	// A one-byte payload: gzip framing overhead on such tiny input makes the
	// output larger than the input, so the reduction is negative (<10%).
	payload := []byte("x")
	if _, ok := p.TryCompress(payload); ok {
		t.Fatal("expected compression to be rejected for poor reduction on tiny input")
	}
}

func TestTryCompressTryDecompressRoundTrip(t *testing.T) {
	p := newTestPipeline(Config{
		Enabled: true, Codec: envelope.CodecGzip, MinSize: 10, MinReductionPct: 10,
	})
	value := map[string]any{"payload": strings.Repeat("x", 1000)}
	payload, err := json.Marshal(value)
	if err != nil {
		t.Fatal(err)
	}

	result, ok := p.TryCompress(payload)
	if !ok {
		t.Fatal("expected compression to succeed for a highly compressible payload")
	}
	if result.OriginalSize != len(payload) {
		t.Fatalf("unexpected original size: %d", result.OriginalSize)
	}
	if result.CompressedSize >= result.OriginalSize {
		t.Fatal("expected compressed size to be smaller")
	}

	got, ok := p.TryDecompress(result.Data, result.Codec)
	if !ok {
		t.Fatal("expected decompression to succeed")
	}
	gotBytes, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	var want, have any
	_ = json.Unmarshal(payload, &want)
	_ = json.Unmarshal(gotBytes, &have)
	wantJSON, _ := json.Marshal(want)
	haveJSON, _ := json.Marshal(have)
	if !bytes.Equal(wantJSON, haveJSON) {
		t.Fatalf("round trip value mismatch: want %s got %s", wantJSON, haveJSON)
	}
}

func TestTryDecompressFailsForUnavailableCodec(t *testing.T) {
	onlyNone := NewPipeline(Config{Enabled: true}, codec.NewRegistry(codec.NewNoneCodec()))
	// Valid base64 ("not-relevant"), so the failure comes from the codec lookup.
	if _, ok := onlyNone.TryDecompress("bm90LXJlbGV2YW50", envelope.CodecGzip); ok {
		t.Fatal("expected failure for a codec absent from the registry")
	}
}

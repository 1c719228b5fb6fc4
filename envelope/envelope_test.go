package envelope

import "testing"

func TestFlagsRoundTripAllCombinations(t *testing.T) {
	types := []MessageType{TypeREQ, TypeACK, TypeRES}
	codecs := []CodecIndex{CodecNone, CodecGzip, CodecSnappy, CodecLZ4, CodecZstd}
	bools := []bool{true, false}

	for _, mt := range types {
		for _, c := range codecs {
			for _, comp := range bools {
				for _, chunked := range bools {
					b := EncodeFlags(mt, c, comp, chunked)
					got := DecodeFlags(b)
					if got.Type != mt || got.Codec != c || got.Compressed != comp || got.Chunked != chunked {
						t.Fatalf("round trip mismatch for (%v,%v,%v,%v): got %+v", mt, c, comp, chunked, got)
					}
				}
			}
		}
	}
}

func TestDecodeFlagsIgnoresReservedBit(t *testing.T) {
	b := EncodeFlags(TypeRES, CodecZstd, true, false) | reservedBit
	got := DecodeFlags(b)
	if got.Type != TypeRES || got.Codec != CodecZstd || !got.Compressed {
		t.Fatalf("reserved bit leaked into decode: %+v", got)
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	ci, ct := 1, 3
	e := Envelope{
		ID:         "12345",
		Body:       map[string]any{"message": "hello"},
		Checksum:   "abcd",
		Flags:      EncodeFlags(TypeREQ, CodecGzip, true, true),
		ChunkIndex: &ci,
		ChunkTotal: &ct,
	}
	data, err := Serialize(e)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := Parse(data)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if got.ID != e.ID || got.Checksum != e.Checksum || got.Flags != e.Flags {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, e)
	}
	if got.ChunkIndex == nil || *got.ChunkIndex != ci || got.ChunkTotal == nil || *got.ChunkTotal != ct {
		t.Fatalf("chunk fields lost in round trip: %+v", got)
	}
}

func TestParseRejectsNonEnvelopePayloads(t *testing.T) {
	cases := [][]byte{
		[]byte(`{"foo":"bar"}`),
		[]byte(`{"id":"1"}`),
		[]byte(`{"flags":0}`),
		[]byte(`not json at all`),
		[]byte(`[1,2,3]`),
	}
	for _, c := range cases {
		if _, ok := Parse(c); ok {
			t.Fatalf("expected passthrough (ok=false) for %s", c)
		}
	}
}

func TestChunkIDRoundTrip(t *testing.T) {
	base := "998877"
	id := ChunkID(base, 4)
	gotBase, gotIdx, ok := SplitChunkID(id)
	if !ok || gotBase != base || gotIdx != 4 {
		t.Fatalf("chunk id round trip failed: base=%s idx=%d ok=%v", gotBase, gotIdx, ok)
	}
}

func TestSplitChunkIDRejectsNonChunkIDs(t *testing.T) {
	if _, _, ok := SplitChunkID("plain-id-123"); ok {
		t.Fatal("expected ok=false for a non-chunk id")
	}
}

func TestChecksumDeterministic(t *testing.T) {
	a := Checksum([]byte("hello"))
	b := Checksum([]byte("hello"))
	c := Checksum([]byte("world"))
	if a != b {
		t.Fatal("checksum not deterministic")
	}
	if a == c {
		t.Fatal("checksum collided for different input")
	}
}

package codec

import "github.com/klauspost/compress/zstd"

// ZstdCodec adapts klauspost/compress's zstd implementation to the Codec
// interface (codec index 4).
type ZstdCodec struct{}

// NewZstdCodec constructs a ZstdCodec.
func NewZstdCodec() *ZstdCodec { return &ZstdCodec{} }

func (ZstdCodec) Name() string { return "zstd" }

func (ZstdCodec) Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func (ZstdCodec) Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}

func (ZstdCodec) Available() bool { return true }

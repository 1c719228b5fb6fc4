package codec

import "github.com/golang/snappy"

// SnappyCodec adapts golang/snappy to the Codec interface (codec index 2).
type SnappyCodec struct{}

// NewSnappyCodec constructs a SnappyCodec.
func NewSnappyCodec() *SnappyCodec { return &SnappyCodec{} }

func (SnappyCodec) Name() string { return "snappy" }

func (SnappyCodec) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (SnappyCodec) Decompress(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}

func (SnappyCodec) Available() bool { return true }

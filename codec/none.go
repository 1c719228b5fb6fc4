package codec

// NoneCodec is the identity codec (codec index 0).
type NoneCodec struct{}

// NewNoneCodec constructs the identity codec.
func NewNoneCodec() *NoneCodec { return &NoneCodec{} }

func (NoneCodec) Name() string { return "none" }

func (NoneCodec) Compress(data []byte) ([]byte, error) { return data, nil }

func (NoneCodec) Decompress(data []byte) ([]byte, error) { return data, nil }

func (NoneCodec) Available() bool { return true }

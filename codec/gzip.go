package codec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
)

// GzipCodec adapts klauspost/compress's gzip implementation to the Codec
// interface (codec index 1).
type GzipCodec struct {
	level int
}

// NewGzipCodec constructs a GzipCodec at gzip.DefaultCompression.
func NewGzipCodec() *GzipCodec {
	return &GzipCodec{level: gzip.DefaultCompression}
}

// NewGzipCodecLevel constructs a GzipCodec at the given compression level.
func NewGzipCodecLevel(level int) *GzipCodec {
	return &GzipCodec{level: level}
}

func (GzipCodec) Name() string { return "gzip" }

func (c GzipCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (GzipCodec) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (GzipCodec) Available() bool { return true }

package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quantarax/rdpe/envelope"
)

// Reply sends a RES envelope mirroring requestID back to host:port,
// carrying value as its body. RES is not itself registered
// with the tracker or retried: the request's own REQ/retry cycle is
// what the sender relies on, and RES is a one-shot answer to it.
func (e *Engine) Reply(ctx context.Context, requestID string, value any, host string, port int) error {
	select {
	case <-e.closed:
		return ErrClosed
	default:
	}

	cfg := e.config()
	pipeline := e.currentPipeline()

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("engine: marshal reply body: %w", err)
	}

	var body any = value
	var checksumBytes = payload
	codecUsed := envelope.CodecNone
	var origSize, compSize *int

	if pipeline.ShouldCompress(len(payload)) {
		if result, ok := pipeline.TryCompress(payload); ok {
			body = result.Data
			checksumBytes = []byte(result.Data)
			codecUsed = result.Codec
			o, c := result.OriginalSize, result.CompressedSize
			origSize, compSize = &o, &c
			e.observeCompressionRatio(o, c)
		}
	}

	env := envelope.Envelope{
		ID:    requestID,
		Body:  body,
		Flags: envelope.EncodeFlags(envelope.TypeRES, codecUsed, origSize != nil, false),
	}
	if cfg.EnableChecksum {
		env.Checksum = envelope.Checksum(checksumBytes)
	}
	env.OriginalSize = origSize
	env.CompressedSize = compSize

	data, err := envelope.Serialize(env)
	if err != nil {
		return fmt.Errorf("engine: serialize reply: %w", err)
	}
	if len(data) > cfg.MaxMessageSize {
		// RES is never chunked (chunking applies to REQ only); an
		// oversized reply is a caller error.
		return fmt.Errorf("engine: reply exceeds max_message_size (%d > %d)", len(data), cfg.MaxMessageSize)
	}

	return e.sock.Send(ctx, data, host, port)
}

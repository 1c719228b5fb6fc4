package engine

import (
	"context"
	"encoding/json"

	"github.com/quantarax/rdpe/envelope"
	"github.com/quantarax/rdpe/socket"
)

// handleDatagram is the single entry point for every datagram the socket
// delivers. Grounded on QuantaraX's
// chunk_receiver.handleDatagram: parse, validate, dispatch by type.
func (e *Engine) handleDatagram(data []byte, remote socket.Remote) {
	env, ok := envelope.Parse(data)
	if !ok {
		e.deliverPassthrough(data, remote)
		return
	}

	flags := env.DecodedFlags()
	switch flags.Type {
	case envelope.TypeREQ:
		e.handleREQ(env, flags, remote)
	case envelope.TypeACK:
		e.handleACK(env)
	case envelope.TypeRES:
		e.handleRES(env)
	default:
		e.deliverPassthrough(data, remote)
	}
}

// handleREQ acknowledges the request immediately, then reassembles (if
// chunked) or decodes (if single) and delivers the logical message. ACK
// is emitted before any application work so the sender can stop
// retrying even if the handler is slow.
func (e *Engine) handleREQ(env envelope.Envelope, flags envelope.Flags, remote socket.Remote) {
	cfg := e.config()

	if cfg.EnableChecksum && env.Checksum != "" {
		if !e.checksumOK(env, flags) {
			e.logger.ChecksumMismatch(env.ID)
			e.metrics.ChecksumMismatchTotal.Inc()
			return
		}
	}

	e.sendACK(env.ID, remote)

	if flags.Chunked {
		e.handleChunkedREQ(env, flags, remote, cfg)
		return
	}
	e.handleSingleREQ(env, flags, remote)
}

// checksumOK recomputes the checksum over the wire unit exactly as the
// sender did.
// A chunk body and a compressed single body are both sent as their raw
// base64 text; an uncompressed single body is the JSON-marshaled value.
func (e *Engine) checksumOK(env envelope.Envelope, flags envelope.Flags) bool {
	var raw []byte
	if flags.Chunked || flags.Compressed {
		s, ok := env.Body.(string)
		if !ok {
			return false
		}
		raw = []byte(s)
	} else {
		data, err := json.Marshal(env.Body)
		if err != nil {
			return false
		}
		raw = data
	}
	return envelope.Checksum(raw) == env.Checksum
}

func (e *Engine) handleSingleREQ(env envelope.Envelope, flags envelope.Flags, remote socket.Remote) {
	if !flags.Compressed {
		e.deliverMessage(env.Body, remote, env.ID)
		return
	}

	b64, ok := env.Body.(string)
	if !ok {
		e.logger.Error(nil, "compressed body was not a string")
		return
	}
	pipeline := e.currentPipeline()
	value, ok := pipeline.TryDecompress(b64, flags.Codec)
	if !ok {
		e.metrics.CodecUnavailableTotal.WithLabelValues(codecLabel(flags.Codec)).Inc()
		e.logger.CodecUnavailable(env.ID, int(flags.Codec))
		return
	}
	e.deliverMessage(value, remote, env.ID)
}

func (e *Engine) handleChunkedREQ(env envelope.Envelope, flags envelope.Flags, remote socket.Remote, cfg Config) {
	baseID, index, ok := envelope.SplitChunkID(env.ID)
	if !ok || env.ChunkTotal == nil {
		return
	}
	total := *env.ChunkTotal

	e.metrics.ChunksReceivedTotal.Inc()
	e.reassembler.InitAssembly(baseID, total, remote.String(), flags.Codec, flags.Compressed)

	chunkText, ok := env.Body.(string)
	if !ok {
		return
	}
	complete, duplicate := e.reassembler.AddChunk(baseID, index, chunkText)
	if duplicate {
		e.metrics.ChunksDuplicateTotal.Inc()
	}
	if !complete {
		return
	}

	raw, codecUsed, compressed, ok := e.reassembler.GetAssembledData(baseID)
	if !ok {
		return
	}
	e.logger.ChunkReassembled(baseID, total)

	if !compressed {
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			e.logger.Error(err, "failed to decode reassembled payload")
			return
		}
		e.deliverMessage(value, remote, baseID)
		return
	}

	pipeline := e.currentPipeline()
	decoded, err := pipeline.DecompressBytes(raw, codecUsed)
	if err != nil {
		e.metrics.CodecUnavailableTotal.WithLabelValues(codecLabel(codecUsed)).Inc()
		e.logger.CodecUnavailable(baseID, int(codecUsed))
		return
	}
	var value any
	if err := json.Unmarshal(decoded, &value); err != nil {
		e.logger.Error(err, "failed to decode reassembled payload")
		return
	}
	e.deliverMessage(value, remote, baseID)
}

// handleACK resolves the matching tracker entry. A chunk ACK has no RES
// of its own, so it resolves immediately (its onResolve decrements the
// chunked send's remaining counter). A single-send ACK only stops
// retries; the handle stays registered until the matching RES arrives
//.
func (e *Engine) handleACK(env envelope.Envelope) {
	if _, _, ok := envelope.SplitChunkID(env.ID); ok {
		e.tr.InvokeAndRemove(env.ID, nil)
		e.logger.AckReceived(env.ID)
		return
	}
	if e.tr.MarkAcked(env.ID) {
		e.logger.AckReceived(env.ID)
	}
}

// handleRES resolves a single send's tracker entry with the response
// body, decompressing it first if Reply compressed it (mirrors
// handleSingleREQ's treatment of a compressed REQ body).
func (e *Engine) handleRES(env envelope.Envelope) {
	cfg := e.config()
	flags := env.DecodedFlags()
	if cfg.EnableChecksum && env.Checksum != "" && !e.checksumOK(env, flags) {
		e.logger.ChecksumMismatch(env.ID)
		e.metrics.ChecksumMismatchTotal.Inc()
		return
	}

	if !flags.Compressed {
		e.tr.InvokeAndRemove(env.ID, env.Body)
		return
	}

	b64, ok := env.Body.(string)
	if !ok {
		e.logger.Error(nil, "compressed body was not a string")
		return
	}
	pipeline := e.currentPipeline()
	value, ok := pipeline.TryDecompress(b64, flags.Codec)
	if !ok {
		e.metrics.CodecUnavailableTotal.WithLabelValues(codecLabel(flags.Codec)).Inc()
		e.logger.CodecUnavailable(env.ID, int(flags.Codec))
		return
	}
	e.tr.InvokeAndRemove(env.ID, value)
}

func (e *Engine) sendACK(id string, remote socket.Remote) {
	env := envelope.Envelope{
		ID:    id,
		Flags: envelope.EncodeFlags(envelope.TypeACK, envelope.CodecNone, false, false),
	}
	data, err := envelope.Serialize(env)
	if err != nil {
		return
	}
	if err := e.sock.Send(context.Background(), data, remote.Host, remote.Port); err != nil {
		e.logger.Error(err, "failed to send ack")
	}
}

func codecLabel(idx envelope.CodecIndex) string {
	switch idx {
	case envelope.CodecGzip:
		return "gzip"
	case envelope.CodecSnappy:
		return "snappy"
	case envelope.CodecLZ4:
		return "lz4"
	case envelope.CodecZstd:
		return "zstd"
	default:
		return "none"
	}
}


// Package observability wraps zerolog, prometheus, and opentelemetry the
// way QuantaraX's internal/observability package does, scaled to RDPE's
// domain events instead of file-transfer events.
package observability

import (
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Logger wraps zerolog for structured logging.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a structured logger for an engine instance.
func NewLogger(engineID uuid.UUID, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(output).With().
		Timestamp().
		Str("component", "rdpe").
		Str("engine_id", engineID.String()).
		Logger()

	return &Logger{logger: logger}
}

// WithPeer adds remote-endpoint context to the logger.
func (l *Logger) WithPeer(remote string) *Logger {
	return &Logger{logger: l.logger.With().Str("remote", remote).Logger()}
}

// WithRequest adds request_id context to the logger.
func (l *Logger) WithRequest(id string) *Logger {
	return &Logger{logger: l.logger.With().Str("request_id", id).Logger()}
}

func (l *Logger) Debug(msg string) { l.logger.Debug().Msg(msg) }
func (l *Logger) Info(msg string)  { l.logger.Info().Msg(msg) }
func (l *Logger) Warn(msg string)  { l.logger.Warn().Msg(msg) }
func (l *Logger) Error(err error, msg string) {
	l.logger.Error().Err(err).Msg(msg)
}

// RequestRegistered logs a new outstanding send.
func (l *Logger) RequestRegistered(id string, chunked bool, chunkTotal int) {
	l.logger.Debug().
		Str("request_id", id).
		Bool("chunked", chunked).
		Int("chunk_total", chunkTotal).
		Msg("request registered")
}

// AckReceived logs an ACK resolving a tracker entry, at debug level.
func (l *Logger) AckReceived(id string) {
	l.logger.Debug().Str("request_id", id).Msg("ack received")
}

// RequestRetried logs a retry attempt.
func (l *Logger) RequestRetried(id string, retryCount, maxRetries int) {
	l.logger.Debug().
		Str("request_id", id).
		Int("retry_count", retryCount).
		Int("max_retries", maxRetries).
		Msg("request retried")
}

// RequestTimedOut logs a request-timeout delivery.
func (l *Logger) RequestTimedOut(id string) {
	l.logger.Warn().Str("request_id", id).Msg("request timed out")
}

// ChecksumMismatch logs a silently-dropped checksum failure.
func (l *Logger) ChecksumMismatch(id string) {
	l.logger.Debug().Str("request_id", id).Msg("checksum mismatch, dropping")
}

// CodecUnavailable logs a failed decompress due to an unknown/unavailable codec.
func (l *Logger) CodecUnavailable(id string, codec int) {
	l.logger.Error().
		Str("request_id", id).
		Int("codec", codec).
		Msg("codec unavailable for delivery")
}

// ChunkReassembled logs completion of a chunked reassembly.
func (l *Logger) ChunkReassembled(baseID string, total int) {
	l.logger.Debug().Str("request_id", baseID).Int("chunk_total", total).Msg("chunks reassembled")
}

// GCSweep logs a garbage-collection sweep outcome.
func (l *Logger) GCSweep(staleAssemblies, oldRequests int) {
	l.logger.Debug().
		Int("stale_assemblies", staleAssemblies).
		Int("old_requests", oldRequests).
		Msg("gc sweep completed")
}

// PassthroughDatagram logs a non-envelope datagram forwarded to the
// application passthrough channel.
func (l *Logger) PassthroughDatagram(remote string, size int) {
	l.logger.Debug().Str("remote", remote).Int("size", size).Msg("passthrough datagram")
}

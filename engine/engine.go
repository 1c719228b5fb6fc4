// Package engine implements the Protocol Engine (C7): it orchestrates the
// send path (compress → chunk → retry) and the receive path (parse → ACK
// → route → decompress), and owns the garbage-collection loop. Grounded
// on QuantaraX's daemon/transport.sender_orchestrator.go (owns worker
// pools + scheduler, Close stops all of them) and chunk_receiver.go
// (parse → validate → ACK → deliver sequencing).
package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quantarax/rdpe/codec"
	"github.com/quantarax/rdpe/compression"
	"github.com/quantarax/rdpe/envelope"
	"github.com/quantarax/rdpe/id"
	"github.com/quantarax/rdpe/internal/observability"
	"github.com/quantarax/rdpe/reassembly"
	"github.com/quantarax/rdpe/socket"
	"github.com/quantarax/rdpe/tracker"
)

// Internal GC parameters. These are not part
// of the wire-compatible socket configuration, so they are fixed
// constants rather than Config fields.
const (
	cleanupInterval   = 10 * time.Second
	requestCleanupAge = 60 * time.Second
)

// MessageHandler receives each reassembled, decompressed logical message
// delivered to the application. requestID is the
// originating REQ's wire id (the base id for a chunked message) so the
// handler can answer it with Reply.
type MessageHandler func(value any, remote socket.Remote, requestID string)

// PassthroughHandler receives raw datagrams that did not parse as
// protocol envelopes.
type PassthroughHandler func(data []byte, remote socket.Remote)

// CompletionFunc is invoked once a Send resolves or fails. For a single
// (non-chunked) send it resolves on the matching RES and carries the
// RES body as value; for a chunked send it resolves once every chunk has
// been ACKed and value is nil, since individual chunks carry no RES of
// their own. err is non-nil on timeout or failure.
type CompletionFunc func(value any, err error)

// Engine is the Protocol Engine. It owns the Request Tracker and
// Assembly map exclusively and serializes all mutation of
// them through their own internal mutexes.
type Engine struct {
	id uuid.UUID

	sock socket.DatagramSocket

	cfgMu sync.RWMutex
	cfg   Config

	pipelineMu sync.RWMutex
	pipeline   *compression.Pipeline
	registry   *codec.Registry

	gen         *id.Generator
	tr          *tracker.Tracker
	scheduler   *tracker.Scheduler
	reassembler *reassembly.Reassembler

	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer

	handlerMu    sync.RWMutex
	handler      MessageHandler
	passthrough  PassthroughHandler

	gcStop chan struct{}
	gcDone chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
}

// Options configures engine construction beyond the wire-relevant Config.
type Options struct {
	WorkerID int
	Epoch    time.Time
	Metrics  *observability.Metrics
}

// New constructs an Engine over sock with the given Config and options.
func New(sock socket.DatagramSocket, cfg Config, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	gen, err := id.NewGenerator(opts.WorkerID, opts.Epoch)
	if err != nil {
		return nil, err
	}

	engineID := uuid.New()
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}

	e := &Engine{
		id:          engineID,
		sock:        sock,
		cfg:         cfg,
		registry:    codec.DefaultRegistry(),
		gen:         gen,
		scheduler:   tracker.NewScheduler(),
		reassembler: reassembly.NewReassembler(),
		logger:      observability.NewLogger(engineID, nil),
		metrics:     metrics,
		tracer:      observability.NewTracer(),
		gcStop:      make(chan struct{}),
		gcDone:      make(chan struct{}),
		closed:      make(chan struct{}),
	}
	e.pipeline = compression.NewPipeline(cfg.Compression, e.registry)
	e.tr = tracker.NewTracker(e.scheduler, func(id string, r any) {
		e.logger.Error(nil, "request callback panicked")
	})

	sock.OnMessage(e.handleDatagram)
	go e.runGC()
	return e, nil
}

func (e *Engine) config() Config {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg
}

func (e *Engine) currentPipeline() *compression.Pipeline {
	e.pipelineMu.RLock()
	defer e.pipelineMu.RUnlock()
	return e.pipeline
}

// observeCompressionRatio records compressed/original size for a
// successful TryCompress outcome, guarding against a zero originalSize.
func (e *Engine) observeCompressionRatio(originalSize, compressedSize int) {
	if originalSize <= 0 {
		return
	}
	e.metrics.CompressionRatio.Observe(float64(compressedSize) / float64(originalSize))
}

// Configure re-keys the engine with new parameters. It validates
// max_message_size before applying anything.
func (e *Engine) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfgMu.Lock()
	e.cfg = cfg
	e.cfgMu.Unlock()

	e.pipelineMu.Lock()
	e.pipeline.SetConfig(cfg.Compression)
	e.pipelineMu.Unlock()
	return nil
}

// OnMessage registers the handler invoked for each reassembled, delivered
// logical message.
func (e *Engine) OnMessage(handler MessageHandler) {
	e.handlerMu.Lock()
	e.handler = handler
	e.handlerMu.Unlock()
}

// OnPassthrough registers the handler invoked for non-envelope datagrams
//.
func (e *Engine) OnPassthrough(handler PassthroughHandler) {
	e.handlerMu.Lock()
	e.passthrough = handler
	e.handlerMu.Unlock()
}

func (e *Engine) deliverMessage(value any, remote socket.Remote, requestID string) {
	e.handlerMu.RLock()
	h := e.handler
	e.handlerMu.RUnlock()
	if h != nil {
		h(value, remote, requestID)
	}
}

func (e *Engine) deliverPassthrough(data []byte, remote socket.Remote) {
	e.logger.PassthroughDatagram(remote.String(), len(data))
	e.handlerMu.RLock()
	h := e.passthrough
	e.handlerMu.RUnlock()
	if h != nil {
		h(data, remote)
	}
}

// Send transmits message to host:port with at-least-once delivery,
// compressing and/or chunking it as needed.
// completion fires once, after the matching RES (single send) or after
// every chunk is ACKed (chunked send), or on failure/timeout.
func (e *Engine) Send(ctx context.Context, message any, host string, port int, completion CompletionFunc) {
	select {
	case <-e.closed:
		if completion != nil {
			completion(nil, ErrClosed)
		}
		return
	default:
	}

	ctx, end := e.tracer.StartSpan(ctx, "engine.send")
	defer end()

	cfg := e.config()
	pipeline := e.currentPipeline()

	payload, err := json.Marshal(message)
	if err != nil {
		if completion != nil {
			completion(nil, err)
		}
		return
	}

	sendBytes := payload
	compressed := false
	codecUsed := envelope.CodecNone
	origSize, compSize := 0, 0

	if pipeline.ShouldCompress(len(payload)) {
		if result, ok := pipeline.TryCompress(payload); ok {
			raw, decErr := base64.StdEncoding.DecodeString(result.Data)
			if decErr == nil {
				compressed = true
				codecUsed = result.Codec
				origSize = result.OriginalSize
				compSize = result.CompressedSize
				sendBytes = raw
				e.observeCompressionRatio(origSize, compSize)
			}
		}
	}

	if len(sendBytes) <= cfg.MaxMessageSize {
		e.singleSend(ctx, cfg, message, sendBytes, compressed, codecUsed, origSize, compSize, host, port, completion)
		return
	}
	e.chunkedSend(ctx, cfg, sendBytes, compressed, codecUsed, origSize, compSize, host, port, completion)
}

func (e *Engine) singleSend(ctx context.Context, cfg Config, message any, sendBytes []byte, compressed bool, codecUsed envelope.CodecIndex, origSize, compSize int, host string, port int, completion CompletionFunc) {
	reqID, err := e.gen.Generate()
	if err != nil {
		if completion != nil {
			completion(nil, err)
		}
		return
	}

	var body any
	var checksumBytes []byte
	if compressed {
		b64 := base64.StdEncoding.EncodeToString(sendBytes)
		body = b64
		checksumBytes = []byte(b64)
	} else {
		body = message
		checksumBytes = sendBytes
	}

	env := envelope.Envelope{
		ID:    reqID,
		Body:  body,
		Flags: envelope.EncodeFlags(envelope.TypeREQ, codecUsed, compressed, false),
	}
	if cfg.EnableChecksum {
		env.Checksum = envelope.Checksum(checksumBytes)
	}
	if compressed {
		env.OriginalSize = &origSize
		env.CompressedSize = &compSize
	}

	data, err := envelope.Serialize(env)
	if err != nil {
		if completion != nil {
			completion(nil, err)
		}
		return
	}

	e.logger.RequestRegistered(reqID, false, 1)
	e.metrics.RequestsSentTotal.WithLabelValues("single").Inc()
	start := time.Now()

	// Resolved on RES arrival: terminal state for a single send is RES,
	// not ACK. The ACK only stops retries via MarkAcked in handleACK.
	e.tr.Register(reqID,
		func(value any) {
			e.metrics.RequestDuration.Observe(time.Since(start).Seconds())
			if completion != nil {
				completion(value, nil)
			}
		},
		func() {
			e.metrics.RequestsTimedOutTotal.Inc()
			e.logger.RequestTimedOut(reqID)
			if completion != nil {
				completion(nil, ErrRequestTimeout)
			}
		},
		cfg.RequestTimeout,
	)
	e.transmit(ctx, cfg, reqID, data, host, port)
}

func (e *Engine) chunkedSend(ctx context.Context, cfg Config, sendBytes []byte, compressed bool, codecUsed envelope.CodecIndex, origSize, compSize int, host string, port int, completion CompletionFunc) {
	baseID, err := e.gen.Generate()
	if err != nil {
		if completion != nil {
			completion(nil, err)
		}
		return
	}

	chunks := reassembly.CreateChunks(sendBytes, cfg.ChunkSize)
	total := len(chunks)

	var once sync.Once
	var remaining int32 = int32(total)
	var mu sync.Mutex
	start := time.Now()

	// Resolved once every chunk has been individually ACKed: terminal
	// state for chunks is all-ACK, since chunks carry no RES of their
	// own; value is always nil.
	finish := func(err error) {
		once.Do(func() {
			if err == nil {
				e.metrics.RequestDuration.Observe(time.Since(start).Seconds())
			}
			if completion != nil {
				completion(nil, err)
			}
		})
	}

	e.logger.RequestRegistered(baseID, true, total)
	e.metrics.RequestsSentTotal.WithLabelValues("chunked").Inc()

	for i, chunkB64 := range chunks {
		chunkID := envelope.ChunkID(baseID, i)
		ci, ct := i, total

		env := envelope.Envelope{
			ID:         chunkID,
			Body:       chunkB64,
			Flags:      envelope.EncodeFlags(envelope.TypeREQ, codecUsed, compressed, true),
			ChunkIndex: &ci,
			ChunkTotal: &ct,
		}
		// Every chunk carries the compression codec bits: reassembly
		// must not depend on chunk 0 arriving first. os/cs are carried
		// on chunk 0 only.
		if compressed && i == 0 {
			o, c := origSize, compSize
			env.OriginalSize = &o
			env.CompressedSize = &c
		}
		if cfg.EnableChecksum {
			env.Checksum = envelope.Checksum([]byte(chunkB64))
		}

		data, err := envelope.Serialize(env)
		if err != nil {
			finish(err)
			continue
		}

		e.metrics.ChunksSentTotal.Inc()
		e.tr.Register(chunkID,
			func(any) {
				mu.Lock()
				remaining--
				done := remaining == 0
				mu.Unlock()
				if done {
					finish(nil)
				}
			},
			func() {
				e.metrics.RequestsTimedOutTotal.Inc()
				e.logger.RequestTimedOut(chunkID)
				finish(ErrRequestTimeout)
			},
			cfg.RequestTimeout,
		)
		e.transmit(ctx, cfg, chunkID, data, host, port)
	}
}

// transmit sends data once, then arms a retry timer per send_with_retry
//: a retry reuses the same envelope bytes and id.
func (e *Engine) transmit(ctx context.Context, cfg Config, reqID string, data []byte, host string, port int) {
	if err := e.sock.Send(ctx, data, host, port); err != nil {
		e.logger.Error(fmt.Errorf("%w: %v", ErrSendFailed, err), "datagram send failed")
	}
	e.armRetry(ctx, cfg, reqID, data, host, port)
}

func (e *Engine) armRetry(ctx context.Context, cfg Config, reqID string, data []byte, host string, port int) {
	st, ok := e.tr.State(reqID)
	if !ok || st.AckReceived {
		return
	}
	if st.RetryCount >= cfg.MaxRetries {
		return
	}
	h := e.scheduler.ScheduleOnce(cfg.RetryInterval, func() {
		newCount, ok := e.tr.IncrementRetry(reqID)
		if !ok {
			return
		}
		e.metrics.RequestsRetriedTotal.Inc()
		e.logger.RequestRetried(reqID, newCount, cfg.MaxRetries)
		e.transmit(ctx, cfg, reqID, data, host, port)
	})
	e.tr.SetRetryTimer(reqID, h)
}

// Close stops the GC loop, clears all tracker entries (invoking no
// callbacks), clears the assembly map, then closes the underlying socket
//.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.closed)
		close(e.gcStop)
		<-e.gcDone
		e.scheduler.Close()
		e.tr.Clear()
		e.reassembler.Clear()
		err = e.sock.Close()
	})
	return err
}

package engine_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quantarax/rdpe/engine"
	"github.com/quantarax/rdpe/envelope"
	"github.com/quantarax/rdpe/socket"
	"github.com/stretchr/testify/require"
)

// fakeSocket is an in-memory socket.DatagramSocket used to drive two
// engines against each other deterministically, without real UDP
// scheduling jitter. dropNext lets a test simulate a lost datagram to
// exercise the retry path.
type fakeSocket struct {
	mu       sync.Mutex
	host     string
	port     int
	handler  socket.Handler
	peers    map[string]*fakeSocket
	dropNext int
	sent     int
}

func newFakeNetwork() map[string]*fakeSocket {
	return make(map[string]*fakeSocket)
}

func newFakeSocket(net map[string]*fakeSocket, host string, port int) *fakeSocket {
	s := &fakeSocket{host: host, port: port, peers: net}
	net[key(host, port)] = s
	return s
}

func key(host string, port int) string { return fmt.Sprintf("%s:%d", host, port) }

func (s *fakeSocket) Send(ctx context.Context, data []byte, host string, port int) error {
	s.mu.Lock()
	if s.dropNext > 0 {
		s.dropNext--
		s.mu.Unlock()
		return nil
	}
	s.sent++
	peer := s.peers[key(host, port)]
	s.mu.Unlock()

	if peer == nil {
		return nil
	}
	peer.deliver(data, s.host, s.port)
	return nil
}

func (s *fakeSocket) deliver(data []byte, fromHost string, fromPort int) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h == nil {
		return
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	go h(cp, socket.Remote{Host: fromHost, Port: fromPort, Family: "fake", Size: len(cp)})
}

func (s *fakeSocket) OnMessage(h socket.Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

func (s *fakeSocket) Close() error { return nil }

func fastConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.MaxRetries = 5
	cfg.RetryInterval = 30 * time.Millisecond
	cfg.RequestTimeout = 2 * time.Second
	cfg.ReassemblyTimeout = 2 * time.Second
	return cfg
}

func newPair(t *testing.T, cfgA, cfgB engine.Config) (*engine.Engine, *engine.Engine, string, int, string, int) {
	t.Helper()
	net := newFakeNetwork()
	sockA := newFakeSocket(net, "a", 1)
	sockB := newFakeSocket(net, "b", 2)

	a, err := engine.New(sockA, cfgA, engine.Options{WorkerID: 1})
	require.NoError(t, err)
	b, err := engine.New(sockB, cfgB, engine.Options{WorkerID: 2})
	require.NoError(t, err)

	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b, "a", 1, "b", 2
}

// echo wires b to reply with whatever it received.
func echo(b *engine.Engine) {
	b.OnMessage(func(value any, remote socket.Remote, requestID string) {
		_ = b.Reply(context.Background(), requestID, value, remote.Host, remote.Port)
	})
}

func TestSmallEchoRoundTrip(t *testing.T) {
	cfg := fastConfig()
	a, b, _, _, bHost, bPort := newPair(t, cfg, cfg)
	echo(b)

	done := make(chan struct{})
	var got any
	var sendErr error
	a.Send(context.Background(), "hello", bHost, bPort, func(value any, err error) {
		got, sendErr = value, err
		close(done)
	})

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for completion")
	}
	require.NoError(t, sendErr)
	require.Equal(t, "hello", got)
}

func TestLargePayloadChunkedRoundTrip(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxMessageSize = 200
	cfg.ChunkSize = 64
	a, b, _, _, bHost, bPort := newPair(t, cfg, cfg)
	echo(b)

	payload := strings.Repeat("the quick brown fox jumps over the lazy dog ", 20)

	done := make(chan struct{})
	var got any
	var sendErr error
	a.Send(context.Background(), payload, bHost, bPort, func(value any, err error) {
		got, sendErr = value, err
		close(done)
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for completion")
	}
	require.NoError(t, sendErr)
	// A chunked send's completion carries no value (chunks resolve on
	// all-ACK, not RES). b's echo is not observed by A: RES is never
	// chunked, so Reply rejects this echo as larger than MaxMessageSize.
	require.Nil(t, got)
}

func TestCompressiblePayloadIsCompressedAndRoundTrips(t *testing.T) {
	cfg := fastConfig()
	cfg.Compression.Enabled = true
	cfg.Compression.Codec = envelope.CodecGzip
	cfg.Compression.MinSize = 16
	cfg.Compression.MinReductionPct = 5
	a, b, _, _, bHost, bPort := newPair(t, cfg, cfg)

	received := make(chan string, 1)
	b.OnMessage(func(value any, remote socket.Remote, requestID string) {
		if s, ok := value.(string); ok {
			received <- s
		}
		_ = b.Reply(context.Background(), requestID, value, remote.Host, remote.Port)
	})

	payload := strings.Repeat("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", 50)

	var resValue any
	var resErr error
	done := make(chan struct{})
	a.Send(context.Background(), payload, bHost, bPort, func(value any, err error) {
		resValue, resErr = value, err
		close(done)
	})

	select {
	case got := <-received:
		require.Equal(t, payload, got)
	case <-time.After(3 * time.Second):
		t.Fatal("b never received the message")
	}
	<-done
	// b's Reply also compresses (the echoed value exceeds MinSize), so
	// this asserts the RES side of the round trip is decompressed back
	// to the original payload rather than delivered as base64 ciphertext.
	require.NoError(t, resErr)
	require.Equal(t, payload, resValue)
}

func TestLostSingleRequestIsRetriedUntilDelivered(t *testing.T) {
	cfg := fastConfig()
	net := newFakeNetwork()
	sockA := newFakeSocket(net, "a", 1)
	sockB := newFakeSocket(net, "b", 2)
	sockA.dropNext = 2 // first two sends vanish; the third (2nd retry) lands

	a, err := engine.New(sockA, cfg, engine.Options{WorkerID: 1})
	require.NoError(t, err)
	b, err := engine.New(sockB, cfg, engine.Options{WorkerID: 2})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(); b.Close() })
	echo(b)

	done := make(chan struct{})
	var got any
	a.Send(context.Background(), "persistent", "b", 2, func(value any, err error) {
		got = value
		close(done)
	})

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out: retry never delivered the request")
	}
	require.Equal(t, "persistent", got)
}

func TestUTF8IntegrityAcrossChunking(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxMessageSize = 100
	cfg.ChunkSize = 24
	a, b, _, _, bHost, bPort := newPair(t, cfg, cfg)

	received := make(chan string, 1)
	b.OnMessage(func(value any, remote socket.Remote, requestID string) {
		if s, ok := value.(string); ok {
			received <- s
		}
	})

	payload := strings.Repeat("héllo wörld 世界 ", 10)
	a.Send(context.Background(), payload, bHost, bPort, nil)

	select {
	case got := <-received:
		require.Equal(t, payload, got)
	case <-time.After(3 * time.Second):
		t.Fatal("utf-8 payload was never delivered intact")
	}
}

func TestConfigureRejectsOutOfRangeMaxMessageSize(t *testing.T) {
	net := newFakeNetwork()
	sock := newFakeSocket(net, "a", 1)
	cfg := engine.DefaultConfig()
	e, err := engine.New(sock, cfg, engine.Options{WorkerID: 1})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	bad := cfg
	bad.MaxMessageSize = 99
	require.ErrorIs(t, e.Configure(bad), engine.ErrConfig)

	bad.MaxMessageSize = 65001
	require.ErrorIs(t, e.Configure(bad), engine.ErrConfig)
}

func TestSendAfterCloseFailsImmediately(t *testing.T) {
	net := newFakeNetwork()
	sock := newFakeSocket(net, "a", 1)
	cfg := engine.DefaultConfig()
	e, err := engine.New(sock, cfg, engine.Options{WorkerID: 1})
	require.NoError(t, err)
	require.NoError(t, e.Close())

	done := make(chan struct{})
	var gotErr error
	e.Send(context.Background(), "x", "b", 2, func(value any, err error) {
		gotErr = err
		close(done)
	})
	<-done
	require.ErrorIs(t, gotErr, engine.ErrClosed)
}

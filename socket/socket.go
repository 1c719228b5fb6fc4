// Package socket defines the datagram transport RDPE's engine consumes
// and a real net.UDPConn-backed implementation
// of it, grounded on QuantaraX's transport.QUICConnection wrapper (owns
// the raw connection, exposes Send/an accept loop/Close) with the QUIC
// session swapped for a generic net.PacketConn.
package socket

import (
	"context"
	"fmt"
	"net"
	"sync"
)

// Remote identifies the sender/recipient of a datagram.
type Remote struct {
	Host   string
	Port   int
	Family string
	Size   int
}

func (r Remote) String() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Handler is invoked for each datagram received on a DatagramSocket.
type Handler func(data []byte, remote Remote)

// DatagramSocket is the bidirectional, unreliable, unordered,
// length-limited datagram channel the Protocol Engine is built on top of
//.
type DatagramSocket interface {
	Send(ctx context.Context, data []byte, host string, port int) error
	OnMessage(handler Handler)
	Close() error
}

// UDPSocket implements DatagramSocket over a real net.UDPConn.
type UDPSocket struct {
	conn      *net.UDPConn
	handlerMu sync.RWMutex
	handler   Handler
	done      chan struct{}
}

// ListenUDP opens a UDP socket on addr (e.g. ":4433" or "127.0.0.1:0")
// and starts its receive loop.
func ListenUDP(addr string) (*UDPSocket, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("socket: resolve %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("socket: listen %q: %w", addr, err)
	}
	s := &UDPSocket{conn: conn, done: make(chan struct{})}
	go s.readLoop()
	return s, nil
}

// LocalAddr returns the socket's bound local address.
func (s *UDPSocket) LocalAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

func (s *UDPSocket) readLoop() {
	buf := make([]byte, 65535)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				return
			}
		}
		s.handlerMu.RLock()
		h := s.handler
		s.handlerMu.RUnlock()
		if h != nil {
			payload := make([]byte, n)
			copy(payload, buf[:n])
			h(payload, Remote{Host: addr.IP.String(), Port: addr.Port, Family: "udp", Size: n})
		}
	}
}

// Send writes data to host:port. ctx is accepted for interface symmetry
// with asynchronous transports; net.UDPConn's write is synchronous.
func (s *UDPSocket) Send(ctx context.Context, data []byte, host string, port int) error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return fmt.Errorf("socket: resolve %s:%d: %w", host, port, err)
	}
	_, err = s.conn.WriteToUDP(data, addr)
	return err
}

// OnMessage registers the handler invoked for each received datagram.
func (s *UDPSocket) OnMessage(handler Handler) {
	s.handlerMu.Lock()
	s.handler = handler
	s.handlerMu.Unlock()
}

// Close stops the receive loop and closes the underlying connection.
func (s *UDPSocket) Close() error {
	close(s.done)
	return s.conn.Close()
}

// Command rdpe-echo-server runs a Protocol Engine that answers every
// request with the same value it received, grounded on QuantaraX's
// cmd/quic_recv (flag-configured listener, print-as-you-go diagnostics).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/quantarax/rdpe/engine"
	"github.com/quantarax/rdpe/socket"
)

var listen string

func main() {
	flag.StringVar(&listen, "listen", ":4433", "Listen address (host:port)")
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	sock, err := socket.ListenUDP(listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	cfg := engine.DefaultConfig()
	eng, err := engine.New(sock, cfg, engine.Options{WorkerID: 1})
	if err != nil {
		return fmt.Errorf("construct engine: %w", err)
	}
	defer eng.Close()

	eng.OnMessage(func(value any, remote socket.Remote, requestID string) {
		fmt.Printf("req %s from %s: %v\n", requestID, remote.String(), value)
		if err := eng.Reply(context.Background(), requestID, value, remote.Host, remote.Port); err != nil {
			fmt.Fprintf(os.Stderr, "reply failed: %v\n", err)
		}
	})
	eng.OnPassthrough(func(data []byte, remote socket.Remote) {
		fmt.Printf("passthrough datagram from %s (%d bytes)\n", remote.String(), len(data))
	})

	fmt.Printf("rdpe echo server listening on %s\n", sock.LocalAddr().String())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	return nil
}

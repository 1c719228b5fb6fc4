// Command rdpe-echo-client sends one message to an rdpe-echo-server and
// waits for its RES, grounded on QuantaraX's cmd/quic_send (flag-driven
// one-shot sender with explicit completion reporting).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/quantarax/rdpe/engine"
	"github.com/quantarax/rdpe/socket"
)

var (
	target  string
	message string
)

func main() {
	flag.StringVar(&target, "target", "127.0.0.1:4433", "Server address (host:port)")
	flag.StringVar(&message, "message", "hello", "Message to send")
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func splitHostPort(addr string) (string, int) {
	var host string
	var port int
	fmt.Sscanf(addr, "%[^:]:%d", &host, &port)
	return host, port
}

func run() error {
	sock, err := socket.ListenUDP(":0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	cfg := engine.DefaultConfig()
	eng, err := engine.New(sock, cfg, engine.Options{WorkerID: 2})
	if err != nil {
		return fmt.Errorf("construct engine: %w", err)
	}
	defer eng.Close()

	host, port := splitHostPort(target)

	done := make(chan struct{})
	eng.Send(context.Background(), message, host, port, func(value any, err error) {
		defer close(done)
		if err != nil {
			fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
			return
		}
		fmt.Printf("response: %v\n", value)
	})

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		fmt.Fprintln(os.Stderr, "timed out waiting for completion")
	}
	return nil
}

// Package main runs a standalone JetStream server for latency runs.
//
// Running the server in its own process keeps broker work off the benchmark's
// scheduler, so measured latencies are not skewed by an in-process server. It
// listens on a random port unless -port is given and writes connection info to
// stdout for the parent process.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

func main() {
	port := flag.Int("port", 0, "listen port (random when 0)")
	storeDir := flag.String("store", "", "JetStream storage directory (temporary when empty)")
	flag.Parse()

	if *port == 0 {
		//nolint:noctx // no request context in a standalone main
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			log.Fatal("Failed to get available port:", err)
		}
		tcpAddr, ok := listener.Addr().(*net.TCPAddr)
		if !ok {
			log.Fatal("Failed to get TCP address from listener")
		}
		*port = tcpAddr.Port
		_ = listener.Close()
	}

	dir := *storeDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), fmt.Sprintf("busbench-nats-%d", os.Getpid()))
		defer func() {
			_ = os.RemoveAll(dir)
		}()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Fatal("Failed to create store directory:", err)
	}

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      *port,
		JetStream: true,
		StoreDir:  dir,
		NoLog:     true,
		NoSigs:    true,
	}

	srv, err := server.NewServer(opts)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to create NATS server: %v\n", err)
		os.Exit(1) //nolint:gocritic // temporary store is left to the OS
	}

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		_, _ = fmt.Fprintln(os.Stderr, "NATS server not ready within timeout")
		os.Exit(1)
	}

	fmt.Printf("NATS_URL=nats://%s:%d\n", opts.Host, opts.Port)
	fmt.Println("NATS_READY=true")
	_, _ = fmt.Fprintf(os.Stderr, "NATS server started on port %d (PID: %d)\n", *port, os.Getpid())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	srv.Shutdown()
	srv.WaitForShutdown()
}

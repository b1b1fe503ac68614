package testing

import (
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// ServerOption adjusts the embedded server options before start.
type ServerOption func(*server.Options)

// WithServerToken requires clients to authenticate with token.
func WithServerToken(token string) ServerOption {
	return func(o *server.Options) {
		o.Authorization = token
	}
}

// StartEmbeddedNATS starts an embedded NATS server with JetStream enabled for testing.
//
// The server runs in-process on a random port and stores data in a temporary
// directory that is removed when the test completes. Server and connection are
// shut down via t.Cleanup().
//
// Parameters:
//   - t: Testing context for logging and cleanup
//   - opts: Optional server adjustments (e.g., WithServerToken)
//
// Returns:
//   - *server.Server: The embedded NATS server instance
//   - *nats.Conn: Connected NATS client, or nil when the server requires a token
//
// Example:
//
//	func TestJetStreamTransport(t *testing.T) {
//	    _, nc := bustest.StartEmbeddedNATS(t)
//	    tr, _ := natsjs.New(nc, "orders", natsjs.WithPartitions(4))
//	}
func StartEmbeddedNATS(t *testing.T, opts ...ServerOption) (*server.Server, *nats.Conn) {
	t.Helper()

	sopts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,          // Use random available port
		JetStream: true,        // Streams back the JetStream transport
		StoreDir:  t.TempDir(), // Use test temp dir (auto-cleanup)
		NoLog:     true,        // Suppress all server logs in tests
	}
	for _, opt := range opts {
		opt(sopts)
	}

	ns, err := server.NewServer(sopts)
	if err != nil {
		t.Fatalf("Failed to create embedded NATS server: %v", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		t.Fatal("Embedded NATS server not ready within timeout")
	}

	if sopts.Authorization != "" {
		t.Cleanup(func() {
			ns.Shutdown()
			ns.WaitForShutdown()
		})

		return ns, nil
	}

	nc, err := nats.Connect(ns.ClientURL(),
		nats.Timeout(2*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(3),
	)
	if err != nil {
		ns.Shutdown()
		t.Fatalf("Failed to connect to embedded NATS server: %v", err)
	}

	// Cleanup runs in reverse registration order: connection first, then server.
	t.Cleanup(func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	return ns, nc
}

// Package testing provides test utilities for the busbench library.
//
// It follows Go's convention of shipping testing helpers in a dedicated
// package (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: In-process NATS server with JetStream
//   - MemoryBus: In-memory Transport and Admin with per-partition delivery
//   - NewTestLogger: Logger writing to testing.T
//
// Example usage:
//
//	import (
//	    "testing"
//	    bustest "github.com/arloliu/busbench/testing"
//	)
//
//	func TestBenchmark(t *testing.T) {
//	    bus := bustest.NewMemoryBus("orders", 4)
//	    // Use bus as both transport and admin
//	}
package testing

// Package testutil provides helpers for end-to-end latency tests.
//
// The main helper starts a JetStream server in a separate process so that a
// benchmark running inside the test binary measures the bus, not a broker
// sharing its scheduler and heap.
//
// For in-process servers and the in-memory bus, use the
// github.com/arloliu/busbench/testing package.
package testutil

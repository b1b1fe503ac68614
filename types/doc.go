// Package types provides core type definitions and interfaces for the busbench library.
//
// This package contains shared types used across the sas, batch, latency and
// transport packages. Keeping them separate avoids import cycles between the
// root busbench package and its implementations.
//
// Key types:
//   - OutboundEvent, Batch: Publish-side data model
//   - ReceivedEvent, RecorderState: Receive-side data model and recorder lifecycle
//   - Sender, Receiver, Admin: Bus collaborator contracts
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types

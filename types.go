package busbench

import "github.com/arloliu/busbench/types"

// Re-export types from the types package.
//
// Internal packages depend on types instead of the root package, which keeps
// the import graph acyclic while callers can still write busbench.Logger,
// busbench.Transport and so on.
type (
	OutboundEvent = types.OutboundEvent
	ReceivedEvent = types.ReceivedEvent
	Batch         = types.Batch
	RecorderState = types.RecorderState
	EntityPath    = types.EntityPath
	EntityOptions = types.EntityOptions
)

// Re-export interfaces from the types package for convenience.
type (
	Logger           = types.Logger
	MetricsCollector = types.MetricsCollector
	Sender           = types.Sender
	Receiver         = types.Receiver
	Transport        = types.Transport
	Admin            = types.Admin
	DeliveryHandle   = types.DeliveryHandle
)

// Re-export RecorderState constants.
const (
	RecorderIdle      = types.RecorderIdle
	RecorderRecording = types.RecorderRecording
	RecorderDraining  = types.RecorderDraining
	RecorderClosed    = types.RecorderClosed
)

// DefaultConsumerGroup is the consumer group that needs no subscription.
const DefaultConsumerGroup = types.DefaultConsumerGroup

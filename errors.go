package busbench

import (
	"errors"

	"github.com/arloliu/busbench/types"
)

// Re-exported sentinel errors. Match them with errors.Is.
var (
	// ErrInvalidKey is returned when a signing key or key name is empty.
	ErrInvalidKey = types.ErrInvalidKey

	// ErrInvalidResource is returned when a token resource URI is not absolute.
	ErrInvalidResource = types.ErrInvalidResource

	// ErrOversizedEvent is returned when an event can never fit in a batch.
	ErrOversizedEvent = types.ErrOversizedEvent

	// ErrSendFailed is returned when a batch dispatch fails.
	ErrSendFailed = types.ErrSendFailed

	// ErrAggregateOnOpenStore is returned when aggregating before the recorder is closed.
	ErrAggregateOnOpenStore = types.ErrAggregateOnOpenStore

	// ErrRecorderClosed is returned when recording into a closed recorder.
	ErrRecorderClosed = types.ErrRecorderClosed

	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrTransportRequired is returned when a benchmark is created without a transport.
	ErrTransportRequired = errors.New("transport is required")

	// ErrAdminRequired is returned when a run needs a subscription but no admin is configured.
	ErrAdminRequired = errors.New("admin is required for a named consumer group")

	// ErrEntityNotFound is returned when a topic or subscription does not exist.
	ErrEntityNotFound = types.ErrEntityNotFound
)

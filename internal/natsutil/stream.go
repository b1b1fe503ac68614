package natsutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// EnsureStreamWithRetry creates or opens a JetStream stream with retry logic.
//
// Several benchmark processes may race to create the same topic stream. A
// create that loses the race falls back to opening the existing stream, and
// transient failures are retried with exponential backoff.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - config: Stream configuration
//   - maxRetries: Maximum number of attempts (default: 3)
//
// Returns:
//   - jetstream.Stream: The stream handle
//   - error: Last error after all attempts
//
// Example:
//
//	stream, err := natsutil.EnsureStreamWithRetry(ctx, js, jetstream.StreamConfig{
//	    Name:     "orders",
//	    Subjects: []string{"orders.*"},
//	}, 3)
func EnsureStreamWithRetry(
	ctx context.Context,
	js jetstream.JetStream,
	config jetstream.StreamConfig,
	maxRetries int,
) (jetstream.Stream, error) {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error

	for attempt := range maxRetries {
		stream, err := js.CreateStream(ctx, config)
		if err == nil {
			return stream, nil
		}

		if errors.Is(err, jetstream.ErrStreamNameAlreadyInUse) {
			stream, err := js.Stream(ctx, config.Name)
			if err == nil {
				return stream, nil
			}
			lastErr = fmt.Errorf("stream exists but failed to open: %w", err)
		} else {
			lastErr = err
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("context cancelled during stream creation: %w", ctx.Err())
		}

		// Exponential backoff: 10ms, 20ms, 40ms...
		if attempt < maxRetries-1 {
			backoff := time.Duration(1<<uint(attempt)) * 10 * time.Millisecond //nolint:gosec // attempt is bounded by maxRetries
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("failed to create/open stream %s after %d attempts: %w",
		config.Name, maxRetries, lastErr)
}

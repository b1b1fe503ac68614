package natsutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	bustest "github.com/arloliu/busbench/testing"
)

func TestIsConnectivityError(t *testing.T) {
	require.False(t, IsConnectivityError(nil))
	require.False(t, IsConnectivityError(errors.New("bad request")))
	require.True(t, IsConnectivityError(nats.ErrTimeout))
	require.True(t, IsConnectivityError(fmt.Errorf("fetch: %w", nats.ErrConnectionClosed)))
	require.True(t, IsConnectivityError(errors.New("dial tcp: connection refused")))
}

func TestSanitizeName(t *testing.T) {
	require.Equal(t, "orders", SanitizeName("orders"))
	require.Equal(t, "a_b_c_d_e_f", SanitizeName("a.b*c>d/e\\f"))
	require.Equal(t, "$Default_x", SanitizeName("$Default x"))
	require.Equal(t, "tab_", SanitizeName("tab\t"))
}

// TestEnsureStreamWithRetry_Concurrent verifies racing creators all end up
// with a handle to the same stream.
func TestEnsureStreamWithRetry_Concurrent(t *testing.T) {
	_, nc := bustest.StartEmbeddedNATS(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	cfg := jetstream.StreamConfig{Name: "orders", Subjects: []string{"orders.*"}}

	const workers = 5
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Go(func() {
			_, errs[i] = EnsureStreamWithRetry(ctx, js, cfg, 5)
		})
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	stream, err := js.Stream(ctx, "orders")
	require.NoError(t, err)
	require.Equal(t, []string{"orders.*"}, stream.CachedInfo().Config.Subjects)
}

func TestEnsureStreamWithRetry_CancelledContext(t *testing.T) {
	_, nc := bustest.StartEmbeddedNATS(t)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = EnsureStreamWithRetry(ctx, js, jetstream.StreamConfig{Name: "late", Subjects: []string{"late.*"}}, 3)
	require.Error(t, err)
}

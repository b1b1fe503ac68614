package testing

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

func TestStartEmbeddedNATS(t *testing.T) {
	ns, nc := StartEmbeddedNATS(t)

	require.NotNil(t, ns)
	require.NotNil(t, nc)
	require.True(t, nc.IsConnected())
	require.True(t, ns.ReadyForConnections(1*time.Second))
	require.True(t, ns.JetStreamEnabled())
}

// TestStartEmbeddedNATS_ParallelTests verifies parallel servers do not conflict on ports.
func TestStartEmbeddedNATS_ParallelTests(t *testing.T) {
	t.Parallel()

	for range 3 {
		t.Run("parallel", func(t *testing.T) {
			t.Parallel()

			_, nc := StartEmbeddedNATS(t)
			require.NotNil(t, nc)
			require.True(t, nc.IsConnected())
		})
	}
}

func TestStartEmbeddedNATS_WithToken(t *testing.T) {
	ns, nc := StartEmbeddedNATS(t, WithServerToken("s3cret"))
	require.Nil(t, nc)

	_, err := nats.Connect(ns.ClientURL(), nats.Token("wrong"), nats.MaxReconnects(0))
	require.Error(t, err)

	conn, err := nats.Connect(ns.ClientURL(), nats.Token("s3cret"))
	require.NoError(t, err)
	defer conn.Close()
	require.True(t, conn.IsConnected())
}

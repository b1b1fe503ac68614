package metrics

import (
	"testing"

	"github.com/arloliu/busbench/types"
	"github.com/stretchr/testify/require"
)

func TestNewNop(t *testing.T) {
	metrics := NewNop()

	require.NotNil(t, metrics)
	require.IsType(t, &NopMetrics{}, metrics)
}

func TestNopMetrics_DoesNotPanic(t *testing.T) {
	metrics := NewNop()

	require.NotPanics(t, func() {
		metrics.RecordBatchDispatched(5, 1024, true)
		metrics.RecordBatchDispatched(0, 0, false)
		metrics.RecordDelivery("0", 0.012)
		metrics.RecordDelivery("", -1)
		metrics.RecordRejectedDelivery(types.RecorderClosed)
		metrics.RecordSendDuration("jetstream", 0.004)
		metrics.RecordReceiveError("kafka")
	})
}

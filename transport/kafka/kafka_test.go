package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/goleak"

	"github.com/arloliu/busbench/sas"
	"github.com/arloliu/busbench/types"
)

func fixedSigner(t *testing.T) *sas.Signer {
	t.Helper()

	signer, err := sas.NewSigner("manageKey", []byte("secret"),
		sas.WithClock(func() time.Time { return time.Unix(1700000000, 0) }),
	)
	require.NoError(t, err)

	return signer
}

func TestConnectionString(t *testing.T) {
	cs, err := ConnectionString("sb://NS.example.net:9093/", "tok")
	require.NoError(t, err)
	require.Equal(t, "Endpoint=sb://ns.example.net/;SharedAccessSignature=tok", cs)

	_, err = ConnectionString("", "tok")
	require.ErrorIs(t, err, types.ErrInvalidResource)
}

func TestSASLMechanism(t *testing.T) {
	signer := fixedSigner(t)

	mech, err := SASLMechanism(signer, "ns.example.net")
	require.NoError(t, err)
	require.Equal(t, "PLAIN", mech.Name())

	_, msg, err := mech.Authenticate(t.Context(), "ns.example.net:9093")
	require.NoError(t, err)

	tok, err := signer.EntityToken("ns.example.net", "")
	require.NoError(t, err)
	want := "\x00$ConnectionString\x00Endpoint=sb://ns.example.net/;SharedAccessSignature=" + tok.Value
	require.Equal(t, want, string(msg))

	_, err = SASLMechanism(nil, "ns.example.net")
	require.Error(t, err)
	_, err = SASLMechanism(signer, "")
	require.ErrorIs(t, err, types.ErrInvalidResource)
}

func TestClientOpts(t *testing.T) {
	_, err := clientOpts(defaultOptions())
	require.Error(t, err)

	o := defaultOptions()
	for _, opt := range []Option{
		WithBrokers("localhost:9093"),
		WithSAS(fixedSigner(t), "ns.example.net"),
		WithClientID("bench-1"),
	} {
		opt(&o)
	}
	require.NotNil(t, o.tlsConfig)
	require.Equal(t, "bench-1", o.clientID)

	opts, err := clientOpts(o)
	require.NoError(t, err)
	// seed brokers, client id, fetch wait, TLS and SASL
	require.Len(t, opts, 5)
}

func TestNew_Validation(t *testing.T) {
	_, err := New("")
	require.ErrorIs(t, err, types.ErrInvalidEntityPath)

	_, err = New("orders")
	require.Error(t, err)
}

func TestTransport_BuildRecords(t *testing.T) {
	tr, err := New("orders", WithBrokers("127.0.0.1:9092"), WithPartitions(8))
	require.NoError(t, err)
	defer func() { require.NoError(t, tr.Close()) }()
	require.Equal(t, 8, tr.Partitions())

	b := types.NewBatch("game-1", 1<<20, 0)
	b.TryAdd(&types.OutboundEvent{ID: "e1", PartitionKey: "game-1", Payload: []byte("a"), Properties: map[string]string{"gameId": "game-1"}})
	b.TryAdd(&types.OutboundEvent{ID: "e2", PartitionKey: "game-1", Payload: []byte("b")})
	b.Seal()

	records := tr.buildRecords(b)
	require.Len(t, records, 2)
	want := int32(tr.partitioner.Partition("game-1")) //nolint:gosec // test
	for _, r := range records {
		require.Equal(t, "orders", r.Topic)
		require.Equal(t, want, r.Partition)
		require.Equal(t, []byte("game-1"), r.Key)
	}
	require.Equal(t, []byte("a"), records[0].Value)
	require.Contains(t, records[0].Headers, kgo.RecordHeader{Key: HeaderEventID, Value: []byte("e1")})
	require.Contains(t, records[0].Headers, kgo.RecordHeader{Key: "gameId", Value: []byte("game-1")})
	require.Len(t, records[1].Headers, 1)

	unkeyed := types.NewBatch("", 1<<20, 0)
	unkeyed.TryAdd(&types.OutboundEvent{Payload: []byte("x")})
	unkeyed.Seal()
	records = tr.buildRecords(unkeyed)
	require.Nil(t, records[0].Key)
	require.Empty(t, records[0].Headers)
}

func TestToDelivery(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	d := toDelivery(&kgo.Record{
		Partition: 3,
		Offset:    42,
		Timestamp: ts,
		Value:     []byte("body"),
		Headers:   []kgo.RecordHeader{{Key: "gameId", Value: []byte("g")}},
	})

	require.Equal(t, "3", d.PartitionID)
	require.Equal(t, int64(42), d.SequenceNumber)
	require.Equal(t, ts, d.EnqueuedAt)
	require.Equal(t, "body", string(d.Body))
	require.Equal(t, map[string]string{"gameId": "g"}, d.Properties)
}

func TestRouter_PerPartitionOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	got := make(map[string][]int64)
	handler := func(_ context.Context, d types.Delivery) error {
		mu.Lock()
		got[d.PartitionID] = append(got[d.PartitionID], d.SequenceNumber)
		mu.Unlock()

		if d.SequenceNumber == 2 && d.PartitionID == "1" {
			return errors.New("bad body")
		}

		return nil
	}
	var errs []string
	onError := func(partitionID string, _ error) {
		mu.Lock()
		errs = append(errs, partitionID)
		mu.Unlock()
	}

	r := newRouter(t.Context(), handler, onError)
	r.dispatch(0, []*kgo.Record{{Partition: 0, Offset: 0}, {Partition: 0, Offset: 1}})
	r.dispatch(1, []*kgo.Record{{Partition: 1, Offset: 1}, {Partition: 1, Offset: 2}})
	r.dispatch(0, []*kgo.Record{{Partition: 0, Offset: 2}})
	r.dispatch(2, nil)
	require.Len(t, r.workers, 2)
	r.close()

	require.Equal(t, []int64{0, 1, 2}, got["0"])
	require.Equal(t, []int64{1, 2}, got["1"])
	require.Equal(t, []string{"1"}, errs)
}

func TestRouter_DropsAfterCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(t.Context())
	calls := 0
	r := newRouter(ctx, func(context.Context, types.Delivery) error {
		calls++
		return nil
	}, func(string, error) {})

	cancel()
	r.dispatch(0, []*kgo.Record{{Partition: 0}, {Partition: 0}})
	r.close()
	require.Zero(t, calls)
}

type captureLogger struct {
	mu     sync.Mutex
	levels []string
}

func (c *captureLogger) add(level string) {
	c.mu.Lock()
	c.levels = append(c.levels, level)
	c.mu.Unlock()
}

func (c *captureLogger) Debug(string, ...any) { c.add("debug") }
func (c *captureLogger) Info(string, ...any)  { c.add("info") }
func (c *captureLogger) Warn(string, ...any)  { c.add("warn") }
func (c *captureLogger) Error(string, ...any) { c.add("error") }
func (c *captureLogger) Fatal(string, ...any) { c.add("fatal") }

func TestKgoLogger(t *testing.T) {
	c := &captureLogger{}
	l := kgoLogger{logger: c}

	require.Equal(t, kgo.LogLevelWarn, l.Level())
	l.Log(kgo.LogLevelError, "e")
	l.Log(kgo.LogLevelWarn, "w")
	l.Log(kgo.LogLevelInfo, "i")
	l.Log(kgo.LogLevelDebug, "d")
	require.Equal(t, []string{"error", "warn", "info", "debug"}, c.levels)
}

package main

import (
	"github.com/arloliu/busbench"
	"github.com/arloliu/busbench/sas"
	"github.com/arloliu/busbench/transport/kafka"
	"github.com/arloliu/busbench/transport/natsjs"
	"github.com/arloliu/busbench/types"
)

// openedBus is a connected transport with its admin. Close releases both.
type openedBus struct {
	transport types.Transport
	admin     types.Admin
	closers   []func()
}

func (b *openedBus) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func newSigner(cfg busbench.Config) (*sas.Signer, error) {
	if !cfg.Auth.Enabled() {
		return nil, nil
	}

	return sas.NewSigner(cfg.Auth.KeyName, []byte(cfg.Auth.Key), sas.WithValidity(cfg.Auth.Validity))
}

// openBus connects the transport selected by cfg.Transport.
func openBus(cfg busbench.Config, logger types.Logger, m types.MetricsCollector) (*openedBus, error) {
	signer, err := newSigner(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Transport == busbench.TransportKafka {
		return openKafka(cfg, signer, logger, m)
	}

	return openJetStream(cfg, signer, logger, m)
}

func openJetStream(cfg busbench.Config, signer *sas.Signer, logger types.Logger, m types.MetricsCollector) (*openedBus, error) {
	var audience string
	if signer != nil {
		var err error
		audience, err = sas.BuildAudience(cfg.Namespace, cfg.Topic)
		if err != nil {
			return nil, err
		}
	}

	nc, err := natsjs.Connect(cfg.NATS.URL, signer, audience, logger)
	if err != nil {
		return nil, err
	}
	b := &openedBus{closers: []func(){nc.Close}}

	tr, err := natsjs.New(nc, cfg.Topic,
		natsjs.WithPartitions(cfg.Partitions),
		natsjs.WithFetchBatch(cfg.NATS.FetchBatch),
		natsjs.WithFetchExpiry(cfg.NATS.FetchExpiry),
		natsjs.WithAckTimeout(cfg.NATS.AckTimeout),
		natsjs.WithLogger(logger),
		natsjs.WithMetrics(m),
	)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.transport = tr
	b.closers = append(b.closers, func() { _ = tr.Close() })

	admin, err := natsjs.NewAdmin(nc, natsjs.WithPartitions(cfg.Partitions), natsjs.WithLogger(logger))
	if err != nil {
		b.Close()
		return nil, err
	}
	b.admin = admin

	return b, nil
}

func openKafka(cfg busbench.Config, signer *sas.Signer, logger types.Logger, m types.MetricsCollector) (*openedBus, error) {
	opts := []kafka.Option{
		kafka.WithBrokers(cfg.Kafka.Brokers...),
		kafka.WithClientID(cfg.Kafka.ClientID),
		kafka.WithPartitions(cfg.Partitions),
		kafka.WithReplicationFactor(cfg.Kafka.ReplicationFactor),
		kafka.WithLogger(logger),
		kafka.WithMetrics(m),
	}
	if signer != nil {
		opts = append(opts, kafka.WithSAS(signer, cfg.Namespace))
	} else if cfg.Kafka.TLS {
		opts = append(opts, kafka.WithTLS(nil))
	}

	tr, err := kafka.New(cfg.Topic, opts...)
	if err != nil {
		return nil, err
	}
	b := &openedBus{transport: tr, closers: []func(){func() { _ = tr.Close() }}}

	admin, err := kafka.NewAdmin(opts...)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.admin = admin
	b.closers = append(b.closers, admin.Close)

	return b, nil
}

// Package busbench measures publish/subscribe latency on a partitioned message bus.
//
// A benchmark publishes a burst of events that share one partition key,
// receives them through a consumer group and records, for every delivery, the
// time from production to broker acceptance (enqueued) and from acceptance to
// observation (received). The result is a per-delivery CSV report plus summary
// statistics.
//
// # Quick Start
//
// Benchmark a NATS JetStream server:
//
//	import (
//	    "github.com/arloliu/busbench"
//	    "github.com/arloliu/busbench/transport/natsjs"
//	)
//
//	cfg := busbench.DefaultConfig()
//	cfg.Topic = "orders"
//
//	nc, _ := natsjs.Connect(cfg.NATS.URL, nil, "", nil)
//	defer nc.Close()
//
//	tr, _ := natsjs.New(nc, cfg.Topic, natsjs.WithPartitions(cfg.Partitions))
//	admin, _ := natsjs.NewAdmin(nc)
//
//	bench, err := busbench.NewBenchmark(cfg, tr, busbench.WithAdmin(admin))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := bench.Run(ctx)
//
// # Building Blocks
//
//   - sas: Shared access signature tokens for namespaces and entities
//   - batch: Packs events into size- and count-bounded batches per partition key
//   - latency: Concurrent per-partition recorder, statistics and CSV output
//   - transport/natsjs: JetStream transport and admin
//   - transport/kafka: Kafka transport and admin, with SAS over SASL/PLAIN
//
// # Run Sequence
//
//	ensure entities → start recorder → start delivery → publish → observe window
//	→ stop recorder → stop delivery → close recorder → aggregate → write CSV
//
// Deliveries for one partition are handled in order on one goroutine; distinct
// partitions are handled concurrently.
//
// See cmd/busbench for the command-line tool and examples/ for library usage.
package busbench

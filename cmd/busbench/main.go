// Command busbench measures publish/subscribe latency on a partitioned bus.
//
// Usage:
//
//	busbench latency -m 100 --window 30s
//	busbench sas RootManageSharedAccessKey --namespace ns.example.net --key <key>
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

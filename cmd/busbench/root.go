package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arloliu/busbench"
	"github.com/arloliu/busbench/internal/logging"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	transport  string
	namespace  string
	topic      string
	partitions int
	keyName    string
	key        string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "busbench",
		Short:         "Latency benchmark for partitioned publish/subscribe buses",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "path to YAML configuration file")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&g.transport, "transport", "", "bus transport: jetstream or kafka")
	pf.StringVarP(&g.namespace, "namespace", "n", "", "fully qualified namespace tokens are scoped to")
	pf.StringVarP(&g.topic, "topic", "t", "", "topic to publish to")
	pf.IntVar(&g.partitions, "partitions", 0, "partition count of the topic")
	pf.StringVar(&g.keyName, "key-name", "", "shared access rule name")
	pf.StringVar(&g.key, "key", "", "shared access key")

	root.AddCommand(newLatencyCmd(g), newSASCmd(g))

	return root
}

// loadConfig reads the configuration file, when given, and applies the
// global flags the user set on top of it.
func (g *globalFlags) loadConfig(cmd *cobra.Command) (busbench.Config, error) {
	cfg := busbench.DefaultConfig()
	if g.configPath != "" {
		loaded, err := busbench.LoadConfig(g.configPath)
		if err != nil {
			return busbench.Config{}, err
		}
		cfg = *loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = g.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = g.logFormat
	}
	if flags.Changed("transport") {
		cfg.Transport = g.transport
	}
	if flags.Changed("namespace") {
		cfg.Namespace = g.namespace
	}
	if flags.Changed("topic") {
		cfg.Topic = g.topic
	}
	if flags.Changed("partitions") {
		cfg.Partitions = g.partitions
	}
	if flags.Changed("key-name") {
		cfg.Auth.KeyName = g.keyName
	}
	if flags.Changed("key") {
		cfg.Auth.Key = g.key
	}

	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg busbench.Config) (*logging.SlogLogger, error) {
	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return logger, nil
}

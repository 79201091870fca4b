package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oikos-cash/oikos-data-bsc/internal/config"
	"github.com/oikos-cash/oikos-data-bsc/internal/storage"
	"github.com/oikos-cash/oikos-data-bsc/internal/storage/postgres"
	"github.com/oikos-cash/oikos-data-bsc/oikos"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "oikosdata",
		Short:        "Query and stream Oikos subgraph data",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	fetchCmd := &cobra.Command{
		Use:       "fetch <entity>",
		Short:     "Fetch normalized records of one entity",
		Args:      cobra.ExactArgs(1),
		ValidArgs: oikos.Entities(),
		RunE:      runFetch,
	}
	addClientFlags(fetchCmd.Flags())
	addSinkFlags(fetchCmd.Flags())
	fetchCmd.Flags().String("network", "mainnet", "network filter, where supported")
	fetchCmd.Flags().Int("max", 0, "maximum records, 0 means the entity default and -1 everything")
	fetchCmd.Flags().String("min-timestamp", "", "minimum timestamp (unix seconds or RFC3339)")
	fetchCmd.Flags().String("max-timestamp", "", "maximum timestamp (unix seconds or RFC3339)")
	fetchCmd.Flags().Int64("min-block", 0, "minimum block (inclusive)")
	fetchCmd.Flags().Int64("max-block", 0, "maximum block (inclusive)")
	fetchCmd.Flags().String("address", "", "sender, user or account address")
	fetchCmd.Flags().String("to", "", "recipient address")
	fetchCmd.Flags().String("synth", "", "synth currency key")
	fetchCmd.Flags().Bool("swallow-errors", false, "log query errors and exit successfully with no records")
	root.AddCommand(fetchCmd)

	watchCmd := &cobra.Command{
		Use:       "watch [stream...]",
		Short:     "Stream trades and rate updates as they are indexed",
		ValidArgs: oikos.Streams(),
		RunE:      runWatch,
	}
	addClientFlags(watchCmd.Flags())
	addSinkFlags(watchCmd.Flags())
	watchCmd.Flags().String("ws-exchanges", "", "exchanges subscription endpoint")
	watchCmd.Flags().String("ws-rates", "", "rates subscription endpoint")
	watchCmd.Flags().Bool("reconnect", true, "re-open dropped subscriptions")
	watchCmd.Flags().StringSlice("streams", nil, "streams to watch when none are given as arguments")
	watchCmd.Flags().String("min-timestamp", "", "rates start after this timestamp when no cursor is stored")
	watchCmd.Flags().String("cursor-file", "", "rates cursor file; defaults to Postgres when --pg-dsn is set")
	root.AddCommand(watchCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Report indexed blocks and lag behind the chain head",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
	addClientFlags(statusCmd.Flags())
	statusCmd.Flags().String("rpc", "", "chain RPC URL used to compute lag")
	root.AddCommand(statusCmd)

	return root
}

// addClientFlags registers flags for the query endpoints and pager. Unset
// endpoint flags fall back to the config file, env and built-in endpoints.
func addClientFlags(flags *pflag.FlagSet) {
	flags.String("endpoint-oks", "", "oks subgraph endpoint")
	flags.String("endpoint-depot", "", "depot subgraph endpoint")
	flags.String("endpoint-exchanges", "", "exchanges subgraph endpoint")
	flags.String("endpoint-rates", "", "rates subgraph endpoint")
	flags.Int("page-size", 1000, "records per page")
	flags.Float64("rate-limit", 0, "maximum requests per second, 0 means unlimited")
	flags.Duration("http-timeout", oikos.DefaultConfig().HTTPTimeout, "HTTP request timeout")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addSinkFlags(flags *pflag.FlagSet) {
	flags.String("out", storage.Stdout, "output JSONL path, - for stdout, empty to disable")
	flags.String("pg-dsn", "", "Postgres DSN")
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// openSinks opens the configured sinks. The store is nil without a DSN.
func openSinks(ctx context.Context, cfg config.Config) (storage.Sink, *postgres.Store, error) {
	var sinks storage.MultiSink
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}

	var store *postgres.Store
	if cfg.PGDSN != "" {
		var err error
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, nil, err
		}
		sinks = append(sinks, store)
	}

	if len(sinks) == 0 {
		return nil, nil, fmt.Errorf("no output configured: set --out or --pg-dsn")
	}
	return sinks, store, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oikos-cash/oikos-data-bsc/oikos"
)

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	entity := args[0]
	params, err := cfg.Query.Params(entity)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, store, err := openSinks(ctx, cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	client := oikos.NewClient(cfg.Client(), logger)

	logger.Info("fetch start",
		zap.String("entity", entity),
		zap.Any("params", params),
		zap.Int("max", cfg.Query.Max),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	records, err := client.Fetch(ctx, entity, params, cfg.Query.Max)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", entity, err)
	}
	if err := sink.PutRecords(ctx, records); err != nil {
		return fmt.Errorf("write records: %w", err)
	}

	logger.Info("fetch done", zap.String("entity", entity), zap.Int("records", len(records)))
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oikos-cash/oikos-data-bsc/internal/chain"
	"github.com/oikos-cash/oikos-data-bsc/oikos"
)

type subgraphStatus struct {
	Subgraph     string `json:"subgraph"`
	IndexedBlock int64  `json:"indexed_block,omitempty"`
	ChainHead    uint64 `json:"chain_head,omitempty"`
	Lag          *int64 `json:"lag,omitempty"`
	Error        string `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var head *chain.Head
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()

		h, err := chainClient.Head(ctx)
		if err != nil {
			return fmt.Errorf("fetch chain head: %w", err)
		}
		head = &h
		logger.Info("chain head",
			zap.String("chain_id", h.ChainID.String()),
			zap.Uint64("block", h.Number),
			zap.Time("time", h.Time),
		)
	}

	client := oikos.NewClient(cfg.Client(), logger)
	enc := json.NewEncoder(cmd.OutOrStdout())

	failed := 0
	for _, key := range oikos.EndpointKeys() {
		status := subgraphStatus{Subgraph: key}
		block, err := client.IndexedBlock(ctx, key)
		if err != nil {
			failed++
			status.Error = err.Error()
			logger.Warn("subgraph status failed", zap.String("subgraph", key), zap.Error(err))
		} else {
			status.IndexedBlock = block
			if head != nil {
				status.ChainHead = head.Number
				lag := int64(head.Number) - block
				status.Lag = &lag
			}
		}
		if err := enc.Encode(status); err != nil {
			return fmt.Errorf("write status: %w", err)
		}
	}

	if failed == len(oikos.EndpointKeys()) {
		return fmt.Errorf("no subgraph reachable")
	}
	return nil
}

package oikos

import (
	"context"

	"github.com/oikos-cash/oikos-data-bsc/internal/query"
	"github.com/oikos-cash/oikos-data-bsc/internal/schema"
)

// OksService queries the oks subgraph.
type OksService service

// ListOptions cap a list query. Max defaults to 100.
type ListOptions struct {
	Max int
}

// Holders returns OKS holders by collateral, largest first.
func (s *OksService) Holders(ctx context.Context, opts ListOptions) ([]Holder, error) {
	return fetchList[Holder](ctx, s.client, "oks.holders", schema.Holders, nil, opts.Max)
}

// Rewards returns reward escrow balances, largest first.
func (s *OksService) Rewards(ctx context.Context, opts ListOptions) ([]RewardEscrowHolder, error) {
	return fetchList[RewardEscrowHolder](ctx, s.client, "oks.rewards", schema.RewardEscrowHolders, nil, opts.Max)
}

// Total returns the issuer and holder counts.
func (s *OksService) Total(ctx context.Context) (*OksTotals, error) {
	return fetchOne[OksTotals](ctx, s.client, "oks.total", schema.OksTotals)
}

// OksTransfersOptions filter oks transfers. Max defaults to 100.
type OksTransfersOptions struct {
	From     string
	To       string
	MinBlock int64
	MaxBlock int64
	Max      int
}

// Transfers returns oks transfers, newest first.
func (s *OksService) Transfers(ctx context.Context, opts OksTransfersOptions) ([]OksTransfer, error) {
	params := query.Params{
		"from":     opts.From,
		"to":       opts.To,
		"minBlock": opts.MinBlock,
		"maxBlock": opts.MaxBlock,
	}
	return fetchList[OksTransfer](ctx, s.client, "oks.transfers", schema.OksTransfers, params, opts.Max)
}

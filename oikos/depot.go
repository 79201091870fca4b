package oikos

import (
	"context"

	"github.com/oikos-cash/oikos-data-bsc/internal/query"
	"github.com/oikos-cash/oikos-data-bsc/internal/schema"
)

// DepotService queries the synth depot subgraph.
type DepotService service

// UserActionsOptions filter depot user actions. Network defaults to mainnet
// and Max to 100.
type UserActionsOptions struct {
	Network string
	User    string
	Max     int
}

// UserActions returns depot actions, newest first.
func (s *DepotService) UserActions(ctx context.Context, opts UserActionsOptions) ([]UserAction, error) {
	params := query.Params{
		"network": opts.Network,
		"user":    opts.User,
	}
	return fetchList[UserAction](ctx, s.client, "depot.userActions", schema.UserActions, params, opts.Max)
}

// ClearedDepositsOptions filter cleared deposits. Network defaults to
// mainnet and Max to 100.
type ClearedDepositsOptions struct {
	Network     string
	FromAddress string
	ToAddress   string
	Max         int
}

// ClearedDeposits returns deposits cleared by exchanges, newest first.
func (s *DepotService) ClearedDeposits(ctx context.Context, opts ClearedDepositsOptions) ([]ClearedDeposit, error) {
	params := query.Params{
		"network":     opts.Network,
		"fromAddress": opts.FromAddress,
		"toAddress":   opts.ToAddress,
	}
	return fetchList[ClearedDeposit](ctx, s.client, "depot.clearedDeposits", schema.ClearedDeposits, params, opts.Max)
}

package oikos

import (
	"context"

	"github.com/oikos-cash/oikos-data-bsc/internal/query"
	"github.com/oikos-cash/oikos-data-bsc/internal/schema"
)

// ExchangesService queries the exchanges subgraph.
type ExchangesService service

// Range bounds a query by timestamp (unix seconds) and block, both
// inclusive. Zero leaves a bound open.
type Range struct {
	MinTimestamp int64
	MaxTimestamp int64
	MinBlock     int64
	MaxBlock     int64
}

func (r Range) params(p query.Params) query.Params {
	p["minTimestamp"] = r.MinTimestamp
	p["maxTimestamp"] = r.MaxTimestamp
	p["minBlock"] = r.MinBlock
	p["maxBlock"] = r.MaxBlock
	return p
}

// Total returns the all-time exchange totals.
func (s *ExchangesService) Total(ctx context.Context) (*ExchangeTotals, error) {
	return fetchOne[ExchangeTotals](ctx, s.client, "exchanges.total", schema.ExchangeTotals)
}

// SinceOptions filter trades. Network defaults to mainnet; Max defaults to
// every matching trade.
type SinceOptions struct {
	Range
	Network     string
	FromAddress string
	Max         int
}

// Since returns trades in the range, newest first.
func (s *ExchangesService) Since(ctx context.Context, opts SinceOptions) ([]SynthExchange, error) {
	params := opts.Range.params(query.Params{
		"network":     opts.Network,
		"fromAddress": opts.FromAddress,
	})
	return fetchList[SynthExchange](ctx, s.client, "exchanges.since", schema.SynthExchanges, params, opts.Max)
}

// RebateOptions filter fee rebates and reclaims. Max defaults to every
// matching settlement.
type RebateOptions struct {
	Range
	Account string
	Max     int
}

// Rebates returns fee rebates paid to accounts, newest first.
func (s *ExchangesService) Rebates(ctx context.Context, opts RebateOptions) ([]RebateOrReclaim, error) {
	return fetchList[RebateOrReclaim](ctx, s.client, "exchanges.rebates", schema.ExchangeRebates, opts.params(), opts.Max)
}

// Reclaims returns fees reclaimed from accounts, newest first.
func (s *ExchangesService) Reclaims(ctx context.Context, opts RebateOptions) ([]RebateOrReclaim, error) {
	return fetchList[RebateOrReclaim](ctx, s.client, "exchanges.reclaims", schema.ExchangeReclaims, opts.params(), opts.Max)
}

func (o RebateOptions) params() query.Params {
	return o.Range.params(query.Params{"account": o.Account})
}

// Observe streams the latest trade as it is indexed.
func (s *ExchangesService) Observe() *Observable[SynthExchange] {
	return newObservable(s.client, schema.SynthExchangeStream, nil, decodeInto[SynthExchange])
}

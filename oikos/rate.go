package oikos

import (
	"context"

	"github.com/oikos-cash/oikos-data-bsc/internal/query"
	"github.com/oikos-cash/oikos-data-bsc/internal/schema"
)

// RateService queries oracle rate updates.
type RateService service

// UpdatesOptions filter rate updates. Without a Synth, oks, BNB and ODR
// prices are excluded. Max defaults to 100.
type UpdatesOptions struct {
	Range
	Synth string
	Max   int
}

// Updates returns rate updates, newest first.
func (s *RateService) Updates(ctx context.Context, opts UpdatesOptions) ([]RateUpdate, error) {
	params := opts.Range.params(query.Params{"synth": opts.Synth})
	return fetchList[RateUpdate](ctx, s.client, "rate.updates", schema.RateUpdates, params, opts.Max)
}

// ObserveOptions configure a rate stream. MinTimestamp is an exclusive
// bound in unix seconds and defaults to now.
type ObserveOptions struct {
	MinTimestamp int64
}

// Observe streams rate updates newer than MinTimestamp. Updates sharing a
// timestamp are all delivered.
func (s *RateService) Observe(opts ObserveOptions) *Observable[RateUpdate] {
	after := opts.MinTimestamp
	if after == 0 {
		after = s.client.now().Unix()
	}
	return newObservable(s.client, schema.RateUpdateStream, query.Params{"after": after}, decodeInto[RateUpdate])
}

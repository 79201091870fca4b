package oikos

import (
	"context"

	"github.com/oikos-cash/oikos-data-bsc/internal/query"
	"github.com/oikos-cash/oikos-data-bsc/internal/schema"
)

// SynthsService queries synth activity on the oks subgraph.
type SynthsService service

// IssuersOptions cap the issuer list. Max defaults to 10.
type IssuersOptions struct {
	Max int
}

// Issuers returns the addresses of accounts that issued synths.
func (s *SynthsService) Issuers(ctx context.Context, opts IssuersOptions) ([]string, error) {
	rows, err := list[issuer](ctx, s.client, schema.Issuers, nil, opts.Max)
	if err != nil {
		return nil, s.client.swallow("synths.issuers", err)
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

// SynthTransfersOptions filter synth transfers. Issues, burns and oks
// transfers are always excluded. Max defaults to 100.
type SynthTransfersOptions struct {
	Synth    string
	From     string
	To       string
	MinBlock int64
	MaxBlock int64
	Max      int
}

// Transfers returns synth transfers, newest first.
func (s *SynthsService) Transfers(ctx context.Context, opts SynthTransfersOptions) ([]SynthTransfer, error) {
	params := query.Params{
		"synth":    opts.Synth,
		"from":     opts.From,
		"to":       opts.To,
		"minBlock": opts.MinBlock,
		"maxBlock": opts.MaxBlock,
	}
	return fetchList[SynthTransfer](ctx, s.client, "synths.transfers", schema.SynthTransfers, params, opts.Max)
}

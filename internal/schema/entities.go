package schema

import "github.com/ethereum/go-ethereum/common"

// Endpoint keys.
const (
	EndpointOKS       = "oks"
	EndpointDepot     = "depot"
	EndpointExchanges = "exchanges"
	EndpointRates     = "rates"
)

const (
	// Unlimited requests every record the index holds.
	Unlimited = -1

	orderDesc = "desc"
)

// ZeroAddress is used to ignore issue and burn transfers.
var ZeroAddress = common.Address{}.Hex()

// NonSynthRates are excluded from rate updates unless a synth is requested.
var NonSynthRates = []string{"oks", "BNB", "ODR"}

var (
	blockRange = []Filter{
		{Param: "minBlock", Key: "block_gte", Kind: FilterNumber},
		{Param: "maxBlock", Key: "block_lte", Kind: FilterNumber},
	}
	timestampRange = []Filter{
		{Param: "minTimestamp", Key: "timestamp_gte", Kind: FilterNumber},
		{Param: "maxTimestamp", Key: "timestamp_lte", Kind: FilterNumber},
	}
	network = Filter{Param: "network", Key: "network", Kind: FilterString, Default: "mainnet"}
)

func filters(groups ...[]Filter) []Filter {
	var out []Filter
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

var UserActions = Entity{
	Key:            "userActions",
	Name:           "userActions",
	Endpoint:       EndpointDepot,
	OrderBy:        "timestamp",
	OrderDirection: orderDesc,
	Filters: []Filter{
		network,
		{Param: "user", Key: "user", Kind: FilterString},
	},
	Fields: []Field{
		{Name: "id", Out: "hash", Kind: Hash},
		{Name: "user"},
		{Name: "amount", Kind: Wei},
		{Name: "minimum", Kind: Number},
		{Name: "depositIndex", Kind: OptionalInt},
		{Name: "type"},
		{Name: "block", Kind: Int},
		{Name: "timestamp", Kind: Timestamp},
	},
	DefaultMax: 100,
}

var ClearedDeposits = Entity{
	Key:            "clearedDeposits",
	Name:           "clearedDeposits",
	Endpoint:       EndpointDepot,
	OrderBy:        "timestamp",
	OrderDirection: orderDesc,
	Filters: []Filter{
		network,
		{Param: "fromAddress", Key: "fromAddress", Kind: FilterString},
		{Param: "toAddress", Key: "toAddress", Kind: FilterString},
	},
	Fields: []Field{
		{Name: "id", Out: "hash", Kind: Hash},
		{Name: "fromAddress"},
		{Name: "toAddress"},
		{Name: "fromETHAmount", Kind: Wei},
		{Name: "toAmount", Kind: Wei},
		{Name: "depositIndex", Kind: OptionalInt},
		{Name: "block", Kind: Int},
		{Name: "timestamp", Kind: Timestamp},
	},
	DefaultMax: 100,
}

var ExchangeTotals = Entity{
	Key:      "exchangeTotals",
	Name:     "totals",
	Endpoint: EndpointExchanges,
	Fields: []Field{
		{Name: "trades", Kind: Int},
		{Name: "exchangers", Kind: Int},
		{Name: "exchangeUSDTally", Kind: Wei},
		{Name: "totalFeesGeneratedInUSD", Kind: Wei},
	},
	DefaultMax: 1,
	Aggregate:  true,
}

// SynthExchanges keeps the trader address under "fromAddress".
var SynthExchanges = Entity{
	Key:            "synthExchanges",
	Name:           "synthExchanges",
	Endpoint:       EndpointExchanges,
	OrderBy:        "timestamp",
	OrderDirection: orderDesc,
	Filters: filters(
		[]Filter{network},
		timestampRange,
		blockRange,
		[]Filter{{Param: "fromAddress", Key: "from", Kind: FilterString}},
	),
	Fields: []Field{
		{Name: "id", Out: "hash", Kind: Hash},
		{Name: "from", Out: "fromAddress"},
		{Name: "gasPrice", Kind: Gwei},
		{Name: "fromAmount", Kind: Wei},
		{Name: "fromAmountInUSD", Kind: Wei},
		{Name: "fromCurrencyKey", Kind: ShortCode},
		{Name: "toCurrencyKey", Kind: ShortCode},
		{Name: "toAddress"},
		{Name: "toAmount", Kind: Wei},
		{Name: "toAmountInUSD", Kind: Wei},
		{Name: "feesInUSD", Kind: Wei},
		{Name: "block", Kind: Int},
		{Name: "timestamp", Kind: Timestamp},
	},
	DefaultMax: Unlimited,
}

var rebateOrReclaim = Entity{
	Endpoint:       EndpointExchanges,
	OrderBy:        "timestamp",
	OrderDirection: orderDesc,
	Filters: filters(
		timestampRange,
		blockRange,
		[]Filter{{Param: "account", Key: "account", Kind: FilterString}},
	),
	Fields: []Field{
		{Name: "id", Out: "hash", Kind: Hash},
		{Name: "amount", Kind: Wei},
		{Name: "amountInUSD", Kind: Wei},
		{Name: "currencyKey", Kind: ShortCode},
		{Name: "account"},
		{Name: "timestamp", Kind: Timestamp},
		{Name: "block", Kind: Int},
		{Name: "gasPrice", Kind: Gwei},
	},
	DefaultMax: Unlimited,
}

var ExchangeRebates = named(rebateOrReclaim, "exchangeRebates")

var ExchangeReclaims = named(rebateOrReclaim, "exchangeReclaims")

func named(e Entity, name string) Entity {
	e.Key = name
	e.Name = name
	return e
}

var Issuers = Entity{
	Key:        "issuers",
	Name:       "issuers",
	Endpoint:   EndpointOKS,
	Fields:     []Field{{Name: "id"}},
	DefaultMax: 10,
}

// SynthTransfers never include oks transfers, issues or burns.
var SynthTransfers = Entity{
	Key:            "synthTransfers",
	Name:           "transfers",
	Endpoint:       EndpointOKS,
	OrderBy:        "timestamp",
	OrderDirection: orderDesc,
	Filters: filters(
		[]Filter{
			{Param: "synth", Key: "source", Kind: FilterString},
			{Param: "from", Key: "from", Kind: FilterString},
			{Param: "to", Key: "to", Kind: FilterString},
		},
		blockRange,
	),
	Constraints: []Constraint{
		{Key: "source_not", Value: "oks"},
		{Key: "from_not", Value: ZeroAddress},
		{Key: "to_not", Value: ZeroAddress},
	},
	Fields: []Field{
		{Name: "id", Out: "hash", Kind: Hash},
		{Name: "source"},
		{Name: "to"},
		{Name: "from"},
		{Name: "value", Kind: Wei},
		{Name: "block", Kind: Int},
		{Name: "timestamp", Kind: Timestamp},
	},
	DefaultMax: 100,
}

// RateUpdates skip non-synth prices when no synth is requested.
var RateUpdates = Entity{
	Key:            "rateUpdates",
	Name:           "rateUpdates",
	Endpoint:       EndpointRates,
	OrderBy:        "timestamp",
	OrderDirection: orderDesc,
	Filters: filters(
		[]Filter{{Param: "synth", Key: "synth", Kind: FilterString}},
		blockRange,
		timestampRange,
	),
	Constraints: []Constraint{
		{Key: "synth_not_in", Value: NonSynthRates, UnlessSet: "synth"},
	},
	Fields: []Field{
		{Name: "id", Out: "hash", Kind: Hash},
		{Name: "synth"},
		{Name: "rate", Kind: Wei},
		{Name: "block", Kind: Int},
		{Name: "timestamp", Kind: Timestamp},
	},
	DefaultMax: 100,
}

// SynthExchangeStream pushes the latest trade.
var SynthExchangeStream = Entity{
	Key:            "synthExchangeStream",
	Name:           SynthExchanges.Name,
	Endpoint:       EndpointExchanges,
	OrderBy:        "timestamp",
	OrderDirection: orderDesc,
	Fields:         SynthExchanges.Fields,
	DefaultMax:     1,
}

// RateUpdateStream has no page cap: the oracle pushes several rates with the
// same timestamp.
var RateUpdateStream = Entity{
	Key:            "rateUpdateStream",
	Name:           RateUpdates.Name,
	Endpoint:       EndpointRates,
	OrderBy:        "timestamp",
	OrderDirection: orderDesc,
	Filters:        []Filter{{Param: "after", Key: "timestamp_gt", Kind: FilterNumber}},
	Fields:         RateUpdates.Fields,
	DefaultMax:     Unlimited,
}

var Holders = Entity{
	Key:            "holders",
	Name:           "oksholders",
	Endpoint:       EndpointOKS,
	OrderBy:        "collateral",
	OrderDirection: orderDesc,
	Fields: []Field{
		{Name: "id", Out: "address"},
		{Name: "block", Kind: Int},
		{Name: "timestamp", Kind: Timestamp},
		{Name: "collateral", Kind: Wei},
		{Name: "balanceOf", Kind: Wei},
		{Name: "transferable", Kind: Wei},
		{Name: "initialDebtOwnership", Kind: Wei},
		{Name: "debtEntryAtIndex", Kind: Wei},
	},
	DefaultMax: 100,
}

var RewardEscrowHolders = Entity{
	Key:            "rewardEscrowHolders",
	Name:           "rewardEscrowHolders",
	Endpoint:       EndpointOKS,
	OrderBy:        "balanceOf",
	OrderDirection: orderDesc,
	Fields: []Field{
		{Name: "id", Out: "address"},
		{Name: "balanceOf", Out: "balance", Kind: Wei},
	},
	DefaultMax: 100,
}

var OksTotals = Entity{
	Key:         "oksTotals",
	Name:        "oikoses",
	Endpoint:    EndpointOKS,
	Constraints: []Constraint{{Key: "id", Value: 1}},
	Fields: []Field{
		{Name: "issuers", Kind: Int},
		{Name: "oksHolders", Kind: Int},
	},
	DefaultMax: 1,
	Aggregate:  true,
}

var OksTransfers = Entity{
	Key:            "oksTransfers",
	Name:           "transfers",
	Endpoint:       EndpointOKS,
	OrderBy:        "timestamp",
	OrderDirection: orderDesc,
	Filters: filters(
		[]Filter{
			{Param: "from", Key: "from", Kind: FilterString},
			{Param: "to", Key: "to", Kind: FilterString},
		},
		blockRange,
	),
	Constraints: []Constraint{{Key: "source", Value: "oks"}},
	Fields: []Field{
		{Name: "id", Out: "hash", Kind: Hash},
		{Name: "to"},
		{Name: "from"},
		{Name: "value", Kind: Wei},
		{Name: "block", Kind: Int},
		{Name: "timestamp", Kind: Timestamp},
	},
	DefaultMax: 100,
}

var all = []Entity{
	UserActions,
	ClearedDeposits,
	ExchangeTotals,
	SynthExchanges,
	ExchangeRebates,
	ExchangeReclaims,
	Issuers,
	SynthTransfers,
	RateUpdates,
	Holders,
	RewardEscrowHolders,
	OksTotals,
	OksTransfers,
}

var registry = func() map[string]Entity {
	m := make(map[string]Entity, len(all))
	for _, e := range all {
		m[e.Key] = e
	}
	return m
}()

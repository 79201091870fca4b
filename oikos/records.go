package oikos

import "time"

// Amounts are expressed in token units. A nil amount means the index
// returned null for it.

// UserAction is a deposit, withdrawal or similar depot action.
type UserAction struct {
	Hash         string    `json:"hash"`
	User         string    `json:"user"`
	Amount       *float64  `json:"amount"`
	Type         string    `json:"type"`
	Minimum      *float64  `json:"minimum"`
	DepositIndex *int64    `json:"depositIndex"`
	Block        int64     `json:"block"`
	Timestamp    int64     `json:"timestamp"`
	Date         time.Time `json:"date"`
}

// ClearedDeposit is a depot deposit that has been exchanged.
type ClearedDeposit struct {
	Hash          string    `json:"hash"`
	FromAddress   string    `json:"fromAddress"`
	ToAddress     string    `json:"toAddress"`
	FromETHAmount *float64  `json:"fromETHAmount"`
	ToAmount      *float64  `json:"toAmount"`
	DepositIndex  *int64    `json:"depositIndex"`
	Block         int64     `json:"block"`
	Timestamp     int64     `json:"timestamp"`
	Date          time.Time `json:"date"`
}

// ExchangeTotals are the all-time exchange aggregates.
type ExchangeTotals struct {
	Trades                  int64    `json:"trades"`
	Exchangers              int64    `json:"exchangers"`
	ExchangeUSDTally        *float64 `json:"exchangeUSDTally"`
	TotalFeesGeneratedInUSD *float64 `json:"totalFeesGeneratedInUSD"`
}

// SynthExchange is one executed trade. Currency keys are decoded tickers;
// the encoded form is kept in the *Bytes fields.
type SynthExchange struct {
	Hash                 string    `json:"hash"`
	FromAddress          string    `json:"fromAddress"`
	FromAmount           *float64  `json:"fromAmount"`
	FromAmountInUSD      *float64  `json:"fromAmountInUSD"`
	FromCurrencyKey      string    `json:"fromCurrencyKey"`
	FromCurrencyKeyBytes string    `json:"fromCurrencyKeyBytes"`
	ToAddress            string    `json:"toAddress"`
	ToAmount             *float64  `json:"toAmount"`
	ToAmountInUSD        *float64  `json:"toAmountInUSD"`
	ToCurrencyKey        string    `json:"toCurrencyKey"`
	ToCurrencyKeyBytes   string    `json:"toCurrencyKeyBytes"`
	FeesInUSD            *float64  `json:"feesInUSD"`
	GasPrice             *float64  `json:"gasPrice"`
	Block                int64     `json:"block"`
	Timestamp            int64     `json:"timestamp"`
	Date                 time.Time `json:"date"`
}

// RebateOrReclaim is a fee reclamation settlement in either direction.
type RebateOrReclaim struct {
	Hash             string    `json:"hash"`
	Account          string    `json:"account"`
	Amount           *float64  `json:"amount"`
	AmountInUSD      *float64  `json:"amountInUSD"`
	CurrencyKey      string    `json:"currencyKey"`
	CurrencyKeyBytes string    `json:"currencyKeyBytes"`
	GasPrice         *float64  `json:"gasPrice"`
	Block            int64     `json:"block"`
	Timestamp        int64     `json:"timestamp"`
	Date             time.Time `json:"date"`
}

type SynthTransfer struct {
	Source    string    `json:"source"`
	Hash      string    `json:"hash"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Value     *float64  `json:"value"`
	Block     int64     `json:"block"`
	Timestamp int64     `json:"timestamp"`
	Date      time.Time `json:"date"`
}

type RateUpdate struct {
	Hash      string    `json:"hash"`
	Synth     string    `json:"synth"`
	Rate      *float64  `json:"rate"`
	Block     int64     `json:"block"`
	Timestamp int64     `json:"timestamp"`
	Date      time.Time `json:"date"`
}

// Holder is an OKS holder as of the block it was last updated in.
type Holder struct {
	Address              string    `json:"address"`
	Block                int64     `json:"block"`
	Timestamp            int64     `json:"timestamp"`
	Date                 time.Time `json:"date"`
	Collateral           *float64  `json:"collateral"`
	BalanceOf            *float64  `json:"balanceOf"`
	Transferable         *float64  `json:"transferable"`
	InitialDebtOwnership *float64  `json:"initialDebtOwnership"`
	DebtEntryAtIndex     *float64  `json:"debtEntryAtIndex"`
}

type RewardEscrowHolder struct {
	Address string   `json:"address"`
	Balance *float64 `json:"balance"`
}

type OksTotals struct {
	Issuers    int64 `json:"issuers"`
	OksHolders int64 `json:"oksHolders"`
}

type OksTransfer struct {
	Hash      string    `json:"hash"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Value     *float64  `json:"value"`
	Block     int64     `json:"block"`
	Timestamp int64     `json:"timestamp"`
	Date      time.Time `json:"date"`
}

type issuer struct {
	ID string `json:"id"`
}

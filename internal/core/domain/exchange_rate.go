package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyPair is the ordered (from, to) key of a rate.
type CurrencyPair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// String renders the pair as FROM/TO.
func (p CurrencyPair) String() string {
	return p.From + "/" + p.To
}

// ExchangeRate is a resolved rate between two currencies.
type ExchangeRate struct {
	FromCurrencyCode string          `json:"fromCurrencyCode"`
	ToCurrencyCode   string          `json:"toCurrencyCode"`
	Rate             decimal.Decimal `json:"rate"` // Precise decimal type
}

// Snapshot is one parsed rates payload: every rate is quoted against the
// source currency the payload was fetched for.
type Snapshot struct {
	Timestamp time.Time
	Rates     map[string]decimal.Decimal
}

// FailurePolicy controls what happens when the rates API cannot be reached.
type FailurePolicy string

const (
	// FailurePolicyWarn logs the failure and keeps the current rates.
	FailurePolicyWarn FailurePolicy = "warn"
	// FailurePolicyError returns the failure to the caller.
	FailurePolicyError FailurePolicy = "error"
)

// Valid reports whether p is a known policy.
func (p FailurePolicy) Valid() bool {
	return p == FailurePolicyWarn || p == FailurePolicyError
}

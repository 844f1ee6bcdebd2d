package repositories

import (
	"github.com/SscSPs/money_oxr/internal/core/domain"
	"github.com/shopspring/decimal"
)

// RateTableReader defines read operations on the in-memory rate table.
type RateTableReader interface {
	// Get returns the rate stored for the exact pair, without derivation.
	Get(from, to string) (decimal.Decimal, bool)
	// Any reports whether at least one rate is stored.
	Any() bool
	// Rates returns a copy of every stored rate.
	Rates() map[domain.CurrencyPair]decimal.Decimal
}

// RateTableWriter defines write operations on the in-memory rate table.
type RateTableWriter interface {
	// Set inserts or overwrites the rate for a pair.
	Set(from, to string, rate decimal.Decimal)
	// Clear removes every rate.
	Clear()
	// Replace clears the table and stores base->code for every entry of rates,
	// as one step with respect to concurrent readers.
	Replace(base string, rates map[string]decimal.Decimal)
}

// RateTable combines all rate table operations.
type RateTable interface {
	RateTableReader
	RateTableWriter
}

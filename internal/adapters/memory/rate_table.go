// Package memory holds in-process implementations of the repository ports.
package memory

import (
	"sync"

	"github.com/SscSPs/money_oxr/internal/core/domain"
	portsrepo "github.com/SscSPs/money_oxr/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
)

// RateTable stores rates keyed by ordered currency pair.
type RateTable struct {
	mu    sync.RWMutex
	rates map[domain.CurrencyPair]decimal.Decimal
}

// NewRateTable creates an empty RateTable.
func NewRateTable() *RateTable {
	return &RateTable{
		rates: make(map[domain.CurrencyPair]decimal.Decimal),
	}
}

// Ensure RateTable implements the RateTable port
var _ portsrepo.RateTable = (*RateTable)(nil)

// Get returns the rate stored for the exact pair.
func (t *RateTable) Get(from, to string) (decimal.Decimal, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rate, ok := t.rates[domain.CurrencyPair{From: from, To: to}]
	return rate, ok
}

// Set inserts or overwrites the rate for a pair.
func (t *RateTable) Set(from, to string, rate decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rates[domain.CurrencyPair{From: from, To: to}] = rate
}

// Clear removes all entries.
func (t *RateTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rates = make(map[domain.CurrencyPair]decimal.Decimal)
}

// Any reports whether at least one rate is stored.
func (t *RateTable) Any() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.rates) > 0
}

// Replace swaps in base->code rates for every entry of rates under a single lock.
func (t *RateTable) Replace(base string, rates map[string]decimal.Decimal) {
	next := make(map[domain.CurrencyPair]decimal.Decimal, len(rates))
	for code, rate := range rates {
		next[domain.CurrencyPair{From: base, To: code}] = rate
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.rates = next
}

// Rates returns a copy of every stored rate.
func (t *RateTable) Rates() map[domain.CurrencyPair]decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[domain.CurrencyPair]decimal.Decimal, len(t.rates))
	for pair, rate := range t.rates {
		out[pair] = rate
	}
	return out
}

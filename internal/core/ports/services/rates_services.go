package services

import (
	"context"

	"github.com/SscSPs/money_oxr/internal/core/domain"
	"github.com/shopspring/decimal"
)

// ExchangeRateReaderSvc defines read operations for exchange rate data
type ExchangeRateReaderSvc interface {
	// GetRate returns the rate for converting from into to, loading or
	// deriving it when needed.
	GetRate(ctx context.Context, fromCode, toCode string) (decimal.Decimal, error)

	// ListRates returns every rate currently held, direct and derived.
	ListRates(ctx context.Context) (map[domain.CurrencyPair]decimal.Decimal, error)

	// Status reports the load state of the store.
	Status() domain.StoreStatus
}

// ExchangeRateLoaderSvc defines load operations for exchange rate data
type ExchangeRateLoaderSvc interface {
	// EnsureLoaded loads from the cache and/or API when data is missing or stale.
	EnsureLoaded(ctx context.Context) error

	// LoadFromAPI forces a refresh from the remote API.
	LoadFromAPI(ctx context.Context) error
}

// ExchangeRateSvcFacade combines all exchange rate-related service interfaces
type ExchangeRateSvcFacade interface {
	ExchangeRateReaderSvc
	ExchangeRateLoaderSvc
}

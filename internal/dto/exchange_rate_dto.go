package dto

import (
	"sort"
	"time"

	"github.com/SscSPs/money_oxr/internal/core/domain"
	"github.com/shopspring/decimal"
)

// ExchangeRateResponse defines the structure for API responses containing a single rate.
type ExchangeRateResponse struct {
	FromCurrencyCode string          `json:"fromCurrencyCode"`
	ToCurrencyCode   string          `json:"toCurrencyCode"`
	Rate             decimal.Decimal `json:"rate"`
	SourceCurrency   string          `json:"sourceCurrency"`
	LastUpdatedAt    *time.Time      `json:"lastUpdatedAt,omitempty"`
}

// StoreStatusResponse describes the load state of the rates store.
type StoreStatusResponse struct {
	SourceCurrency string     `json:"sourceCurrency"`
	Loaded         bool       `json:"loaded"`
	Stale          bool       `json:"stale"`
	LastUpdatedAt  *time.Time `json:"lastUpdatedAt,omitempty"`
}

// ListExchangeRatesResponse is the status plus every rate currently held.
type ListExchangeRatesResponse struct {
	StoreStatusResponse
	Rates []ExchangeRateResponse `json:"rates"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// ToStoreStatusResponse converts a domain.StoreStatus to its DTO.
func ToStoreStatusResponse(status domain.StoreStatus) StoreStatusResponse {
	return StoreStatusResponse{
		SourceCurrency: status.SourceCurrency,
		Loaded:         status.Loaded,
		Stale:          status.Stale,
		LastUpdatedAt:  timePtr(status.LastUpdatedAt),
	}
}

// ToExchangeRateResponse converts a domain.ExchangeRate to ExchangeRateResponse DTO
func ToExchangeRateResponse(rate domain.ExchangeRate, status domain.StoreStatus) ExchangeRateResponse {
	return ExchangeRateResponse{
		FromCurrencyCode: rate.FromCurrencyCode,
		ToCurrencyCode:   rate.ToCurrencyCode,
		Rate:             rate.Rate,
		SourceCurrency:   status.SourceCurrency,
		LastUpdatedAt:    timePtr(status.LastUpdatedAt),
	}
}

// ToListExchangeRatesResponse converts a rates map to a response sorted by pair.
func ToListExchangeRatesResponse(rates map[domain.CurrencyPair]decimal.Decimal, status domain.StoreStatus) ListExchangeRatesResponse {
	pairs := make([]domain.CurrencyPair, 0, len(rates))
	for pair := range rates {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].From != pairs[j].From {
			return pairs[i].From < pairs[j].From
		}
		return pairs[i].To < pairs[j].To
	})

	responses := make([]ExchangeRateResponse, len(pairs))
	for i, pair := range pairs {
		responses[i] = ToExchangeRateResponse(domain.ExchangeRate{
			FromCurrencyCode: pair.From,
			ToCurrencyCode:   pair.To,
			Rate:             rates[pair],
		}, status)
	}
	return ListExchangeRatesResponse{
		StoreStatusResponse: ToStoreStatusResponse(status),
		Rates:               responses,
	}
}

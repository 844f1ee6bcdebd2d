package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/SscSPs/money_oxr/internal/apperrors"
	"github.com/SscSPs/money_oxr/internal/core/domain"
	"github.com/shopspring/decimal"
)

// GetRate returns the rate for converting fromCode into toCode.
//
// Rates quoted directly against the source currency are loaded from the cache
// or API. Other pairs are derived by inversion or by triangulating through the
// source currency, and derived rates are stored for reuse. A code that is
// neither the source currency nor part of the loaded rates yields an
// *apperrors.UnsupportedCurrencyError, checking fromCode first.
func (s *RatesStore) GetRate(ctx context.Context, fromCode, toCode string) (decimal.Decimal, error) {
	from := strings.ToUpper(strings.TrimSpace(fromCode))
	to := strings.ToUpper(strings.TrimSpace(toCode))
	if err := s.validateCode(from); err != nil {
		return decimal.Zero, err
	}
	if err := s.validateCode(to); err != nil {
		return decimal.Zero, err
	}

	if err := s.EnsureLoaded(ctx); err != nil {
		return decimal.Zero, err
	}
	if err := s.checkSupported(from, to); err != nil {
		return decimal.Zero, err
	}

	rate, ok := s.resolve(from, to)
	if !ok {
		return decimal.Zero, apperrors.NewNotFoundError(fmt.Sprintf("no rate available for %s/%s", from, to))
	}
	return rate, nil
}

// ListRates returns every rate currently held, direct and derived.
func (s *RatesStore) ListRates(ctx context.Context) (map[domain.CurrencyPair]decimal.Decimal, error) {
	if err := s.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	return s.table.Rates(), nil
}

// checkSupported only applies once something is loaded: before that no code
// can be told apart from an unavailable one.
func (s *RatesStore) checkSupported(codes ...string) error {
	if !s.table.Any() {
		return nil
	}
	for _, code := range codes {
		if code == s.source {
			continue
		}
		if _, ok := s.table.Get(s.source, code); !ok {
			return apperrors.NewUnsupportedCurrencyError(code)
		}
	}
	return nil
}

func (s *RatesStore) resolve(from, to string) (decimal.Decimal, bool) {
	if from == to {
		return decimal.NewFromInt(1), true
	}
	if rate, ok := s.table.Get(from, to); ok {
		return rate, true
	}
	// Only source->X rates are ever loaded, so a missing one cannot be derived.
	if from == s.source {
		return decimal.Zero, false
	}
	if inverse, ok := s.table.Get(to, from); ok && !inverse.IsZero() {
		rate := decimal.NewFromInt(1).DivRound(inverse, s.divPrecision)
		s.table.Set(from, to, rate)
		return rate, true
	}
	if to == s.source {
		return decimal.Zero, false
	}

	toSource, ok := s.resolve(from, s.source)
	if !ok {
		return decimal.Zero, false
	}
	fromSource, ok := s.resolve(s.source, to)
	if !ok {
		return decimal.Zero, false
	}
	rate := toSource.Mul(fromSource)
	s.table.Set(from, to, rate)
	return rate, true
}

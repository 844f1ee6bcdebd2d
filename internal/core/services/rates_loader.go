package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SscSPs/money_oxr/internal/apperrors"
	"github.com/SscSPs/money_oxr/internal/core/domain"
)

// EnsureLoaded makes sure rates are loaded and fresh. An empty table is
// filled from the cache first; the API is consulted when the table is still
// empty or the data is stale. Concurrent callers share a single load, which
// is not cancelled when the caller that started it goes away.
func (s *RatesStore) EnsureLoaded(ctx context.Context) error {
	if s.table.Any() && (s.appID == "" || !s.Stale()) {
		return nil
	}
	loadCtx := context.WithoutCancel(ctx)
	_, err, _ := s.loadGroup.Do("ensure", func() (interface{}, error) {
		return nil, s.ensureLoaded(loadCtx)
	})
	return err
}

func (s *RatesStore) ensureLoaded(ctx context.Context) error {
	if !s.table.Any() && s.storage != nil {
		if err := s.loadCacheIfPresent(ctx); err != nil {
			if err := s.cacheFailure(ctx, err, "Rates cache unavailable, falling back to the API"); err != nil {
				return err
			}
		}
	}
	if s.appID != "" && (!s.table.Any() || s.Stale()) {
		return s.loadFromAPI(ctx)
	}
	return nil
}

func (s *RatesStore) loadCacheIfPresent(ctx context.Context) error {
	exists, err := s.storage.Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check rates cache: %w", err)
	}
	if !exists {
		return nil
	}
	return s.LoadFromCache(ctx)
}

// cacheFailure applies the failure policy to a cache error: under warn it is
// logged and swallowed.
func (s *RatesStore) cacheFailure(ctx context.Context, err error, msg string) error {
	if s.onAPIFailure == domain.FailurePolicyWarn {
		s.LogWarn(ctx, err, msg, slog.String("source", s.source))
		return nil
	}
	s.LogError(ctx, err, "Rates cache failure", slog.String("source", s.source))
	return err
}

// LoadFromAPI fetches the latest rates and replaces the table with them.
// Transport failures follow the OnAPIFailure policy; malformed responses are
// logged and leave the table untouched.
func (s *RatesStore) LoadFromAPI(ctx context.Context) error {
	if s.appID == "" {
		return fmt.Errorf("%w: no app id configured, remote loading is disabled", apperrors.ErrValidation)
	}
	loadCtx := context.WithoutCancel(ctx)
	_, err, _ := s.loadGroup.Do("api", func() (interface{}, error) {
		return nil, s.loadFromAPI(loadCtx)
	})
	return err
}

func (s *RatesStore) loadFromAPI(ctx context.Context) error {
	// The payload timestamp can lag for days (it does not move over weekends),
	// so freshness is measured from our own fetch time.
	now := s.now()

	text, ok, err := s.fetchJSON(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if strings.TrimSpace(text) == "" || !strings.Contains(text, `"rates"`) {
		s.LogWarn(ctx, apperrors.ErrMalformedResponse, "Ignoring rates response without a rates section",
			slog.String("source", s.source))
		return nil
	}
	snapshot, err := s.parser.Parse(text)
	if err != nil {
		s.LogWarn(ctx, fmt.Errorf("%w: %v", apperrors.ErrMalformedResponse, err), "Ignoring unparsable rates response",
			slog.String("source", s.source))
		return nil
	}

	if s.storage == nil {
		s.applySnapshot(snapshot)
	} else if err := s.writeAndReloadCache(ctx, text); err != nil {
		if err := s.cacheFailure(ctx, err, "Rates cache unavailable, using fetched rates directly"); err != nil {
			return err
		}
		s.applySnapshot(snapshot)
	}

	s.setLastUpdatedAt(now)
	s.LogInfo(ctx, "Exchange rates loaded from API",
		slog.String("source", s.source),
		slog.Int("count", len(snapshot.Rates)))
	return nil
}

func (s *RatesStore) writeAndReloadCache(ctx context.Context, text string) error {
	if err := s.storage.Write(ctx, text); err != nil {
		return fmt.Errorf("failed to write rates cache: %w", err)
	}
	return s.LoadFromCache(ctx)
}

// FetchJSON returns the raw API payload. Under the warn policy a transport
// failure is logged and an empty string is returned with a nil error.
func (s *RatesStore) FetchJSON(ctx context.Context) (string, error) {
	text, _, err := s.fetchJSON(ctx)
	return text, err
}

func (s *RatesStore) fetchJSON(ctx context.Context) (string, bool, error) {
	if s.fetcher == nil {
		return "", false, fmt.Errorf("%w: no fetcher configured", apperrors.ErrValidation)
	}
	text, err := s.fetcher.Fetch(ctx, s.APIURL())
	if err == nil {
		return text, true, nil
	}
	if s.onAPIFailure == domain.FailurePolicyWarn {
		s.LogWarn(ctx, err, "Exchange rates API request failed, keeping current rates",
			slog.String("source", s.source))
		return "", false, nil
	}
	if !errors.Is(err, apperrors.ErrTransport) {
		err = fmt.Errorf("%w: %w", apperrors.ErrTransport, err)
	}
	s.LogError(ctx, err, "Exchange rates API request failed", slog.String("source", s.source))
	return "", false, err
}

// LoadFromCache replaces the table with the cached payload.
func (s *RatesStore) LoadFromCache(ctx context.Context) error {
	if s.storage == nil {
		return fmt.Errorf("%w: no rates cache configured", apperrors.ErrValidation)
	}
	text, err := s.storage.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read rates cache: %w", err)
	}
	if err := s.LoadText(text); err != nil {
		return err
	}
	s.LogDebug(ctx, "Exchange rates loaded from cache", slog.String("source", s.source))
	return nil
}

// LoadText parses a rates payload and replaces the table with it.
// LastUpdatedAt becomes the payload timestamp.
func (s *RatesStore) LoadText(text string) error {
	snapshot, err := s.parser.Parse(text)
	if err != nil {
		return fmt.Errorf("failed to load rates: %w", err)
	}
	s.applySnapshot(snapshot)
	return nil
}

func (s *RatesStore) applySnapshot(snapshot domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table.Replace(s.source, snapshot.Rates)
	s.lastUpdatedAt = snapshot.Timestamp
}

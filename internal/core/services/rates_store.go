package services

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/SscSPs/money_oxr/internal/apperrors"
	"github.com/SscSPs/money_oxr/internal/core/domain"
	portsrepo "github.com/SscSPs/money_oxr/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/money_oxr/internal/core/ports/services"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultSourceCurrency is the currency API rates are quoted against.
	DefaultSourceCurrency = "USD"
	// DefaultAPIBaseURL is the Open Exchange Rates API root.
	DefaultAPIBaseURL = "https://openexchangerates.org/api"
	// DefaultDivisionPrecision is the number of decimal places kept when inverting a rate.
	DefaultDivisionPrecision int32 = 32
)

// Options configures a RatesStore.
type Options struct {
	AppID             string
	SourceCurrency    string
	Storage           portsrepo.SnapshotStorage // nil disables the cache
	MaxAge            *time.Duration            // nil never goes stale
	OnAPIFailure      domain.FailurePolicy
	APIBaseURL        string
	DivisionPrecision int32
	Now               func() time.Time
	Logger            *slog.Logger
}

// RatesStore loads rates from the cache and API, keeps them fresh and
// resolves direct, inverse and triangulated rates.
type RatesStore struct {
	BaseService
	table    portsrepo.RateTable
	fetcher  portsrepo.RatesFetcher
	parser   portsrepo.SnapshotParser
	validate *validator.Validate

	appID         string
	source        string
	storage       portsrepo.SnapshotStorage
	maxAge        *time.Duration
	onAPIFailure  domain.FailurePolicy
	apiBaseURL    string
	divPrecision  int32
	now           func() time.Time
	loadGroup     singleflight.Group
	mu            sync.RWMutex
	lastUpdatedAt time.Time
}

// NewRatesStore creates a RatesStore over the given table, fetcher and parser.
func NewRatesStore(table portsrepo.RateTable, fetcher portsrepo.RatesFetcher, parser portsrepo.SnapshotParser, opts Options) (*RatesStore, error) {
	if table == nil || parser == nil {
		return nil, fmt.Errorf("%w: rate table and parser are required", apperrors.ErrValidation)
	}
	if opts.AppID != "" && fetcher == nil {
		return nil, fmt.Errorf("%w: a fetcher is required when an app id is set", apperrors.ErrValidation)
	}

	s := &RatesStore{
		BaseService:  BaseService{Logger: opts.Logger},
		table:        table,
		fetcher:      fetcher,
		parser:       parser,
		validate:     validator.New(),
		appID:        opts.AppID,
		source:       strings.ToUpper(opts.SourceCurrency),
		storage:      opts.Storage,
		maxAge:       opts.MaxAge,
		onAPIFailure: opts.OnAPIFailure,
		apiBaseURL:   strings.TrimRight(opts.APIBaseURL, "/"),
		divPrecision: opts.DivisionPrecision,
		now:          opts.Now,
	}
	if s.source == "" {
		s.source = DefaultSourceCurrency
	}
	if s.onAPIFailure == "" {
		s.onAPIFailure = domain.FailurePolicyWarn
	}
	if !s.onAPIFailure.Valid() {
		return nil, fmt.Errorf("%w: unknown api failure policy %q", apperrors.ErrValidation, s.onAPIFailure)
	}
	if s.apiBaseURL == "" {
		s.apiBaseURL = DefaultAPIBaseURL
	}
	if s.divPrecision <= 0 {
		s.divPrecision = DefaultDivisionPrecision
	}
	if s.now == nil {
		s.now = time.Now
	}
	if err := s.validateCode(s.source); err != nil {
		return nil, err
	}
	return s, nil
}

// Ensure RatesStore implements the ExchangeRateSvcFacade interface
var _ portssvc.ExchangeRateSvcFacade = (*RatesStore)(nil)

// AppID returns the API credential, empty when remote loading is disabled.
func (s *RatesStore) AppID() string { return s.appID }

// Source returns the source currency.
func (s *RatesStore) Source() string { return s.source }

// Storage returns the snapshot storage, nil when caching is disabled.
func (s *RatesStore) Storage() portsrepo.SnapshotStorage { return s.storage }

// MaxAge returns the configured maximum age, nil when data never goes stale.
func (s *RatesStore) MaxAge() *time.Duration { return s.maxAge }

// OnAPIFailure returns the API failure policy.
func (s *RatesStore) OnAPIFailure() domain.FailurePolicy { return s.onAPIFailure }

// LastUpdatedAt returns the time of the last successful load.
func (s *RatesStore) LastUpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdatedAt
}

func (s *RatesStore) setLastUpdatedAt(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUpdatedAt = t
}

// Loaded reports whether any rate is held.
func (s *RatesStore) Loaded() bool {
	return s.table.Any()
}

// Stale reports whether the held data is older than MaxAge.
func (s *RatesStore) Stale() bool {
	return IsStale(s.LastUpdatedAt(), s.maxAge, s.now())
}

// Status reports the load state of the store.
func (s *RatesStore) Status() domain.StoreStatus {
	return domain.StoreStatus{
		SourceCurrency: s.source,
		Loaded:         s.Loaded(),
		Stale:          s.Stale(),
		LastUpdatedAt:  s.LastUpdatedAt(),
	}
}

// APIURL builds the latest-rates endpoint for the source currency and app id.
func (s *RatesStore) APIURL() string {
	q := url.Values{}
	q.Set("base", s.source)
	q.Set("app_id", s.appID)
	return s.apiBaseURL + "/latest.json?" + q.Encode()
}

func (s *RatesStore) validateCode(code string) error {
	if err := s.validate.Var(code, "required,len=3,alpha,uppercase"); err != nil {
		return fmt.Errorf("%w: invalid currency code %q", apperrors.ErrValidation, code)
	}
	return nil
}

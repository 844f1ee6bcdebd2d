package services_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/SscSPs/money_oxr/internal/adapters/memory"
	"github.com/SscSPs/money_oxr/internal/adapters/oxr"
	"github.com/SscSPs/money_oxr/internal/apperrors"
	"github.com/SscSPs/money_oxr/internal/core/domain"
	portsrepo "github.com/SscSPs/money_oxr/internal/core/ports/repositories"
	"github.com/SscSPs/money_oxr/internal/core/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

const (
	testAppID  = "test-app-id"
	testAPIURL = "https://openexchangerates.org/api/latest.json?app_id=test-app-id&base=USD"
)

// fixtureTime is the timestamp of testdata/latest.json.
var fixtureTime = time.Unix(1521291605, 0)

// --- Mock RatesFetcher ---
type MockRatesFetcher struct {
	mock.Mock
}

func (m *MockRatesFetcher) Fetch(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

var _ portsrepo.RatesFetcher = (*MockRatesFetcher)(nil)

// --- In-memory SnapshotStorage ---
type memorySnapshotStorage struct {
	mu     sync.Mutex
	text   string
	set    bool
	writes int
}

func (s *memorySnapshotStorage) Exists(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set, nil
}

func (s *memorySnapshotStorage) Read(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return "", errors.New("nothing cached")
	}
	return s.text, nil
}

func (s *memorySnapshotStorage) Write(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
	s.set = true
	s.writes++
	return nil
}

var _ portsrepo.SnapshotStorage = (*memorySnapshotStorage)(nil)

// unreachableSnapshotStorage fails every operation that has an error set.
type unreachableSnapshotStorage struct {
	existsErr error
	writeErr  error
	writes    int
}

func (s *unreachableSnapshotStorage) Exists(ctx context.Context) (bool, error) {
	return false, s.existsErr
}

func (s *unreachableSnapshotStorage) Read(ctx context.Context) (string, error) {
	return "", errors.New("nothing cached")
}

func (s *unreachableSnapshotStorage) Write(ctx context.Context, text string) error {
	s.writes++
	return s.writeErr
}

var errCacheDown = errors.New("redis: connection refused")

// --- Controllable clock ---
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- Test Suite ---
type RatesStoreTestSuite struct {
	suite.Suite
	fixture     string
	mockFetcher *MockRatesFetcher
	clock       *fakeClock
	ctx         context.Context
}

func (suite *RatesStoreTestSuite) SetupSuite() {
	data, err := os.ReadFile("testdata/latest.json")
	suite.Require().NoError(err)
	suite.fixture = string(data)
}

func (suite *RatesStoreTestSuite) SetupTest() {
	suite.mockFetcher = new(MockRatesFetcher)
	suite.clock = &fakeClock{now: fixtureTime.Add(time.Hour)}
	suite.ctx = context.Background()
}

// newStore builds a store with the given options, filling in the fetcher,
// app id and clock unless the caller set them.
func (suite *RatesStoreTestSuite) newStore(opts services.Options) *services.RatesStore {
	if opts.Now == nil {
		opts.Now = suite.clock.Now
	}
	store, err := services.NewRatesStore(memory.NewRateTable(), suite.mockFetcher, oxr.NewParser(), opts)
	suite.Require().NoError(err)
	return store
}

func (suite *RatesStoreTestSuite) apiStore(opts services.Options) *services.RatesStore {
	opts.AppID = testAppID
	return suite.newStore(opts)
}

func (suite *RatesStoreTestSuite) expectFetch() *mock.Call {
	return suite.mockFetcher.On("Fetch", mock.Anything, testAPIURL).Return(suite.fixture, nil)
}

func (suite *RatesStoreTestSuite) requireRate(store *services.RatesStore, from, to, want string) {
	rate, err := store.GetRate(suite.ctx, from, to)
	suite.Require().NoError(err)
	suite.True(rate.Equal(decimal.RequireFromString(want)), "%s/%s: got %s want %s", from, to, rate, want)
}

// --- Construction ---

func (suite *RatesStoreTestSuite) TestNewRatesStore_Defaults() {
	store := suite.newStore(services.Options{})

	suite.Equal("USD", store.Source())
	suite.Equal(domain.FailurePolicyWarn, store.OnAPIFailure())
	suite.Nil(store.MaxAge())
	suite.Nil(store.Storage())
	suite.Empty(store.AppID())
	suite.False(store.Loaded())
	suite.True(store.LastUpdatedAt().IsZero())
}

func (suite *RatesStoreTestSuite) TestNewRatesStore_InvalidOptions() {
	table := memory.NewRateTable()

	_, err := services.NewRatesStore(table, nil, oxr.NewParser(), services.Options{AppID: testAppID})
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = services.NewRatesStore(table, suite.mockFetcher, oxr.NewParser(), services.Options{OnAPIFailure: "ignore"})
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = services.NewRatesStore(table, suite.mockFetcher, oxr.NewParser(), services.Options{SourceCurrency: "DOLLAR"})
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = services.NewRatesStore(nil, suite.mockFetcher, oxr.NewParser(), services.Options{})
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *RatesStoreTestSuite) TestAPIURL() {
	store := suite.apiStore(services.Options{SourceCurrency: "usd"})
	suite.Equal(testAPIURL, store.APIURL())

	custom := suite.apiStore(services.Options{SourceCurrency: "EUR", APIBaseURL: "http://localhost:9000/api/"})
	suite.Equal("http://localhost:9000/api/latest.json?app_id=test-app-id&base=EUR", custom.APIURL())
}

// --- Resolution ---

func (suite *RatesStoreTestSuite) TestGetRate_Direct() {
	suite.expectFetch().Once()
	store := suite.apiStore(services.Options{})

	suite.requireRate(store, "USD", "EUR", "0.813255")
	suite.requireRate(store, "USD", "JPY", "105.99")
	suite.mockFetcher.AssertExpectations(suite.T())
}

func (suite *RatesStoreTestSuite) TestGetRate_LowercaseCodes() {
	suite.expectFetch().Once()
	store := suite.apiStore(services.Options{})

	suite.requireRate(store, "usd", "eur", "0.813255")
}

func (suite *RatesStoreTestSuite) TestGetRate_Inverse() {
	suite.expectFetch().Once()
	store := suite.apiStore(services.Options{})

	suite.requireRate(store, "EUR", "USD", "1.22962662387566015579369324504614")

	inverse, err := store.GetRate(suite.ctx, "EUR", "USD")
	suite.Require().NoError(err)
	direct, err := store.GetRate(suite.ctx, "USD", "EUR")
	suite.Require().NoError(err)
	diff := inverse.Mul(direct).Sub(decimal.NewFromInt(1)).Abs()
	suite.True(diff.LessThan(decimal.New(1, -30)), "round trip drift %s", diff)
}

func (suite *RatesStoreTestSuite) TestGetRate_Triangulated() {
	suite.expectFetch().Once()
	store := suite.apiStore(services.Options{})

	suite.requireRate(store, "CAD", "EUR", "0.6207342670686562607335037972751176088")

	// The leg through the source currency is stored as well
	rates, err := store.ListRates(suite.ctx)
	suite.Require().NoError(err)
	suite.Contains(rates, domain.CurrencyPair{From: "CAD", To: "USD"})
	suite.Contains(rates, domain.CurrencyPair{From: "CAD", To: "EUR"})
}

func (suite *RatesStoreTestSuite) TestGetRate_SameCurrency() {
	suite.expectFetch().Once()
	store := suite.apiStore(services.Options{})

	suite.requireRate(store, "EUR", "EUR", "1")
	suite.requireRate(store, "USD", "USD", "1")
}

func (suite *RatesStoreTestSuite) TestGetRate_IdempotentWithoutExtraFetches() {
	suite.expectFetch().Once()
	store := suite.apiStore(services.Options{})

	first, err := store.GetRate(suite.ctx, "GBP", "JPY")
	suite.Require().NoError(err)
	second, err := store.GetRate(suite.ctx, "GBP", "JPY")
	suite.Require().NoError(err)

	suite.True(first.Equal(second))
	suite.Equal(first.String(), second.String())
	suite.mockFetcher.AssertNumberOfCalls(suite.T(), "Fetch", 1)
}

func (suite *RatesStoreTestSuite) TestGetRate_InvalidCode() {
	store := suite.apiStore(services.Options{})

	_, err := store.GetRate(suite.ctx, "EURO", "USD")
	suite.ErrorIs(err, apperrors.ErrValidation)

	_, err = store.GetRate(suite.ctx, "USD", "")
	suite.ErrorIs(err, apperrors.ErrValidation)

	suite.mockFetcher.AssertNotCalled(suite.T(), "Fetch", mock.Anything, mock.Anything)
}

func (suite *RatesStoreTestSuite) TestGetRate_UnsupportedCurrency() {
	suite.expectFetch().Once()
	store := suite.apiStore(services.Options{})

	tests := []struct {
		name     string
		from, to string
		wantCode string
	}{
		{name: "unknown from", from: "XXX", to: "EUR", wantCode: "XXX"},
		{name: "unknown to", from: "EUR", to: "XXX", wantCode: "XXX"},
		{name: "unknown to from source", from: "USD", to: "ZZZ", wantCode: "ZZZ"},
		{name: "both unknown reports from", from: "AAA", to: "BBB", wantCode: "AAA"},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			_, err := store.GetRate(suite.ctx, tt.from, tt.to)
			suite.Require().Error(err)
			suite.ErrorIs(err, apperrors.ErrUnsupportedCurrency)

			var unsupported *apperrors.UnsupportedCurrencyError
			suite.Require().ErrorAs(err, &unsupported)
			suite.Equal(tt.wantCode, unsupported.Code)
			suite.Equal(tt.wantCode, err.Error())
		})
	}
}

func (suite *RatesStoreTestSuite) TestGetRate_NothingLoaded() {
	store := suite.newStore(services.Options{})

	_, err := store.GetRate(suite.ctx, "USD", "EUR")

	suite.ErrorIs(err, apperrors.ErrNotFound)
	suite.False(errors.Is(err, apperrors.ErrUnsupportedCurrency))
}

// --- Failure policy ---

func (suite *RatesStoreTestSuite) TestWarnPolicy_KeepsRatesWhenRefreshFails() {
	maxAge := time.Hour
	suite.expectFetch().Once()
	store := suite.apiStore(services.Options{MaxAge: &maxAge})

	suite.requireRate(store, "USD", "EUR", "0.813255")
	loadedAt := store.LastUpdatedAt()

	suite.clock.Advance(2 * time.Hour)
	suite.True(store.Stale())
	suite.mockFetcher.On("Fetch", mock.Anything, testAPIURL).
		Return("", errors.New("connection refused"))

	suite.requireRate(store, "USD", "EUR", "0.813255")
	suite.requireRate(store, "EUR", "USD", "1.22962662387566015579369324504614")
	suite.True(loadedAt.Equal(store.LastUpdatedAt()))
	suite.mockFetcher.AssertExpectations(suite.T())
}

func (suite *RatesStoreTestSuite) TestWarnPolicy_FetchJSONReturnsEmpty() {
	suite.mockFetcher.On("Fetch", mock.Anything, testAPIURL).
		Return("", apperrors.ErrTransport).Once()
	store := suite.apiStore(services.Options{})

	text, err := store.FetchJSON(suite.ctx)

	suite.NoError(err)
	suite.Empty(text)
}

func (suite *RatesStoreTestSuite) TestErrorPolicy_ReturnsTransportFailure() {
	suite.mockFetcher.On("Fetch", mock.Anything, testAPIURL).
		Return("", errors.New("connection refused")).Once()
	store := suite.apiStore(services.Options{OnAPIFailure: domain.FailurePolicyError})

	_, err := store.GetRate(suite.ctx, "USD", "EUR")

	suite.ErrorIs(err, apperrors.ErrTransport)
	suite.Contains(err.Error(), "connection refused")
	suite.False(store.Loaded())
}

func (suite *RatesStoreTestSuite) TestErrorPolicy_TableUntouchedOnFailure() {
	suite.expectFetch().Once()
	store := suite.apiStore(services.Options{OnAPIFailure: domain.FailurePolicyError})
	suite.requireRate(store, "USD", "EUR", "0.813255")

	suite.mockFetcher.On("Fetch", mock.Anything, testAPIURL).
		Return("", apperrors.ErrTransport).Once()
	err := store.LoadFromAPI(suite.ctx)

	suite.ErrorIs(err, apperrors.ErrTransport)
	suite.requireRate(store, "USD", "EUR", "0.813255")
}

func (suite *RatesStoreTestSuite) TestLoadFromAPI_MalformedResponseIgnored() {
	for _, body := range []string{"", "<html>Service Unavailable</html>", `{"rates": {"EUR": "oops"`} {
		suite.Run(body, func() {
			fetcher := new(MockRatesFetcher)
			fetcher.On("Fetch", mock.Anything, testAPIURL).Return(body, nil).Once()
			storage := &memorySnapshotStorage{}
			store, err := services.NewRatesStore(memory.NewRateTable(), fetcher, oxr.NewParser(), services.Options{
				AppID:   testAppID,
				Storage: storage,
				Now:     suite.clock.Now,
			})
			suite.Require().NoError(err)

			suite.NoError(store.LoadFromAPI(suite.ctx))
			suite.False(store.Loaded())
			suite.Zero(storage.writes)
		})
	}
}

func (suite *RatesStoreTestSuite) TestLoadFromAPI_RequiresAppID() {
	store := suite.newStore(services.Options{})

	err := store.LoadFromAPI(suite.ctx)

	suite.ErrorIs(err, apperrors.ErrValidation)
}

// --- Cache ---

func (suite *RatesStoreTestSuite) TestLoadFromAPI_WritesCacheAndReloads() {
	suite.expectFetch().Once()
	storage := &memorySnapshotStorage{}
	store := suite.apiStore(services.Options{Storage: storage})

	suite.Require().NoError(store.LoadFromAPI(suite.ctx))

	suite.Equal(1, storage.writes)
	suite.Equal(suite.fixture, storage.text)
	suite.True(suite.clock.Now().Equal(store.LastUpdatedAt()))

	// A store without credentials serves the cached payload
	offline := suite.newStore(services.Options{Storage: storage})
	suite.requireRate(offline, "CAD", "EUR", "0.6207342670686562607335037972751176088")
	suite.True(fixtureTime.Equal(offline.LastUpdatedAt()))
	suite.mockFetcher.AssertNumberOfCalls(suite.T(), "Fetch", 1)
}

func (suite *RatesStoreTestSuite) TestEnsureLoaded_PrefersFreshCache() {
	storage := &memorySnapshotStorage{}
	suite.Require().NoError(storage.Write(suite.ctx, suite.fixture))
	maxAge := 24 * time.Hour
	store := suite.apiStore(services.Options{Storage: storage, MaxAge: &maxAge})

	suite.requireRate(store, "USD", "GBP", "0.716876")

	suite.mockFetcher.AssertNotCalled(suite.T(), "Fetch", mock.Anything, mock.Anything)
}

func (suite *RatesStoreTestSuite) TestEnsureLoaded_RefreshesStaleCache() {
	storage := &memorySnapshotStorage{}
	suite.Require().NoError(storage.Write(suite.ctx, suite.fixture))
	maxAge := 30 * time.Minute
	suite.expectFetch().Once()
	store := suite.apiStore(services.Options{Storage: storage, MaxAge: &maxAge})

	suite.requireRate(store, "USD", "GBP", "0.716876")

	suite.mockFetcher.AssertExpectations(suite.T())
	suite.Equal(2, storage.writes)
	suite.False(store.Stale())
}

func (suite *RatesStoreTestSuite) TestWarnPolicy_CacheCheckFailureFallsBackToAPI() {
	suite.expectFetch().Once()
	store := suite.apiStore(services.Options{Storage: &unreachableSnapshotStorage{existsErr: errCacheDown}})

	suite.requireRate(store, "USD", "EUR", "0.813255")
	suite.True(store.Loaded())
	suite.mockFetcher.AssertNumberOfCalls(suite.T(), "Fetch", 1)
}

func (suite *RatesStoreTestSuite) TestWarnPolicy_CacheWriteFailureKeepsFetchedRates() {
	suite.expectFetch().Once()
	storage := &unreachableSnapshotStorage{writeErr: errCacheDown}
	store := suite.apiStore(services.Options{Storage: storage})

	suite.requireRate(store, "CAD", "EUR", "0.6207342670686562607335037972751176088")
	suite.Equal(1, storage.writes)
	suite.True(suite.clock.Now().Equal(store.LastUpdatedAt()))
}

func (suite *RatesStoreTestSuite) TestErrorPolicy_CacheFailuresAreReturned() {
	checkFails := suite.apiStore(services.Options{
		Storage:      &unreachableSnapshotStorage{existsErr: errCacheDown},
		OnAPIFailure: domain.FailurePolicyError,
	})
	_, err := checkFails.GetRate(suite.ctx, "USD", "EUR")
	suite.ErrorIs(err, errCacheDown)
	suite.mockFetcher.AssertNotCalled(suite.T(), "Fetch", mock.Anything, mock.Anything)

	suite.expectFetch().Once()
	writeFails := suite.apiStore(services.Options{
		Storage:      &unreachableSnapshotStorage{writeErr: errCacheDown},
		OnAPIFailure: domain.FailurePolicyError,
	})
	err = writeFails.LoadFromAPI(suite.ctx)
	suite.ErrorIs(err, errCacheDown)
	suite.False(writeFails.Loaded())
}

func (suite *RatesStoreTestSuite) TestSharedLoadSurvivesCallerCancellation() {
	suite.mockFetcher.On("Fetch", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), testAPIURL).Return(suite.fixture, nil).Once()
	store := suite.apiStore(services.Options{OnAPIFailure: domain.FailurePolicyError})

	ctx, cancel := context.WithCancel(suite.ctx)
	cancel()
	rate, err := store.GetRate(ctx, "USD", "EUR")

	suite.Require().NoError(err)
	suite.True(rate.Equal(decimal.RequireFromString("0.813255")))
	suite.mockFetcher.AssertExpectations(suite.T())
}

func (suite *RatesStoreTestSuite) TestLoadText_InvalidPayload() {
	store := suite.newStore(services.Options{})

	err := store.LoadText(`{"timestamp": 1}`)

	suite.ErrorIs(err, apperrors.ErrParse)
	suite.False(store.Loaded())
}

func (suite *RatesStoreTestSuite) TestLoadText_ReplacesDerivedRates() {
	store := suite.newStore(services.Options{})
	suite.Require().NoError(store.LoadText(suite.fixture))
	suite.requireRate(store, "EUR", "GBP", "0.88148981561748774984475963873569665864")

	suite.Require().NoError(store.LoadText(`{"timestamp": 1521291700, "base": "USD", "rates": {"EUR": "0.8", "GBP": "0.7"}}`))

	rates, err := store.ListRates(suite.ctx)
	suite.Require().NoError(err)
	suite.Len(rates, 2)
	suite.NotContains(rates, domain.CurrencyPair{From: "EUR", To: "GBP"})
}

// --- Status & concurrency ---

func (suite *RatesStoreTestSuite) TestStatus() {
	maxAge := time.Hour
	suite.expectFetch().Once()
	store := suite.apiStore(services.Options{MaxAge: &maxAge})

	before := store.Status()
	suite.False(before.Loaded)
	suite.True(before.Stale)
	suite.Equal("USD", before.SourceCurrency)

	suite.Require().NoError(store.EnsureLoaded(suite.ctx))

	after := store.Status()
	suite.True(after.Loaded)
	suite.False(after.Stale)
	suite.True(suite.clock.Now().Equal(after.LastUpdatedAt))
}

func (suite *RatesStoreTestSuite) TestConcurrentGetRateLoadsOnce() {
	suite.expectFetch().After(20 * time.Millisecond)
	store := suite.apiStore(services.Options{})

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rate, err := store.GetRate(suite.ctx, "CAD", "EUR")
			if err == nil && !rate.Equal(decimal.RequireFromString("0.6207342670686562607335037972751176088")) {
				err = errors.New("unexpected rate " + rate.String())
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		suite.NoError(err)
	}
	suite.mockFetcher.AssertNumberOfCalls(suite.T(), "Fetch", 1)
}

func TestRatesStoreTestSuite(t *testing.T) {
	suite.Run(t, new(RatesStoreTestSuite))
}

package repositories

// RepositoryProvider holds all repository interfaces needed by services.
// This makes passing dependencies to the service container constructor cleaner.
type RepositoryProvider struct {
	RateTable RateTable
	Fetcher   RatesFetcher
	Parser    SnapshotParser
	Snapshots SnapshotStorage // nil disables the rates cache
}

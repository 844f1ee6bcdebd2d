package repositories

import "context"

// SnapshotReader defines read operations for the cached raw rates payload.
type SnapshotReader interface {
	// Exists reports whether a cached payload is present.
	Exists(ctx context.Context) (bool, error)
	// Read returns the cached payload text.
	Read(ctx context.Context) (string, error)
}

// SnapshotWriter defines write operations for the cached raw rates payload.
type SnapshotWriter interface {
	// Write replaces the cached payload with text.
	Write(ctx context.Context, text string) error
}

// SnapshotStorage is a facade over the cached payload.
// Implementations: file (cachefile), Redis and Postgres.
type SnapshotStorage interface {
	SnapshotReader
	SnapshotWriter
}

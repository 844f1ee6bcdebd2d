package repositories

import (
	"context"

	"github.com/SscSPs/money_oxr/internal/core/domain"
)

// RatesFetcher fetches raw rates text from a remote API.
// Failures wrap apperrors.ErrTransport.
type RatesFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// SnapshotParser turns rates text into a Snapshot.
// Failures wrap apperrors.ErrParse.
type SnapshotParser interface {
	Parse(text string) (domain.Snapshot, error)
}

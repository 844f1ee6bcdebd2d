package pgsql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	portsrepo "github.com/SscSPs/money_oxr/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5"
)

// PgxSnapshotRepository keeps the last rates payload for one source currency
// in the rate_snapshots table.
type PgxSnapshotRepository struct {
	BaseRepository
	sourceCurrency string
	now            func() time.Time
}

// NewPgxSnapshotRepository creates a new PgxSnapshotRepository.
func NewPgxSnapshotRepository(db Querier, sourceCurrency string) *PgxSnapshotRepository {
	return &PgxSnapshotRepository{
		BaseRepository: BaseRepository{DB: db},
		sourceCurrency: strings.ToUpper(sourceCurrency),
		now:            time.Now,
	}
}

var _ portsrepo.SnapshotStorage = (*PgxSnapshotRepository)(nil)

// Exists reports whether a snapshot row is stored for the source currency.
func (r *PgxSnapshotRepository) Exists(ctx context.Context) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM rate_snapshots WHERE source_currency = $1)`,
		r.sourceCurrency,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check snapshot for %s: %w", r.sourceCurrency, err)
	}
	return exists, nil
}

// Read returns the stored payload.
func (r *PgxSnapshotRepository) Read(ctx context.Context) (string, error) {
	var body string
	err := r.DB.QueryRow(ctx,
		`SELECT body FROM rate_snapshots WHERE source_currency = $1`,
		r.sourceCurrency,
	).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("no snapshot stored for %s", r.sourceCurrency)
		}
		return "", fmt.Errorf("failed to read snapshot for %s: %w", r.sourceCurrency, err)
	}
	return body, nil
}

// Write upserts the payload.
func (r *PgxSnapshotRepository) Write(ctx context.Context, text string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO rate_snapshots (source_currency, body, fetched_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_currency)
		DO UPDATE SET body = EXCLUDED.body, fetched_at = EXCLUDED.fetched_at`,
		r.sourceCurrency, text, r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to write snapshot for %s: %w", r.sourceCurrency, err)
	}
	return nil
}

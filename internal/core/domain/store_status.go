package domain

import "time"

// StoreStatus describes the load state of a rates store.
type StoreStatus struct {
	SourceCurrency string
	Loaded         bool
	Stale          bool
	LastUpdatedAt  time.Time // zero until the first load
}

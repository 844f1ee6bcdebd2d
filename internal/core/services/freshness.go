package services

import "time"

// IsStale reports whether data last updated at lastUpdatedAt is too old.
// A nil maxAge never goes stale; a zero lastUpdatedAt (nothing loaded) always is.
// The expiry boundary is inclusive, so a zero maxAge is always stale.
func IsStale(lastUpdatedAt time.Time, maxAge *time.Duration, now time.Time) bool {
	if maxAge == nil {
		return false
	}
	if lastUpdatedAt.IsZero() {
		return true
	}
	return !now.Before(lastUpdatedAt.Add(*maxAge))
}

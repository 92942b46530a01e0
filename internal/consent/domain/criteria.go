package domain

import "time"

// ExpirableKind selects which expiry sweep a query serves.
type ExpirableKind string

const (
	// ExpirableUsedNonRecurring selects one-off consents used before Today.
	ExpirableUsedNonRecurring ExpirableKind = "used_non_recurring"
	// ExpirableUnconfirmed selects RECEIVED consents created before CreatedBefore.
	ExpirableUnconfirmed ExpirableKind = "unconfirmed"
)

// ExpirableCriteria filters consents that may need to be expired. The selection
// is a hint: every candidate is rechecked before being written.
type ExpirableCriteria struct {
	Kind          ExpirableKind
	Today         time.Time
	CreatedBefore time.Time
	// Limit bounds the number of candidates, 0 means unbounded.
	Limit int
}

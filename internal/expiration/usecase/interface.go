// Package usecase implements the background sweeps that expire consents
// nobody reads any more: one-off consents used on an earlier day and consents
// never confirmed within the confirmation window.
package usecase

import (
	"context"
	"time"

	"github.com/allisson/consents/internal/consent/domain"
)

// ConsentRepository defines the consent persistence used by the sweeps.
type ConsentRepository interface {
	FindExpirable(ctx context.Context, criteria domain.ExpirableCriteria) ([]*domain.Consent, error)
	Save(ctx context.Context, consent *domain.Consent, expectedVersion int64) error
}

// Config holds expiration sweep configuration.
type Config struct {
	// Interval is the delay between two runs of Start.
	Interval time.Duration
	// BatchSize bounds the candidates handled per sweep. 0 means unbounded.
	BatchSize int
	// NotConfirmedExpiration is how long a consent may stay RECEIVED.
	NotConfirmedExpiration time.Duration
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	Kind domain.ExpirableKind `json:"kind"`
	// Candidates is the number of consents returned by the storage query.
	Candidates int `json:"candidates"`
	// Expired is the number of consents moved to EXPIRED, or that would be on a preview.
	Expired int `json:"expired"`
	// Skipped counts candidates that no longer qualified or were changed concurrently.
	Skipped int `json:"skipped"`
}

// UseCase defines the expiration sweep operations.
type UseCase interface {
	// Start runs both sweeps every Interval until ctx is done.
	Start(ctx context.Context) error
	// RunOnce runs both sweeps. A storage error abandons the failing sweep
	// only; consents already expired stay expired.
	RunOnce(ctx context.Context) ([]SweepResult, error)
	ExpireUsedNonRecurring(ctx context.Context) (SweepResult, error)
	ExpireUnconfirmed(ctx context.Context) (SweepResult, error)
	// Preview counts what RunOnce would expire without writing anything.
	Preview(ctx context.Context) ([]SweepResult, error)
}

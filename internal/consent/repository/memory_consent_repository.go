package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/allisson/consents/internal/consent/domain"
	apperrors "github.com/allisson/consents/internal/errors"
)

// InMemoryConsentRepository stores consents in memory for tests.
// Records are copied on the way in and out so callers never share state, and
// Save applies the same version check as the SQL implementations.
type InMemoryConsentRepository struct {
	mu       sync.RWMutex
	consents map[uuid.UUID]domain.Consent
	byAuth   map[uuid.UUID]uuid.UUID

	// BeforeSave, when set, runs before every Save and aborts it on error.
	BeforeSave func(ctx context.Context, consent *domain.Consent) error
}

// NewInMemoryConsentRepository creates an empty in-memory consent store.
func NewInMemoryConsentRepository() *InMemoryConsentRepository {
	return &InMemoryConsentRepository{
		consents: make(map[uuid.UUID]domain.Consent),
		byAuth:   make(map[uuid.UUID]uuid.UUID),
	}
}

// Create stores consent at version 1.
func (s *InMemoryConsentRepository) Create(_ context.Context, consent *domain.Consent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.consents[consent.ID]; ok {
		return apperrors.Wrap(apperrors.ErrConflict, "consent already exists")
	}

	consent.Version = 1
	s.put(*consent)
	return nil
}

// Save stores consent when the stored version equals expectedVersion.
func (s *InMemoryConsentRepository) Save(ctx context.Context, consent *domain.Consent, expectedVersion int64) error {
	if s.BeforeSave != nil {
		if err := s.BeforeSave(ctx, consent); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.consents[consent.ID]
	if !ok || stored.Version != expectedVersion {
		return domain.ErrConcurrentModification
	}

	consent.Version = expectedVersion + 1
	s.put(*consent)
	return nil
}

// Get returns a copy of the consent.
func (s *InMemoryConsentRepository) Get(_ context.Context, consentID uuid.UUID) (*domain.Consent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.consents[consentID]
	if !ok {
		return nil, domain.ErrConsentNotFound
	}
	out := c.Clone()
	return &out, nil
}

// GetByAuthorisationID returns a copy of the consent owning the authorisation.
func (s *InMemoryConsentRepository) GetByAuthorisationID(
	ctx context.Context,
	authorisationID uuid.UUID,
) (*domain.Consent, error) {
	s.mu.RLock()
	consentID, ok := s.byAuth[authorisationID]
	s.mu.RUnlock()

	if !ok {
		return nil, domain.ErrConsentNotFound
	}
	return s.Get(ctx, consentID)
}

// GetByInternalRequestID returns a copy of the consent with the internal request id.
func (s *InMemoryConsentRepository) GetByInternalRequestID(
	_ context.Context,
	internalRequestID string,
) (*domain.Consent, error) {
	found := s.filter(func(c domain.Consent) bool {
		return internalRequestID != "" && c.InternalRequestID == internalRequestID
	}, 1)
	if len(found) == 0 {
		return nil, domain.ErrConsentNotFound
	}
	return found[0], nil
}

// FindExpirable returns the candidates of an expiry sweep, oldest first.
func (s *InMemoryConsentRepository) FindExpirable(
	_ context.Context,
	criteria domain.ExpirableCriteria,
) ([]*domain.Consent, error) {
	switch criteria.Kind {
	case domain.ExpirableUsedNonRecurring:
		return s.filter(func(c domain.Consent) bool {
			return !c.RecurringIndicator &&
				(c.Status == domain.StatusReceived || c.Status == domain.StatusValid) &&
				c.UsedBefore(criteria.Today)
		}, criteria.Limit), nil
	case domain.ExpirableUnconfirmed:
		return s.filter(func(c domain.Consent) bool {
			return c.Status == domain.StatusReceived && c.CreatedAt.Before(criteria.CreatedBefore)
		}, criteria.Limit), nil
	}
	return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "unknown expirable kind")
}

// FindActiveByTpp returns the RECEIVED and VALID AIS consents of a TPP.
func (s *InMemoryConsentRepository) FindActiveByTpp(_ context.Context, tppID string) ([]*domain.Consent, error) {
	return s.filter(func(c domain.Consent) bool {
		return c.TppID == tppID && c.Type == domain.TypeAIS &&
			(c.Status == domain.StatusReceived || c.Status == domain.StatusValid)
	}, 0), nil
}

func (s *InMemoryConsentRepository) put(c domain.Consent) {
	c = c.Clone()
	s.consents[c.ID] = c
	for _, a := range c.Authorisations {
		s.byAuth[a.ID] = c.ID
	}
}

func (s *InMemoryConsentRepository) filter(match func(domain.Consent) bool, limit int) []*domain.Consent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Consent
	for _, c := range s.consents {
		if match(c) {
			cp := c.Clone()
			out = append(out, &cp)
		}
	}

	slices.SortFunc(out, func(a, b *domain.Consent) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

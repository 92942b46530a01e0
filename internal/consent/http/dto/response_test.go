package dto

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/allisson/consents/internal/consent/domain"
)

func TestMapConsentToResponse(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	consent := &domain.Consent{
		ID:              uuid.New(),
		Type:            domain.TypeAIS,
		Status:          domain.StatusValid,
		TppID:           "tpp",
		FrequencyPerDay: 4,
		Usages:          map[string]int{"2026-03-10": 2, "2026-03-09": 4},
		ValidUntil:      time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		PsuIDDataList:   []domain.PsuData{{ID: "psu-1"}},
		TppAccess:       domain.AccountAccess{Accounts: []string{"tpp-acc"}},
		AspspAccess:     domain.AccountAccess{Accounts: []string{"aspsp-acc"}},
	}

	response := MapConsentToResponse(consent, "ext-1", "https://api.example.com", now)

	assert.Equal(t, "ext-1", response.ConsentID)
	assert.Equal(t, 2, response.UsagesToday)
	assert.Equal(t, "2026-12-31", response.ValidUntil)
	assert.Empty(t, response.LastActionDate)
	assert.Equal(t, []string{"aspsp-acc"}, response.Access.Accounts)
	assert.Equal(t, []PsuData{{PsuID: "psu-1"}}, response.PsuData)
	assert.Equal(t, "https://api.example.com/v1/consents/ext-1", response.Links["self"].Href)
	assert.Equal(t, "https://api.example.com/v1/consents/ext-1/authorisations", response.Links["startAuthorisation"].Href)

	consent.Status = domain.StatusRevokedByPsu
	response = MapConsentToResponse(consent, "ext-1", "https://api.example.com", now)
	assert.NotContains(t, response.Links, "startAuthorisation")
}

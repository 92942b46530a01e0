package service

import (
	"context"
	"fmt"
	"maps"
	"strings"

	authDomain "github.com/allisson/consents/internal/authorisation/domain"
	consentDomain "github.com/allisson/consents/internal/consent/domain"
	apperrors "github.com/allisson/consents/internal/errors"
)

// ErrIncompleteStageTable indicates a stage table missing an (approach, status) pair.
var ErrIncompleteStageTable = apperrors.New("incomplete sca stage table")

// Stage consumes an update against an authorisation in one (approach, status)
// pair and returns the next snapshot.
type Stage func(ctx context.Context, req *authDomain.ProcessorRequest) *authDomain.ProcessorResponse

// StageKey selects a stage.
type StageKey struct {
	Approach consentDomain.ScaApproach
	Status   consentDomain.ScaStatus
}

func (k StageKey) String() string {
	return string(k.Approach) + "/" + string(k.Status)
}

// StageTable is an immutable stage lookup covering every approach and status.
type StageTable struct {
	stages map[StageKey]Stage
}

// NewStageTable checks that stages covers every (approach, status) pair.
func NewStageTable(stages map[StageKey]Stage) (*StageTable, error) {
	var missing []string
	for _, approach := range consentDomain.ScaApproaches {
		for _, status := range consentDomain.ScaStatuses {
			key := StageKey{Approach: approach, Status: status}
			if stages[key] == nil {
				missing = append(missing, key.String())
			}
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrIncompleteStageTable, strings.Join(missing, ", "))
	}

	return &StageTable{stages: maps.Clone(stages)}, nil
}

// Lookup returns the stage for approach and status.
func (t *StageTable) Lookup(approach consentDomain.ScaApproach, status consentDomain.ScaStatus) (Stage, bool) {
	stage, ok := t.stages[StageKey{Approach: approach, Status: status}]
	return stage, ok
}

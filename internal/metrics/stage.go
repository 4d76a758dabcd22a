package metrics

import (
	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
)

// StageResolver maps raw stage identifiers to labels and display ranks
type StageResolver struct {
	byID map[string]contracts.DealStage
}

// NewStageResolver indexes the deal_stages relation.
// If an identifier appears twice the first row wins.
func NewStageResolver(stages []contracts.DealStage) *StageResolver {
	byID := make(map[string]contracts.DealStage, len(stages))
	for _, s := range stages {
		if _, dup := byID[s.ID]; dup {
			continue
		}
		byID[s.ID] = s
	}
	return &StageResolver{byID: byID}
}

// Resolve returns the display label and rank for rawStage.
// Unmapped stages use the raw identifier as label and a nil rank.
func (r *StageResolver) Resolve(rawStage string) (string, *int) {
	s, ok := r.byID[rawStage]
	if !ok {
		return rawStage, nil
	}
	rank := s.Rank
	return s.Label, &rank
}

// Label is Resolve without the rank
func (r *StageResolver) Label(rawStage string) string {
	label, _ := r.Resolve(rawStage)
	return label
}

// compareRank orders ranked before unranked, then by rank ascending
func compareRank(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}

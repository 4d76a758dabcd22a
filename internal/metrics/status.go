package metrics

import (
	"strings"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
)

// Classify derives a deal's outcome from its raw stage identifier.
// The CRM has no status field, so it is inferred from the stage slug:
// "lost" (lowercase only) wins over "won"/"Won"; everything else is open.
// Only the two spellings "won" and "Won" count; "WON" stays open.
func Classify(rawStage string) contracts.DealStatus {
	switch {
	case strings.Contains(rawStage, "lost"):
		return contracts.StatusLost
	case strings.Contains(rawStage, "won"), strings.Contains(rawStage, "Won"):
		return contracts.StatusWon
	default:
		return contracts.StatusOpen
	}
}

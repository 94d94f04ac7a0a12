package progress

import (
	"time"

	"github.com/masteryquest/backend/internal/models"
)

// Freshness tiers.
const (
	FreshnessFull    = 100
	FreshnessFading  = 75
	FreshnessStale   = 50
	FreshnessExpired = 0
)

// FreshnessForDays maps whole days since the last success to a tier.
func FreshnessForDays(days int) int {
	switch {
	case days <= 2:
		return FreshnessFull
	case days <= 6:
		return FreshnessFading
	case days <= 13:
		return FreshnessStale
	default:
		return FreshnessExpired
	}
}

// Freshness derives the tier for a stage result at now. A stage that was
// never played has nothing to decay and reports full freshness.
func Freshness(result *models.StageResult, now time.Time) int {
	if result == nil || result.LastSuccessAt == nil {
		return FreshnessFull
	}
	elapsed := now.Sub(*result.LastSuccessAt)
	if elapsed < 0 {
		elapsed = 0
	}
	return FreshnessForDays(int(elapsed / (24 * time.Hour)))
}

package progress

import "github.com/masteryquest/backend/internal/models"

// Mastery thresholds a prerequisite must reach before the next stage unlocks.
const (
	GateMinAccuracy = 0.80
	GateMinCombo    = 3
)

// Mastered reports whether a stage result clears the mastery thresholds.
func Mastered(result *models.StageResult) bool {
	if result == nil {
		return false
	}
	return result.BestAccuracy >= GateMinAccuracy && result.BestCombo >= GateMinCombo
}

// GatePasses decides whether stage may be attempted and rewarded on
// material. Stages without a prerequisite always pass.
func GatePasses(material *models.MaterialRecord, stage StageDef) bool {
	if stage.Requires == "" {
		return true
	}
	if material == nil {
		return false
	}
	return Mastered(material.StageResults[stage.Requires])
}

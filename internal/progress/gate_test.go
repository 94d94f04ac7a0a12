package progress

import (
	"testing"

	"github.com/masteryquest/backend/internal/models"
)

func TestGatePasses(t *testing.T) {
	understand, _ := DefaultCatalog().Stage("understand")
	remember, _ := DefaultCatalog().Stage("remember")

	withRemember := func(acc float64, combo int) *models.MaterialRecord {
		return &models.MaterialRecord{StageResults: map[models.StageID]*models.StageResult{
			"remember": {BestAccuracy: acc, BestCombo: combo},
		}}
	}

	tests := []struct {
		name     string
		material *models.MaterialRecord
		stage    StageDef
		want     bool
	}{
		{"no prerequisite", &models.MaterialRecord{}, remember, true},
		{"prerequisite absent", &models.MaterialRecord{StageResults: map[models.StageID]*models.StageResult{}}, understand, false},
		{"nil material", nil, understand, false},
		{"accuracy below threshold", withRemember(0.79, 5), understand, false},
		{"combo below threshold", withRemember(0.95, 2), understand, false},
		{"exact thresholds", withRemember(0.80, 3), understand, true},
		{"well above", withRemember(1.0, 12), understand, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GatePasses(tt.material, tt.stage); got != tt.want {
				t.Errorf("GatePasses() = %v, want %v", got, tt.want)
			}
		})
	}
}

package progress

import (
	"testing"
	"time"
)

func TestCheckPlausibility(t *testing.T) {
	stage := StageDef{ID: "apply", BaseXP: 20, MinDuration: 10 * time.Second}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		stage    StageDef
		started  time.Time
		wantFast bool
	}{
		{"no start time", stage, time.Time{}, false},
		{"too fast", stage, now.Add(-3 * time.Second), true},
		{"exactly minimum", stage, now.Add(-10 * time.Second), false},
		{"slow enough", stage, now.Add(-time.Minute), false},
		{"start in the future", stage, now.Add(time.Second), true},
		{"stage without minimum", StageDef{ID: "x", BaseXP: 1}, now.Add(-time.Millisecond), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, fast := CheckPlausibility(tt.stage, tt.started, now); fast != tt.wantFast {
				t.Errorf("fast = %v, want %v", fast, tt.wantFast)
			}
		})
	}
}

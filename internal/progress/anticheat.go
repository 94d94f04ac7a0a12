package progress

import (
	"time"

	"github.com/masteryquest/backend/internal/models"
)

// AttemptFlag is a diagnostic raised for an implausibly fast attempt. It
// never changes the reward.
type AttemptFlag struct {
	UserID     int64          `json:"user_id"`
	MaterialID string         `json:"material_id"`
	Stage      models.StageID `json:"stage"`
	Elapsed    time.Duration  `json:"elapsed"`
	Minimum    time.Duration  `json:"minimum"`
}

// CheckPlausibility compares the attempt duration with the stage minimum.
// A zero startedAt means the caller did not report one and is not checked.
func CheckPlausibility(stage StageDef, startedAt, now time.Time) (time.Duration, bool) {
	if startedAt.IsZero() || stage.MinDuration <= 0 {
		return 0, false
	}
	elapsed := now.Sub(startedAt)
	return elapsed, elapsed < stage.MinDuration
}

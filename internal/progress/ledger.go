package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/masteryquest/backend/internal/models"
)

var (
	ErrMaterialNotFound = errors.New("progress: material not found")
	ErrUnknownStage     = errors.New("progress: unknown stage")
)

// Attempt is one finished play of a stage as reported by a mini-game.
type Attempt struct {
	MaterialID models.MaterialID
	Stage      models.StageID
	Accuracy   float64
	Combo      int
	StartedAt  time.Time
}

// AttemptOutcome describes what an attempt did to the ledger.
type AttemptOutcome struct {
	Award            int
	Completed        bool
	AlreadyCompleted bool
	GatePassed       bool
	Multiplier       float64
	Flag             *AttemptFlag

	// Balances after the attempt was applied.
	MaterialXP int
	TotalXP    int
}

// Ledger turns stage attempts into XP awards and mastery records.
type Ledger struct {
	catalog *Catalog
}

func NewLedger(catalog *Catalog) *Ledger {
	return &Ledger{catalog: catalog}
}

func (l *Ledger) Catalog() *Catalog {
	return l.catalog
}

// Record applies an attempt to state in place. Callers that publish
// snapshots must pass a private copy.
//
// The stage result always absorbs the attempt. A stage already completed
// earns nothing further; otherwise the mastery gate decides between a
// first-completion award and the fixed penalty. Both balances are floored
// at zero independently.
func (l *Ledger) Record(state *models.ProgressState, a Attempt, now time.Time) (AttemptOutcome, error) {
	var out AttemptOutcome

	stage, ok := l.catalog.Stage(a.Stage)
	if !ok {
		return out, fmt.Errorf("%w: %q", ErrUnknownStage, a.Stage)
	}
	material, ok := state.Materials[a.MaterialID]
	if !ok {
		return out, fmt.Errorf("%w: %q", ErrMaterialNotFound, a.MaterialID)
	}

	if elapsed, fast := CheckPlausibility(stage, a.StartedAt, now); fast {
		out.Flag = &AttemptFlag{
			MaterialID: a.MaterialID,
			Stage:      stage.ID,
			Elapsed:    elapsed,
			Minimum:    stage.MinDuration,
		}
	}

	accuracy := clampAccuracy(a.Accuracy)
	combo := clampCombo(a.Combo)

	if material.StageResults == nil {
		material.StageResults = make(map[models.StageID]*models.StageResult)
	}
	result, ok := material.StageResults[stage.ID]
	if !ok {
		result = &models.StageResult{}
		material.StageResults[stage.ID] = result
	}
	result.AttemptCount++
	if accuracy > result.BestAccuracy {
		result.BestAccuracy = accuracy
	}
	if combo > result.BestCombo {
		result.BestCombo = combo
	}
	result.LastAttemptAt = now
	successAt := now
	result.LastSuccessAt = &successAt

	out.Multiplier = StreakMultiplier(state.Streak.CurrentStreak)

	if material.HasCompleted(stage.ID) {
		out.AlreadyCompleted = true
		out.GatePassed = true
		out.MaterialXP = material.XPEarned
		out.TotalXP = state.TotalXP
		return out, nil
	}

	if GatePasses(material, stage) {
		out.GatePassed = true
		out.Completed = true
		out.Award = StageAward(stage.BaseXP, accuracy, state.Streak.CurrentStreak)
		material.CompletedStages = append(material.CompletedStages, stage.ID)
		material.MasteryCount++
		state.TotalMasteryCount++
	} else {
		out.Award = GatePenaltyXP
	}

	material.XPEarned = addClamped(material.XPEarned, out.Award)
	state.TotalXP = addClamped(state.TotalXP, out.Award)
	out.MaterialXP = material.XPEarned
	out.TotalXP = state.TotalXP

	return out, nil
}

// CanAttempt is the read path of the mastery gate.
func (l *Ledger) CanAttempt(state *models.ProgressState, materialID models.MaterialID, stageID models.StageID) (bool, error) {
	stage, ok := l.catalog.Stage(stageID)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownStage, stageID)
	}
	material, ok := state.Materials[materialID]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrMaterialNotFound, materialID)
	}
	return GatePasses(material, stage), nil
}

// StageFreshness derives the freshness tier of one stage at now.
func (l *Ledger) StageFreshness(state *models.ProgressState, materialID models.MaterialID, stageID models.StageID, now time.Time) (int, error) {
	if _, ok := l.catalog.Stage(stageID); !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStage, stageID)
	}
	material, ok := state.Materials[materialID]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMaterialNotFound, materialID)
	}
	return Freshness(material.StageResults[stageID], now), nil
}

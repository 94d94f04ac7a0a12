package progress

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/masteryquest/backend/internal/models"
)

var testNow = time.Date(2026, 4, 2, 15, 0, 0, 0, time.UTC)

func stateWithMaterial(id models.MaterialID, streak int) *models.ProgressState {
	st := models.NewProgressState(models.StreakState{LastLoginDay: "2026-04-02", CurrentStreak: streak, MaxStreak: streak})
	st.Materials[id] = &models.MaterialRecord{
		Title:           "Photosynthesis",
		CompletedStages: []models.StageID{},
		StageResults:    map[models.StageID]*models.StageResult{},
	}
	return st
}

func TestRecord_FirstCompletion(t *testing.T) {
	l := NewLedger(DefaultCatalog())
	st := stateWithMaterial("m1", 0)

	out, err := l.Record(st, Attempt{MaterialID: "m1", Stage: "remember", Accuracy: 0.9, Combo: 4}, testNow)
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	if out.Award != 9 || !out.Completed || !out.GatePassed {
		t.Errorf("unexpected outcome: %+v", out)
	}
	m := st.Materials["m1"]
	if len(m.CompletedStages) != 1 || m.CompletedStages[0] != "remember" {
		t.Errorf("CompletedStages = %v, want [remember]", m.CompletedStages)
	}
	if m.XPEarned != 9 || st.TotalXP != 9 {
		t.Errorf("xp = %d/%d, want 9/9", m.XPEarned, st.TotalXP)
	}
	if m.MasteryCount != 1 || st.TotalMasteryCount != 1 {
		t.Errorf("mastery = %d/%d, want 1/1", m.MasteryCount, st.TotalMasteryCount)
	}
	r := m.StageResults["remember"]
	if r.AttemptCount != 1 || r.BestAccuracy != 0.9 || r.BestCombo != 4 {
		t.Errorf("unexpected stage result: %+v", r)
	}
	if r.LastSuccessAt == nil || !r.LastSuccessAt.Equal(testNow) || !r.LastAttemptAt.Equal(testNow) {
		t.Errorf("timestamps not set to now: %+v", r)
	}
}

func TestRecord_RepeatIsIdempotent(t *testing.T) {
	l := NewLedger(DefaultCatalog())
	st := stateWithMaterial("m1", 0)
	a := Attempt{MaterialID: "m1", Stage: "remember", Accuracy: 0.9, Combo: 4}

	if _, err := l.Record(st, a, testNow); err != nil {
		t.Fatalf("first Record() error: %v", err)
	}
	out, err := l.Record(st, a, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("second Record() error: %v", err)
	}

	if out.Award != 0 || !out.AlreadyCompleted || out.Completed {
		t.Errorf("unexpected repeat outcome: %+v", out)
	}
	if out.MaterialXP != 9 || out.TotalXP != 9 {
		t.Errorf("outcome balances = %d/%d, want 9/9", out.MaterialXP, out.TotalXP)
	}
	m := st.Materials["m1"]
	if len(m.CompletedStages) != 1 {
		t.Errorf("CompletedStages = %v, want length 1", m.CompletedStages)
	}
	if m.XPEarned != 9 || st.TotalXP != 9 || st.TotalMasteryCount != 1 {
		t.Errorf("balances changed on repeat: material=%d total=%d mastery=%d", m.XPEarned, st.TotalXP, st.TotalMasteryCount)
	}
	if m.StageResults["remember"].AttemptCount != 2 {
		t.Errorf("AttemptCount = %d, want 2", m.StageResults["remember"].AttemptCount)
	}
}

func TestRecord_GatePenalty(t *testing.T) {
	l := NewLedger(DefaultCatalog())
	st := stateWithMaterial("m1", 0)
	st.Materials["m1"].XPEarned = 9
	st.TotalXP = 9

	out, err := l.Record(st, Attempt{MaterialID: "m1", Stage: "understand", Accuracy: 1, Combo: 10}, testNow)
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	if out.Award != GatePenaltyXP || out.GatePassed || out.Completed {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if out.MaterialXP != 4 || out.TotalXP != 4 {
		t.Errorf("outcome balances = %d/%d, want 4/4", out.MaterialXP, out.TotalXP)
	}
	if got := st.Materials["m1"].XPEarned; got != 4 {
		t.Errorf("XPEarned = %d, want 4", got)
	}
	if st.TotalXP != 4 {
		t.Errorf("TotalXP = %d, want 4", st.TotalXP)
	}
	if len(st.Materials["m1"].CompletedStages) != 0 {
		t.Error("stage must not complete when the gate fails")
	}
	if st.Materials["m1"].StageResults["understand"] == nil {
		t.Error("failed attempt should still be recorded")
	}
}

func TestRecord_PenaltyFloorsAtZero(t *testing.T) {
	l := NewLedger(DefaultCatalog())
	st := stateWithMaterial("m1", 0)
	st.Materials["m1"].XPEarned = 2
	st.TotalXP = 50 // other materials hold the rest

	if _, err := l.Record(st, Attempt{MaterialID: "m1", Stage: "apply", Accuracy: 1, Combo: 5}, testNow); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if got := st.Materials["m1"].XPEarned; got != 0 {
		t.Errorf("XPEarned = %d, want 0", got)
	}
	if st.TotalXP != 45 {
		t.Errorf("TotalXP = %d, want 45", st.TotalXP)
	}
}

func TestRecord_UnlocksNextStage(t *testing.T) {
	l := NewLedger(DefaultCatalog())
	st := stateWithMaterial("m1", 4)

	if _, err := l.Record(st, Attempt{MaterialID: "m1", Stage: "remember", Accuracy: 0.85, Combo: 3}, testNow); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	can, err := l.CanAttempt(st, "m1", "understand")
	if err != nil || !can {
		t.Fatalf("CanAttempt(understand) = %v, %v; want true", can, err)
	}

	out, err := l.Record(st, Attempt{MaterialID: "m1", Stage: "understand", Accuracy: 1, Combo: 3}, testNow)
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	// 15 * 1.0 * 1.5
	if out.Award != 23 || out.Multiplier != 1.5 {
		t.Errorf("Award = %d (x%v), want 23 (x1.5)", out.Award, out.Multiplier)
	}
}

func TestRecord_ZeroAccuracyPass(t *testing.T) {
	l := NewLedger(DefaultCatalog())
	st := stateWithMaterial("m1", 0)

	out, err := l.Record(st, Attempt{MaterialID: "m1", Stage: "remember"}, testNow)
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if out.Award != 0 || !out.Completed {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if !st.Materials["m1"].HasCompleted("remember") {
		t.Error("stage should be completed even with zero award")
	}
}

func TestRecord_BestValuesNeverDecrease(t *testing.T) {
	l := NewLedger(DefaultCatalog())
	st := stateWithMaterial("m1", 0)

	attempts := []struct {
		acc   float64
		combo int
	}{{0.7, 5}, {0.95, 1}, {0.5, 2}, {2.0, -4}}
	for _, a := range attempts {
		if _, err := l.Record(st, Attempt{MaterialID: "m1", Stage: "remember", Accuracy: a.acc, Combo: a.combo}, testNow); err != nil {
			t.Fatalf("Record() error: %v", err)
		}
	}
	r := st.Materials["m1"].StageResults["remember"]
	if r.BestAccuracy != 1.0 {
		t.Errorf("BestAccuracy = %v, want 1.0 (clamped)", r.BestAccuracy)
	}
	if r.BestCombo != 5 {
		t.Errorf("BestCombo = %d, want 5", r.BestCombo)
	}
}

func TestRecord_NonNegativeUnderRandomAttempts(t *testing.T) {
	l := NewLedger(DefaultCatalog())
	st := stateWithMaterial("m1", 0)
	stages := DefaultCatalog().Stages()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		a := Attempt{
			MaterialID: "m1",
			Stage:      stages[rng.Intn(len(stages))].ID,
			Accuracy:   rng.Float64()*1.4 - 0.2,
			Combo:      rng.Intn(8) - 2,
		}
		if _, err := l.Record(st, a, testNow); err != nil {
			t.Fatalf("Record() error: %v", err)
		}
		m := st.Materials["m1"]
		if m.XPEarned < 0 || st.TotalXP < 0 {
			t.Fatalf("negative balance after attempt %d: material=%d total=%d", i, m.XPEarned, st.TotalXP)
		}
		seen := map[models.StageID]bool{}
		for _, s := range m.CompletedStages {
			if seen[s] {
				t.Fatalf("stage %q completed twice", s)
			}
			seen[s] = true
		}
	}
}

func TestRecord_UnknownIDs(t *testing.T) {
	l := NewLedger(DefaultCatalog())
	st := stateWithMaterial("m1", 0)

	if _, err := l.Record(st, Attempt{MaterialID: "nope", Stage: "remember"}, testNow); !errors.Is(err, ErrMaterialNotFound) {
		t.Errorf("expected ErrMaterialNotFound, got %v", err)
	}
	if _, err := l.Record(st, Attempt{MaterialID: "m1", Stage: "juggle"}, testNow); !errors.Is(err, ErrUnknownStage) {
		t.Errorf("expected ErrUnknownStage, got %v", err)
	}
	if _, err := l.CanAttempt(st, "nope", "remember"); !errors.Is(err, ErrMaterialNotFound) {
		t.Errorf("CanAttempt: expected ErrMaterialNotFound, got %v", err)
	}
	if _, err := l.StageFreshness(st, "m1", "juggle", testNow); !errors.Is(err, ErrUnknownStage) {
		t.Errorf("StageFreshness: expected ErrUnknownStage, got %v", err)
	}
}

func TestRecord_FlagsFastAttempt(t *testing.T) {
	l := NewLedger(DefaultCatalog())
	st := stateWithMaterial("m1", 0)

	out, err := l.Record(st, Attempt{
		MaterialID: "m1", Stage: "remember", Accuracy: 1, Combo: 5,
		StartedAt: testNow.Add(-2 * time.Second),
	}, testNow)
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if out.Flag == nil {
		t.Fatal("expected a plausibility flag")
	}
	if out.Flag.Elapsed != 2*time.Second || out.Flag.Minimum != 5*time.Second {
		t.Errorf("unexpected flag: %+v", out.Flag)
	}
	if out.Award != 10 {
		t.Errorf("flag must not change the award: got %d, want 10", out.Award)
	}
}

func TestStageFreshness_TenDays(t *testing.T) {
	l := NewLedger(DefaultCatalog())
	st := stateWithMaterial("m1", 0)
	if _, err := l.Record(st, Attempt{MaterialID: "m1", Stage: "remember", Accuracy: 1, Combo: 3}, testNow); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	got, err := l.StageFreshness(st, "m1", "remember", testNow.Add(10*24*time.Hour))
	if err != nil {
		t.Fatalf("StageFreshness() error: %v", err)
	}
	if got != 50 {
		t.Errorf("freshness = %d, want 50", got)
	}
}

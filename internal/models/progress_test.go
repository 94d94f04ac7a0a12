package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestInitMaps_DropsNullEntries(t *testing.T) {
	var p ProgressState
	data := `{"materials":{"a":null,"b":{"title":"B","stage_results":{"remember":null,"apply":{"attempt_count":2}}}}}`
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	p.InitMaps()

	if _, ok := p.Materials["a"]; ok {
		t.Error("null material kept")
	}
	b := p.Materials["b"]
	if b == nil {
		t.Fatal("material b missing")
	}
	if _, ok := b.StageResults["remember"]; ok {
		t.Error("null stage result kept")
	}
	if b.StageResults["apply"].AttemptCount != 2 {
		t.Errorf("apply result lost: %+v", b.StageResults["apply"])
	}
	if b.CompletedStages == nil {
		t.Error("CompletedStages should be initialized")
	}
}

func TestClone_SkipsNilAndDeepCopies(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := NewProgressState(StreakState{LastLoginDay: "2026-01-02", CurrentStreak: 2, MaxStreak: 4})
	p.Materials["nil"] = nil
	p.Materials["m"] = &MaterialRecord{
		Title:           "M",
		Content:         json.RawMessage(`{"x":1}`),
		CompletedStages: []StageID{"remember"},
		StageResults: map[StageID]*StageResult{
			"remember": {BestAccuracy: 0.9, LastSuccessAt: &at},
			"apply":    nil,
		},
	}

	cp := p.Clone()

	if _, ok := cp.Materials["nil"]; ok {
		t.Error("nil material copied")
	}
	m := cp.Materials["m"]
	if _, ok := m.StageResults["apply"]; ok {
		t.Error("nil stage result copied")
	}

	m.CompletedStages[0] = "changed"
	m.Content[2] = 'y'
	*m.StageResults["remember"].LastSuccessAt = at.Add(time.Hour)
	orig := p.Materials["m"]
	if orig.CompletedStages[0] != "remember" || string(orig.Content) != `{"x":1}` || !orig.StageResults["remember"].LastSuccessAt.Equal(at) {
		t.Error("clone shares memory with the original")
	}
	if cp.Streak != p.Streak {
		t.Errorf("streak = %+v, want %+v", cp.Streak, p.Streak)
	}
}

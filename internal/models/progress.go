package models

import (
	"encoding/json"
	"time"
)

// ── Core Progress Structs ─────────────────────────────────

type MaterialID = string

type StageID = string

// ProgressState is the per-user root of all mastery progress.
type ProgressState struct {
	TotalXP           int                            `json:"total_xp"`
	TotalMasteryCount int                            `json:"total_mastery_count"`
	Materials         map[MaterialID]*MaterialRecord `json:"materials"`
	Streak            StreakState                    `json:"streak"`
}

// MaterialRecord is one imported study item. Content is the generated
// bundle and is stored as-is.
type MaterialRecord struct {
	Title           string                   `json:"title"`
	Category        string                   `json:"category"`
	SourceLabel     string                   `json:"source_label"`
	Content         json.RawMessage          `json:"content,omitempty"`
	CompletedStages []StageID                `json:"completed_stages"`
	MasteryCount    int                      `json:"mastery_count"`
	XPEarned        int                      `json:"xp_earned"`
	CreatedAt       time.Time                `json:"created_at"`
	StageResults    map[StageID]*StageResult `json:"stage_results"`
}

type StageResult struct {
	BestAccuracy  float64    `json:"best_accuracy"`
	BestCombo     int        `json:"best_combo"`
	AttemptCount  int        `json:"attempt_count"`
	LastAttemptAt time.Time  `json:"last_attempt_at"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
}

// StreakState tracks consecutive login days. LastLoginDay is a calendar
// date formatted as YYYY-MM-DD.
type StreakState struct {
	LastLoginDay  string `json:"last_login_day"`
	CurrentStreak int    `json:"current_streak"`
	MaxStreak     int    `json:"max_streak"`
}

// NewProgressState returns an empty state with initialized maps.
func NewProgressState(streak StreakState) *ProgressState {
	return &ProgressState{
		Materials: make(map[MaterialID]*MaterialRecord),
		Streak:    streak,
	}
}

// HasCompleted reports whether stage is in the completed set.
func (m *MaterialRecord) HasCompleted(stage StageID) bool {
	for _, s := range m.CompletedStages {
		if s == stage {
			return true
		}
	}
	return false
}

// InitMaps ensures all map fields are non-nil after deserialization and
// drops null material and stage result entries.
func (p *ProgressState) InitMaps() {
	if p.Materials == nil {
		p.Materials = make(map[MaterialID]*MaterialRecord)
	}
	for id, m := range p.Materials {
		if m == nil {
			delete(p.Materials, id)
			continue
		}
		if m.StageResults == nil {
			m.StageResults = make(map[StageID]*StageResult)
		}
		for stage, r := range m.StageResults {
			if r == nil {
				delete(m.StageResults, stage)
			}
		}
		if m.CompletedStages == nil {
			m.CompletedStages = []StageID{}
		}
	}
}

// Clone returns a deep copy of the state.
func (p *ProgressState) Clone() *ProgressState {
	cp := *p
	cp.Materials = make(map[MaterialID]*MaterialRecord, len(p.Materials))
	for id, m := range p.Materials {
		if m == nil {
			continue
		}
		cp.Materials[id] = m.Clone()
	}
	return &cp
}

// Clone returns a deep copy of the material record.
func (m *MaterialRecord) Clone() *MaterialRecord {
	cp := *m
	if m.Content != nil {
		cp.Content = append(json.RawMessage(nil), m.Content...)
	}
	cp.CompletedStages = append([]StageID{}, m.CompletedStages...)
	cp.StageResults = make(map[StageID]*StageResult, len(m.StageResults))
	for id, r := range m.StageResults {
		if r == nil {
			continue
		}
		rc := *r
		if r.LastSuccessAt != nil {
			t := *r.LastSuccessAt
			rc.LastSuccessAt = &t
		}
		cp.StageResults[id] = &rc
	}
	return &cp
}

// ── Request Types ─────────────────────────────────────────

type RegisterMaterialRequest struct {
	Title       string          `json:"title"`
	Category    string          `json:"category"`
	SourceLabel string          `json:"source_label"`
	Text        string          `json:"text,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
}

type RecordAttemptRequest struct {
	Accuracy  float64   `json:"accuracy"`
	Combo     int       `json:"combo"`
	StartedAt time.Time `json:"started_at"`
}

// ── Response Types ────────────────────────────────────────

type RegisterMaterialResponse struct {
	MaterialID MaterialID `json:"material_id"`
	Title      string     `json:"title"`
	Quality    string     `json:"quality,omitempty"`
}

type AttemptResponse struct {
	Award            int     `json:"award"`
	Completed        bool    `json:"completed"`
	AlreadyCompleted bool    `json:"already_completed"`
	GatePassed       bool    `json:"gate_passed"`
	Multiplier       float64 `json:"multiplier"`
	Flagged          bool    `json:"flagged"`
	MaterialXP       int     `json:"material_xp"`
	TotalXP          int     `json:"total_xp"`
}

type StageStatusResponse struct {
	MaterialID MaterialID `json:"material_id"`
	Stage      StageID    `json:"stage"`
	CanAttempt bool       `json:"can_attempt"`
	Freshness  int        `json:"freshness"`
	Completed  bool       `json:"completed"`
}

type ProgressSummaryResponse struct {
	TotalXP           int      `json:"total_xp"`
	TotalMasteryCount int      `json:"total_mastery_count"`
	MaterialCount     int      `json:"material_count"`
	CurrentStreak     int      `json:"current_streak"`
	MaxStreak         int      `json:"max_streak"`
	StreakMultiplier  float64  `json:"streak_multiplier"`
	Badges            []string `json:"badges"`
}

type ReviewItem struct {
	MaterialID    MaterialID `json:"material_id"`
	Title         string     `json:"title"`
	Stage         StageID    `json:"stage"`
	Freshness     int        `json:"freshness"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
}

type ReviewQueueResponse struct {
	Items []ReviewItem `json:"items"`
}

type ImportResponse struct {
	Imported    []MaterialID `json:"imported"`
	SkippedRows []int        `json:"skipped_rows"`
	Errors      []string     `json:"errors,omitempty"`
}

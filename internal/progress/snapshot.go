package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/masteryquest/backend/internal/models"
)

// RemoteSnapshot is what the authoritative store holds for one user: the
// root streak document (nil when never written) and one document per
// material.
type RemoteSnapshot struct {
	Streak    *models.StreakState
	Materials map[models.MaterialID]*models.MaterialRecord
}

// RemoteStore is the authoritative per-user document store.
type RemoteStore interface {
	LoadProgress(ctx context.Context, userID int64) (*RemoteSnapshot, error)
	SaveMaterial(ctx context.Context, userID int64, id models.MaterialID, material *models.MaterialRecord) error
	SaveStreak(ctx context.Context, userID int64, streak models.StreakState) error
	ClearMaterials(ctx context.Context, userID int64) error
}

// LocalCache holds one serialized snapshot per key. A missing key is
// reported as cache.ErrMiss.
type LocalCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

func cacheKey(userID int64) string {
	return "progress:" + strconv.FormatInt(userID, 10)
}

func encodeSnapshot(state *models.ProgressState) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("marshaling snapshot: %w", err)
	}
	return data, nil
}

// decodeSnapshot parses a cached snapshot. Snapshots written before the
// streak field existed get a fresh streak anchored at today.
func decodeSnapshot(data []byte, today string) (*models.ProgressState, error) {
	type alias models.ProgressState
	var st models.ProgressState
	aux := &struct {
		*alias
		Streak *models.StreakState `json:"streak"`
	}{alias: (*alias)(&st)}
	if err := json.Unmarshal(data, aux); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	if aux.Streak != nil {
		st.Streak = *aux.Streak
	} else {
		st.Streak = NewStreak(today)
	}
	st.InitMaps()
	return &st, nil
}

// rebuildFromRemote assembles a state from remote documents. Totals are
// re-derived from the materials rather than trusted from any stored field.
func rebuildFromRemote(remote *RemoteSnapshot, fallback models.StreakState) *models.ProgressState {
	streak := fallback
	if remote.Streak != nil {
		streak = *remote.Streak
	}
	st := models.NewProgressState(streak)
	for id, m := range remote.Materials {
		if m == nil {
			continue
		}
		cp := m.Clone()
		if cp.XPEarned < 0 {
			cp.XPEarned = 0
		}
		st.Materials[id] = cp
		st.TotalXP += cp.XPEarned
		st.TotalMasteryCount += cp.MasteryCount
	}
	st.InitMaps()
	return st
}

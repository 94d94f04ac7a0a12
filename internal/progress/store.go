package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/masteryquest/backend/internal/models"
	"golang.org/x/sync/errgroup"
)

// Store is the PostgreSQL-backed authoritative copy of user progress: one
// root row per user holding the streak document and one row per material.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ── Load ────────────────────────────────────────────────

// LoadProgress fetches the root and material documents concurrently.
func (s *Store) LoadProgress(ctx context.Context, userID int64) (*RemoteSnapshot, error) {
	var (
		streak    *models.StreakState
		materials map[models.MaterialID]*models.MaterialRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		streak, err = s.getStreak(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		materials, err = s.getMaterials(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &RemoteSnapshot{Streak: streak, Materials: materials}, nil
}

func (s *Store) getStreak(ctx context.Context, userID int64) (*models.StreakState, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT streak FROM progress_roots WHERE user_id = $1`,
		userID,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get progress root: %w", err)
	}

	var streak models.StreakState
	if err := json.Unmarshal(doc, &streak); err != nil {
		return nil, fmt.Errorf("decode streak document: %w", err)
	}
	return &streak, nil
}

func (s *Store) getMaterials(ctx context.Context, userID int64) (map[models.MaterialID]*models.MaterialRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT material_id, doc FROM progress_materials WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get materials: %w", err)
	}
	defer rows.Close()

	materials := make(map[models.MaterialID]*models.MaterialRecord)
	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		var m models.MaterialRecord
		if err := json.Unmarshal(doc, &m); err != nil {
			return nil, fmt.Errorf("decode material %s: %w", id, err)
		}
		materials[id] = &m
	}
	return materials, rows.Err()
}

// ── Writes ──────────────────────────────────────────────

func (s *Store) SaveMaterial(ctx context.Context, userID int64, id models.MaterialID, material *models.MaterialRecord) error {
	doc, err := json.Marshal(material)
	if err != nil {
		return fmt.Errorf("encode material %s: %w", id, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO progress_materials (user_id, material_id, doc)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, material_id) DO UPDATE SET
		    doc = EXCLUDED.doc,
		    updated_at = NOW()`,
		userID, id, doc,
	)
	if err != nil {
		return fmt.Errorf("upsert material %s: %w", id, err)
	}
	return nil
}

func (s *Store) SaveStreak(ctx context.Context, userID int64, streak models.StreakState) error {
	doc, err := json.Marshal(streak)
	if err != nil {
		return fmt.Errorf("encode streak: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO progress_roots (user_id, streak)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET
		    streak = EXCLUDED.streak,
		    updated_at = NOW()`,
		userID, doc,
	)
	if err != nil {
		return fmt.Errorf("upsert progress root: %w", err)
	}
	return nil
}

func (s *Store) ClearMaterials(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM progress_materials WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("clear materials: %w", err)
	}
	return nil
}

package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/masteryquest/backend/internal/cache"
	"github.com/masteryquest/backend/internal/models"
)

const defaultRemoteTimeout = 10 * time.Second

var ErrInvalidMaterial = errors.New("progress: invalid material")

// ChangeFunc receives every snapshot a session publishes. It runs while the
// session is locked and must not block.
type ChangeFunc func(userID int64, snapshot *models.ProgressState)

// FlagFunc receives anti-cheat diagnostics. It runs after the session lock
// is released.
type FlagFunc func(flag AttemptFlag)

// NewMaterial describes a study item being imported.
type NewMaterial struct {
	Title       string
	Category    string
	SourceLabel string
	Content     json.RawMessage
}

// Session is the progress state owned by one signed-in user. Published
// snapshots are never modified; every mutation swaps in a new one.
type Session struct {
	userID int64
	mu     sync.Mutex
	state  *models.ProgressState
	loaded bool
}

// Service owns the sessions of all signed-in users and keeps each one in
// sync with the local cache and the remote store.
type Service struct {
	ledger        *Ledger
	remote        RemoteStore
	cache         LocalCache
	now           func() time.Time
	loc           *time.Location
	remoteTimeout time.Duration
	onChange      ChangeFunc
	onFlag        FlagFunc

	mu            sync.Mutex
	sessions      map[int64]*Session
	streakChecked map[int64]string // user -> day the streak was last recomputed
	inflight      sync.WaitGroup
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func WithRemoteTimeout(d time.Duration) Option {
	return func(s *Service) { s.remoteTimeout = d }
}

func WithChangeObserver(fn ChangeFunc) Option {
	return func(s *Service) { s.onChange = fn }
}

func WithFlagObserver(fn FlagFunc) Option {
	return func(s *Service) { s.onFlag = fn }
}

func NewService(ledger *Ledger, remote RemoteStore, cache LocalCache, opts ...Option) *Service {
	s := &Service{
		ledger:        ledger,
		remote:        remote,
		cache:         cache,
		now:           time.Now,
		loc:           time.UTC,
		remoteTimeout: defaultRemoteTimeout,
		sessions:      make(map[int64]*Session),
		streakChecked: make(map[int64]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Catalog() *Catalog {
	return s.ledger.Catalog()
}

// ── Session Lifecycle ───────────────────────────────────

// StartSession loads the user's progress if it is not loaded yet and
// returns the current snapshot.
func (s *Service) StartSession(ctx context.Context, userID int64) *models.ProgressState {
	sess := s.acquire(ctx, userID)
	defer sess.mu.Unlock()
	return sess.state
}

// EndSession tears down the user's session. The local cache already holds
// the latest snapshot.
func (s *Service) EndSession(userID int64) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}

func (s *Service) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Drain waits for in-flight remote writes or for ctx to end.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// acquire returns the user's session locked and loaded.
func (s *Service) acquire(ctx context.Context, userID int64) *Session {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &Session{userID: userID}
		s.sessions[userID] = sess
	}
	s.mu.Unlock()

	sess.mu.Lock()
	if !sess.loaded {
		s.loadOrUnlock(ctx, sess)
	}
	return sess
}

// loadOrUnlock releases the session lock if load panics so later calls for
// the user do not block forever.
func (s *Service) loadOrUnlock(ctx context.Context, sess *Session) {
	done := false
	defer func() {
		if !done {
			sess.mu.Unlock()
		}
	}()
	s.load(ctx, sess)
	done = true
}

// ── Synchronizer ────────────────────────────────────────

// load hydrates a session: remote first, local cache on an empty or failed
// remote read, a fresh state when neither has anything.
func (s *Service) load(ctx context.Context, sess *Session) {
	now := s.now()
	today := DayKey(now, s.loc)

	cached := s.readCache(ctx, sess.userID, today)

	remote, err := s.remote.LoadProgress(ctx, sess.userID)
	if err != nil {
		log.Printf("[sync] remote load failed for user %d, falling back to local cache: %v", sess.userID, err)
		remote = nil
	}

	var state *models.ProgressState
	rewrite := false
	switch {
	case remote != nil && len(remote.Materials) > 0:
		fallback := NewStreak(today)
		if cached != nil {
			fallback = cached.Streak
		}
		state = rebuildFromRemote(remote, fallback)
		rewrite = true
		log.Printf("[sync] user %d loaded from remote (%d materials)", sess.userID, len(state.Materials))
	case cached != nil:
		state = cached
		log.Printf("[sync] user %d loaded from local cache (%d materials)", sess.userID, len(state.Materials))
	default:
		streak := NewStreak(today)
		if remote != nil && remote.Streak != nil {
			streak = *remote.Streak
		}
		state = models.NewProgressState(streak)
		rewrite = true
	}

	sess.state = state
	sess.loaded = true
	if rewrite {
		s.persistLocked(ctx, sess)
	}
	s.recomputeStreakLocked(ctx, sess, now)
}

func (s *Service) readCache(ctx context.Context, userID int64, today string) *models.ProgressState {
	data, err := s.cache.Get(ctx, cacheKey(userID))
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Printf("[sync] local cache read failed for user %d: %v", userID, err)
		}
		return nil
	}
	st, err := decodeSnapshot(data, today)
	if err != nil {
		log.Printf("[sync] discarding unreadable cache for user %d: %v", userID, err)
		return nil
	}
	return st
}

// persistLocked writes the full snapshot to the local cache. Nothing is
// written before the session has loaded so an empty placeholder never
// replaces real cached progress.
func (s *Service) persistLocked(ctx context.Context, sess *Session) {
	if !sess.loaded {
		return
	}
	data, err := encodeSnapshot(sess.state)
	if err != nil {
		log.Printf("[sync] failed to encode snapshot for user %d: %v", sess.userID, err)
		return
	}
	if err := s.cache.Put(context.WithoutCancel(ctx), cacheKey(sess.userID), data); err != nil {
		log.Printf("[sync] failed to persist snapshot for user %d: %v", sess.userID, err)
	}
}

// propagate runs one remote write in the background. Failures are logged
// and dropped.
func (s *Service) propagate(userID int64, what string, write func(ctx context.Context) error) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.remoteTimeout)
		defer cancel()
		if err := write(ctx); err != nil {
			log.Printf("[sync] dropped remote write of %s for user %d: %v", what, userID, err)
		}
	}()
}

func (s *Service) propagateMaterial(userID int64, id models.MaterialID, m *models.MaterialRecord) {
	s.propagate(userID, "material "+id, func(ctx context.Context) error {
		return s.remote.SaveMaterial(ctx, userID, id, m)
	})
}

func (s *Service) propagateStreak(userID int64, streak models.StreakState) {
	s.propagate(userID, "streak", func(ctx context.Context) error {
		return s.remote.SaveStreak(ctx, userID, streak)
	})
}

// publishLocked installs next as the session snapshot, persists it and
// notifies the observer.
func (s *Service) publishLocked(ctx context.Context, sess *Session, next *models.ProgressState) {
	sess.state = next
	s.persistLocked(ctx, sess)
	if s.onChange != nil {
		s.onChange(sess.userID, next)
	}
}

// recomputeStreakLocked applies the daily streak transition at most once
// per calendar day per user for the life of the process.
func (s *Service) recomputeStreakLocked(ctx context.Context, sess *Session, now time.Time) bool {
	today := DayKey(now, s.loc)

	s.mu.Lock()
	if s.streakChecked[sess.userID] == today {
		s.mu.Unlock()
		return false
	}
	s.streakChecked[sess.userID] = today
	s.mu.Unlock()

	streak, changed := AdvanceStreak(sess.state.Streak, today)
	if !changed {
		return false
	}

	next := sess.state.Clone()
	next.Streak = streak
	s.publishLocked(ctx, sess, next)
	s.propagateStreak(sess.userID, streak)

	log.Printf("[progress] user %d streak now %d (best %d)", sess.userID, streak.CurrentStreak, streak.MaxStreak)
	return true
}

// RolloverStreaks re-runs the daily streak check for every open session.
// Sessions that stay open across midnight pick up the new day here.
func (s *Service) RolloverStreaks(ctx context.Context) int {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	now := s.now()
	updated := 0
	for _, sess := range sessions {
		sess.mu.Lock()
		if sess.loaded && s.recomputeStreakLocked(ctx, sess, now) {
			updated++
		}
		sess.mu.Unlock()
	}
	return updated
}

// ── Ledger Operations ───────────────────────────────────

// RegisterMaterial adds a study item and returns its id.
func (s *Service) RegisterMaterial(ctx context.Context, userID int64, nm NewMaterial) (models.MaterialID, error) {
	title := strings.TrimSpace(nm.Title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalidMaterial)
	}

	sess := s.acquire(ctx, userID)
	defer sess.mu.Unlock()

	id := uuid.NewString()
	record := &models.MaterialRecord{
		Title:           title,
		Category:        strings.TrimSpace(nm.Category),
		SourceLabel:     strings.TrimSpace(nm.SourceLabel),
		Content:         nm.Content,
		CompletedStages: []models.StageID{},
		CreatedAt:       s.now().UTC(),
		StageResults:    make(map[models.StageID]*models.StageResult),
	}

	next := sess.state.Clone()
	next.Materials[id] = record
	s.publishLocked(ctx, sess, next)
	s.propagateMaterial(userID, id, record)

	return id, nil
}

// RecordAttempt runs one stage attempt through the ledger. Input ranges are
// clamped rather than rejected; only unknown ids produce an error. The flag
// observer is called after the session is released.
func (s *Service) RecordAttempt(ctx context.Context, userID int64, a Attempt) (AttemptOutcome, error) {
	sess := s.acquire(ctx, userID)

	now := s.now()
	next := sess.state.Clone()
	out, err := s.ledger.Record(next, a, now)
	if err != nil {
		sess.mu.Unlock()
		return out, err
	}
	if out.Flag != nil {
		out.Flag.UserID = userID
	}

	s.publishLocked(ctx, sess, next)
	s.propagateMaterial(userID, a.MaterialID, next.Materials[a.MaterialID])
	sess.mu.Unlock()

	if out.Flag != nil {
		log.Printf("[progress] implausibly fast attempt: user %d material %s stage %s took %s (min %s)",
			userID, out.Flag.MaterialID, out.Flag.Stage, out.Flag.Elapsed, out.Flag.Minimum)
		if s.onFlag != nil {
			s.onFlag(*out.Flag)
		}
	}

	return out, nil
}

// ClearMaterials removes every material for the user. Individual materials
// are never deleted.
func (s *Service) ClearMaterials(ctx context.Context, userID int64) {
	sess := s.acquire(ctx, userID)
	defer sess.mu.Unlock()

	next := models.NewProgressState(sess.state.Streak)
	s.publishLocked(ctx, sess, next)
	s.propagate(userID, "material clear", func(ctx context.Context) error {
		return s.remote.ClearMaterials(ctx, userID)
	})
}

// ── Read Path ───────────────────────────────────────────

// Snapshot returns the current state. The returned value is shared and
// must not be modified.
func (s *Service) Snapshot(ctx context.Context, userID int64) *models.ProgressState {
	sess := s.acquire(ctx, userID)
	defer sess.mu.Unlock()
	return sess.state
}

func (s *Service) CanAttempt(ctx context.Context, userID int64, materialID models.MaterialID, stage models.StageID) (bool, error) {
	return s.ledger.CanAttempt(s.Snapshot(ctx, userID), materialID, stage)
}

func (s *Service) Freshness(ctx context.Context, userID int64, materialID models.MaterialID, stage models.StageID) (int, error) {
	return s.ledger.StageFreshness(s.Snapshot(ctx, userID), materialID, stage, s.now())
}

// StageStatus combines the gate and freshness reads for one stage.
func (s *Service) StageStatus(ctx context.Context, userID int64, materialID models.MaterialID, stage models.StageID) (*models.StageStatusResponse, error) {
	st := s.Snapshot(ctx, userID)
	can, err := s.ledger.CanAttempt(st, materialID, stage)
	if err != nil {
		return nil, err
	}
	fresh, err := s.ledger.StageFreshness(st, materialID, stage, s.now())
	if err != nil {
		return nil, err
	}
	return &models.StageStatusResponse{
		MaterialID: materialID,
		Stage:      stage,
		CanAttempt: can,
		Freshness:  fresh,
		Completed:  st.Materials[materialID].HasCompleted(stage),
	}, nil
}

func (s *Service) Summary(ctx context.Context, userID int64) *models.ProgressSummaryResponse {
	st := s.Snapshot(ctx, userID)
	return &models.ProgressSummaryResponse{
		TotalXP:           st.TotalXP,
		TotalMasteryCount: st.TotalMasteryCount,
		MaterialCount:     len(st.Materials),
		CurrentStreak:     st.Streak.CurrentStreak,
		MaxStreak:         st.Streak.MaxStreak,
		StreakMultiplier:  StreakMultiplier(st.Streak.CurrentStreak),
		Badges:            EarnedBadges(st, s.Catalog()),
	}
}

// ReviewQueue lists completed stages that have started to decay, stalest
// first.
func (s *Service) ReviewQueue(ctx context.Context, userID int64) []models.ReviewItem {
	st := s.Snapshot(ctx, userID)
	now := s.now()
	cat := s.Catalog()

	items := []models.ReviewItem{}
	for id, m := range st.Materials {
		for _, stage := range m.CompletedStages {
			result := m.StageResults[stage]
			fresh := Freshness(result, now)
			if fresh >= FreshnessFull {
				continue
			}
			item := models.ReviewItem{
				MaterialID: id,
				Title:      m.Title,
				Stage:      stage,
				Freshness:  fresh,
			}
			if result != nil {
				item.LastSuccessAt = result.LastSuccessAt
			}
			items = append(items, item)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Freshness != b.Freshness {
			return a.Freshness < b.Freshness
		}
		if a.MaterialID != b.MaterialID {
			return a.MaterialID < b.MaterialID
		}
		return cat.Index(a.Stage) < cat.Index(b.Stage)
	})
	return items
}

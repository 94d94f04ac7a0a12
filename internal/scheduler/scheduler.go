package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

const rolloverTimeout = time.Minute

// Roller re-runs the daily streak check for open sessions.
type Roller interface {
	RolloverStreaks(ctx context.Context) int
}

// Scheduler runs the midnight streak rollover.
type Scheduler struct {
	scheduler *gocron.Scheduler
	roller    Roller
}

// New creates a scheduler whose midnight is taken in loc.
func New(roller Roller, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		roller:    roller,
	}
}

// Start schedules the rollover and begins running it in the background.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(1).Day().At("00:00").Do(s.Rollover); err != nil {
		return fmt.Errorf("schedule streak rollover: %w", err)
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates all scheduled tasks.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Rollover runs one pass immediately.
func (s *Scheduler) Rollover() {
	ctx, cancel := context.WithTimeout(context.Background(), rolloverTimeout)
	defer cancel()

	start := time.Now()
	n := s.roller.RolloverStreaks(ctx)
	log.Printf("[scheduler] streak rollover updated %d sessions in %v", n, time.Since(start))
}

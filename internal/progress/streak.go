package progress

import (
	"fmt"
	"time"

	"github.com/masteryquest/backend/internal/models"
)

const dayLayout = "2006-01-02"

// DayKey returns the calendar day of t in loc as YYYY-MM-DD.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dayLayout)
}

// DaysBetween returns the number of calendar days from one day key to
// another. Both keys are parsed as UTC midnights so DST never skews the
// count.
func DaysBetween(from, to string) (int, error) {
	a, err := time.Parse(dayLayout, from)
	if err != nil {
		return 0, fmt.Errorf("parse day %q: %w", from, err)
	}
	b, err := time.Parse(dayLayout, to)
	if err != nil {
		return 0, fmt.Errorf("parse day %q: %w", to, err)
	}
	return int(b.Sub(a).Hours() / 24), nil
}

// NewStreak returns a fresh streak anchored at today with no streak days.
func NewStreak(today string) models.StreakState {
	return models.StreakState{LastLoginDay: today}
}

// AdvanceStreak applies the daily login transition for today and reports
// whether the streak changed. Consecutive days extend the streak, gaps reset
// it to one, and the same day (or a day in the past) is a no-op.
func AdvanceStreak(s models.StreakState, today string) (models.StreakState, bool) {
	if s.LastLoginDay == today {
		return s, false
	}

	if s.LastLoginDay == "" {
		s.CurrentStreak = 1
	} else {
		daysSinceLast, err := DaysBetween(s.LastLoginDay, today)
		switch {
		case err != nil:
			// Unreadable anchor, start over
			s.CurrentStreak = 1
		case daysSinceLast < 0:
			return s, false
		case daysSinceLast == 1:
			s.CurrentStreak++
		default:
			s.CurrentStreak = 1
		}
	}

	if s.CurrentStreak > s.MaxStreak {
		s.MaxStreak = s.CurrentStreak
	}
	s.LastLoginDay = today
	return s, true
}

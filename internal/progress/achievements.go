package progress

import "github.com/masteryquest/backend/internal/models"

// BadgeDef defines a single badge.
type BadgeDef struct {
	Name        string
	Description string
}

// Badges maps badge keys to their definitions.
var Badges = map[string]BadgeDef{
	"first_mastery": {Name: "First Steps", Description: "Complete your first stage"},
	"mastery_10":    {Name: "Climber", Description: "Complete 10 stages"},
	"mastery_50":    {Name: "Summit", Description: "Complete 50 stages"},
	"streak_3":      {Name: "Getting Started", Description: "3-day streak"},
	"streak_7":      {Name: "Week Warrior", Description: "7-day streak"},
	"streak_14":     {Name: "Dedicated", Description: "14-day streak"},
	"streak_30":     {Name: "Monthly Master", Description: "30-day streak"},
	"xp_1000":       {Name: "Rising Star", Description: "Earn 1,000 total XP"},
	"xp_10000":      {Name: "Powerhouse", Description: "Earn 10,000 total XP"},
	"full_ladder":   {Name: "Top of the Ladder", Description: "Complete every stage of one material"},
}

// EarnedBadges returns the badge keys the state currently qualifies for.
// Badges are derived on read and never stored. Streak badges use the best
// streak so a broken streak keeps them.
func EarnedBadges(state *models.ProgressState, catalog *Catalog) []string {
	earned := []string{}

	// Mastery milestones
	if state.TotalMasteryCount >= 1 {
		earned = append(earned, "first_mastery")
	}
	if state.TotalMasteryCount >= 10 {
		earned = append(earned, "mastery_10")
	}
	if state.TotalMasteryCount >= 50 {
		earned = append(earned, "mastery_50")
	}

	// Streak milestones
	best := state.Streak.MaxStreak
	if best >= 3 {
		earned = append(earned, "streak_3")
	}
	if best >= 7 {
		earned = append(earned, "streak_7")
	}
	if best >= 14 {
		earned = append(earned, "streak_14")
	}
	if best >= 30 {
		earned = append(earned, "streak_30")
	}

	// XP milestones
	if state.TotalXP >= 1000 {
		earned = append(earned, "xp_1000")
	}
	if state.TotalXP >= 10000 {
		earned = append(earned, "xp_10000")
	}

	if catalog != nil {
		total := len(catalog.Stages())
		for _, m := range state.Materials {
			if len(m.CompletedStages) >= total {
				earned = append(earned, "full_ladder")
				break
			}
		}
	}

	return earned
}

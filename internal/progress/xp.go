package progress

import "math"

// GatePenaltyXP is deducted when a stage is attempted before its
// prerequisite has been mastered.
const GatePenaltyXP = -5

// StreakMultiplier returns the XP multiplier for a daily streak.
func StreakMultiplier(currentStreak int) float64 {
	if currentStreak < 3 {
		return 1.0
	}
	if currentStreak < 7 {
		return 1.5
	}
	if currentStreak < 14 {
		return 2.0
	}
	return 3.0
}

// StageAward returns the XP for a first completion of a stage. A stage
// played at zero accuracy earns nothing; otherwise the scaled base is
// floored at 1 before the streak multiplier.
func StageAward(baseXP int, accuracy float64, currentStreak int) int {
	if accuracy <= 0 {
		return 0
	}
	scaled := math.Max(1, float64(baseXP)*accuracy)
	return ApplyStreakMultiplier(scaled, StreakMultiplier(currentStreak))
}

// ApplyStreakMultiplier rounds the multiplied XP to the nearest integer.
func ApplyStreakMultiplier(xp float64, multiplier float64) int {
	return int(math.Round(xp * multiplier))
}

// addClamped applies delta to balance with a floor of zero.
func addClamped(balance, delta int) int {
	next := balance + delta
	if next < 0 {
		return 0
	}
	return next
}

func clampAccuracy(accuracy float64) float64 {
	if math.IsNaN(accuracy) || accuracy < 0 {
		return 0
	}
	if accuracy > 1 {
		return 1
	}
	return accuracy
}

func clampCombo(combo int) int {
	if combo < 0 {
		return 0
	}
	return combo
}

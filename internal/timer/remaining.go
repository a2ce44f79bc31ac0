package timer

import (
	"math"
	"time"

	"github.com/Wajahat883/EDU-PREP-sub001/internal/model"
)

// RemainingAt computes the countdown left for a session from its anchors.
// When pausedAt is set the clock is frozen at that instant.
func RemainingAt(total time.Duration, startedAt time.Time, pausedFor time.Duration, pausedAt *time.Time, now time.Time) time.Duration {
	ref := now
	if pausedAt != nil {
		ref = *pausedAt
	}
	used := ref.Sub(startedAt) - pausedFor
	if used < 0 {
		used = 0
	}
	remaining := total - used
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Seconds rounds d up to whole seconds so a countdown never shows 0 early.
func Seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// WarningLevelFor classifies the remaining share of the total time.
func WarningLevelFor(remaining, total time.Duration) model.WarningLevel {
	if total <= 0 {
		return model.WarningLevelCritical
	}
	ratio := float64(remaining) / float64(total)
	switch {
	case ratio > 0.25:
		return model.WarningLevelNormal
	case ratio >= 0.10:
		return model.WarningLevelWarning
	default:
		return model.WarningLevelCritical
	}
}
